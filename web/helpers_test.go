package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/deemkeen/chartreuse/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// testNode is one running node: its store and the API root it serves.
type testNode struct {
	db         *db.DB
	server     *Server
	publicHost string
}

// startNode serves a fresh node on an httptest server. The public host is
// only known once the listener is up, so the handler is built afterwards.
func startNode(t *testing.T) *testNode {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	conf := &util.AppConfig{}
	conf.Conf.PublicHost = srv.URL + "/chartreuse/api/"
	conf.Conf.DeliveryTimeout = 2
	s := NewServer(conf, database)
	s.globalRate, s.inboxRate = rate.Inf, rate.Inf
	handler = s.Handler()

	return &testNode{db: database, server: s, publicHost: s.publicHost}
}

func (n *testNode) url(path string) string {
	return n.publicHost + path
}

func (n *testNode) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, n.url(path), r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (n *testNode) createAuthor(t *testing.T, username string) *domain.Author {
	t.Helper()
	status, body := n.do(t, http.MethodPost, "authors", map[string]string{
		"username":    username,
		"displayName": username,
	})
	require.Equal(t, http.StatusCreated, status, body)
	a, err := n.db.ReadAuthorByUrlId(context.Background(), body["id"].(string))
	require.NoError(t, err)
	return a
}

func (n *testNode) createPost(t *testing.T, author *domain.Author, title string) string {
	t.Helper()
	status, body := n.do(t, http.MethodPost, "authors/"+domain.LastSegment(author.UrlId)+"/posts", map[string]string{
		"title":   title,
		"content": "Hello World!",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["id"].(string)
}

// childPath turns an absolute url id of this node into a path below the API root.
func (n *testNode) childPath(urlId string) string {
	return urlId[len(n.publicHost):]
}

func escape(urlId string) string {
	return url.PathEscape(urlId)
}
