package federation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/stretchr/testify/require"
)

const (
	hostA = "http://node-a.example/chartreuse/api/"
	hostB = "http://node-b.example/chartreuse/api/"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func createLocalAuthor(t *testing.T, database *db.DB, publicHost, username string) *domain.Author {
	t.Helper()
	a, err := database.CreateLocalAuthor(context.Background(), publicHost, domain.AuthorDescriptor{DisplayName: username}, username)
	require.NoError(t, err)
	return a
}

func createRemoteAuthor(t *testing.T, database *db.DB, host string, serial int) *domain.Author {
	t.Helper()
	a, _, err := database.GetOrCreateAuthor(context.Background(), domain.AuthorURL(host, int64(serial)), domain.AuthorDescriptor{
		DisplayName: "remote",
		Host:        host,
	})
	require.NoError(t, err)
	return a
}

func createNode(t *testing.T, database *db.DB, host, username, password string, dir domain.NodeDirection, status domain.NodeStatus) *domain.Node {
	t.Helper()
	n := &domain.Node{Host: host, Username: username, Password: password, Direction: dir, Status: status}
	require.NoError(t, database.CreateNode(context.Background(), n))
	return n
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

type fetcherFunc func(ctx context.Context, urlId string) ([]byte, error)

func (f fetcherFunc) FetchObject(ctx context.Context, urlId string) ([]byte, error) {
	return f(ctx, urlId)
}

// canonicalFetcher serves objects straight from the store, standing in for
// the REST self-GET.
func canonicalFetcher(database *db.DB) fetcherFunc {
	return func(ctx context.Context, urlId string) ([]byte, error) {
		c := NewCanonicalizer(database.Queries)
		if p, err := database.ReadPostByUrlId(ctx, urlId); err == nil {
			obj, err := c.Post(ctx, p)
			if err != nil {
				return nil, err
			}
			return json.Marshal(obj)
		}
		if cm, err := database.ReadCommentByUrlId(ctx, urlId); err == nil {
			obj, err := c.Comment(ctx, cm, nil)
			if err != nil {
				return nil, err
			}
			return json.Marshal(obj)
		}
		if l, err := database.ReadLikeByUrlId(ctx, urlId); err == nil {
			obj, err := c.Like(ctx, l)
			if err != nil {
				return nil, err
			}
			return json.Marshal(obj)
		}
		return nil, errors.New("object not found")
	}
}

type recordedRequest struct {
	Path   string
	Auth   string
	Origin string
	Body   []byte
}

// inboxRecorder is a fake peer node that records every inbox POST.
type inboxRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *inboxRecorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.requests...)
}

func newRemoteNode(t *testing.T, status int) (*httptest.Server, *inboxRecorder) {
	t.Helper()
	return newScriptedRemoteNode(t, func(int) int { return status })
}

// newScriptedRemoteNode answers the n-th inbox POST (from 1) with status(n).
func newScriptedRemoteNode(t *testing.T, status func(n int) int) (*httptest.Server, *inboxRecorder) {
	t.Helper()
	rec := &inboxRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		rec.mu.Lock()
		rec.requests = append(rec.requests, recordedRequest{
			Path:   req.URL.Path,
			Auth:   req.Header.Get("Authorization"),
			Origin: req.Header.Get("X-Original-Host"),
			Body:   body,
		})
		n := len(rec.requests)
		rec.mu.Unlock()
		w.WriteHeader(status(n))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

// newInboxServer exposes a real Inbox over HTTP the way the router does.
// build receives the node's public host, which depends on the server URL.
func newInboxServer(t *testing.T, build func(publicHost string) *Inbox) (*httptest.Server, string) {
	t.Helper()
	var inbox *Inbox
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chartreuse/api/authors/{id}/inbox", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		res, err := inbox.Process(req.Context(), req.PathValue("id"), req.Header.Get("Authorization"), body, req.Header.Get("X-Original-Host"))
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(StatusFor(err))
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": res.Status})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	publicHost := srv.URL + "/chartreuse/api/"
	inbox = build(publicHost)
	return srv, publicHost
}

func countRows(t *testing.T, database *db.DB) map[string]int {
	t.Helper()
	ctx := context.Background()
	authors, err := database.ReadAllAuthors(ctx)
	require.NoError(t, err)
	activities, err := database.ReadRecentActivities(ctx, 1000)
	require.NoError(t, err)
	return map[string]int{"authors": len(authors), "activities": len(activities)}
}
