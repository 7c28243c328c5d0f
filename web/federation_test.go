package web

import (
	"context"
	"net/http"
	"testing"

	"github.com/deemkeen/chartreuse/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peer links two nodes: from delivers to to with the given credentials.
func peer(t *testing.T, from, to *testNode, username, password string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, from.db.CreateNode(ctx, &domain.Node{
		Host: to.publicHost, Username: username, Password: password,
		Direction: domain.OUTGOING, Status: domain.ENABLED,
	}))
	require.NoError(t, to.db.CreateNode(ctx, &domain.Node{
		Host: from.publicHost, Username: username, Password: password,
		Direction: domain.INCOMING, Status: domain.ENABLED,
	}))
}

// remoteFollower makes follower (living on its own node) a follower of
// followed on followed's node.
func remoteFollower(t *testing.T, home *testNode, followed, follower *domain.Author) {
	t.Helper()
	ctx := context.Background()
	known, _, err := home.db.GetOrCreateAuthor(ctx, follower.UrlId, domain.AuthorDescriptor{
		DisplayName: follower.DisplayName,
		Host:        follower.Host,
	})
	require.NoError(t, err)
	_, err = home.db.CreateFollow(ctx, known.Id, followed.Id)
	require.NoError(t, err)
}

func TestPostFansOutToFollowerNode(t *testing.T) {
	a := startNode(t)
	b := startNode(t)
	peer(t, a, b, "node-a", "secret")

	alice := a.createAuthor(t, "alice")
	bob := b.createAuthor(t, "bob")
	remoteFollower(t, a, alice, bob)

	status, body := a.do(t, http.MethodPost, "authors/1/posts", map[string]string{
		"title":   "Federated",
		"content": "to every follower",
	})
	require.Equal(t, http.StatusCreated, status, body)
	deliveries := body["deliveries"].(map[string]any)
	assert.EqualValues(t, 1, deliveries["attempted"])
	assert.EqualValues(t, 1, deliveries["succeeded"])
	postId := body["id"].(string)

	ctx := context.Background()
	stored, err := b.db.ReadPostByUrlId(ctx, postId)
	require.NoError(t, err)
	assert.Equal(t, "Federated", stored.Title)

	author, err := b.db.ReadAuthorById(ctx, stored.AuthorId)
	require.NoError(t, err)
	assert.Equal(t, alice.UrlId, author.UrlId)
	assert.False(t, author.IsLocal())

	// Deletion travels as an update with the DELETED visibility.
	status, body = a.do(t, http.MethodDelete, a.childPath(postId), nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["deliveries"].(map[string]any)["succeeded"])

	stored, err = b.db.ReadPostByUrlId(ctx, postId)
	require.NoError(t, err)
	assert.Equal(t, domain.DELETED, stored.Visibility)
}

func TestCommentOnRemotePostGoesToHomeNode(t *testing.T) {
	a := startNode(t)
	b := startNode(t)
	peer(t, a, b, "node-a", "secret")
	peer(t, b, a, "node-b", "hunter2")

	alice := a.createAuthor(t, "alice")
	bob := b.createAuthor(t, "bob")
	remoteFollower(t, a, alice, bob)
	postId := a.createPost(t, alice, "Hello B")

	ctx := context.Background()
	_, err := b.db.ReadPostByUrlId(ctx, postId)
	require.NoError(t, err)

	// bob comments on the copy of alice's post held by node B.
	path := "authors/" + escape(alice.UrlId) + "/posts/" + escape(postId) + "/comments"
	status, body := b.do(t, http.MethodPost, path, map[string]string{
		"author":  bob.UrlId,
		"comment": "Greetings from B",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 1, body["deliveries"].(map[string]any)["succeeded"])
	commentId := body["id"].(string)

	comment, err := a.db.ReadCommentByUrlId(ctx, commentId)
	require.NoError(t, err)
	assert.Equal(t, "Greetings from B", comment.Comment)

	// And likes it.
	status, body = b.do(t, http.MethodPost, path[:len(path)-len("/comments")]+"/likes", map[string]string{"author": "1"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 1, body["deliveries"].(map[string]any)["succeeded"])

	post, err := a.db.ReadPostByUrlId(ctx, postId)
	require.NoError(t, err)
	likes, err := a.db.ReadLikesByPost(ctx, post.Id)
	require.NoError(t, err)
	assert.Len(t, likes, 1)
}

func TestDeliveryFailureDoesNotFailLocalAction(t *testing.T) {
	a := startNode(t)
	alice := a.createAuthor(t, "alice")

	ctx := context.Background()
	down := "http://127.0.0.1:1/chartreuse/api/"
	require.NoError(t, a.db.CreateNode(ctx, &domain.Node{
		Host: down, Username: "u", Password: "p", Direction: domain.OUTGOING, Status: domain.ENABLED,
	}))
	follower, _, err := a.db.GetOrCreateAuthor(ctx, down+"authors/3", domain.AuthorDescriptor{Host: down})
	require.NoError(t, err)
	_, err = a.db.CreateFollow(ctx, follower.Id, alice.Id)
	require.NoError(t, err)

	status, body := a.do(t, http.MethodPost, "authors/1/posts", map[string]string{"title": "t", "content": "c"})
	require.Equal(t, http.StatusCreated, status)
	deliveries := body["deliveries"].(map[string]any)
	assert.EqualValues(t, 1, deliveries["attempted"])
	assert.EqualValues(t, 1, deliveries["failed"])
	details := deliveries["details"].([]any)
	assert.NotEmpty(t, details[0].(map[string]any)["error"])

	_, err = a.db.ReadPostByUrlId(ctx, body["id"].(string))
	assert.NoError(t, err)
}

func TestRemoteFollowRequestIsDelivered(t *testing.T) {
	a := startNode(t)
	b := startNode(t)
	peer(t, a, b, "node-a", "secret")

	a.createAuthor(t, "alice")
	bob := b.createAuthor(t, "bob")

	ctx := context.Background()
	_, _, err := a.db.GetOrCreateAuthor(ctx, bob.UrlId, domain.AuthorDescriptor{DisplayName: "bob", Host: b.publicHost})
	require.NoError(t, err)

	status, body := a.do(t, http.MethodPost, "authors/1/follow_requests", map[string]string{"object": bob.UrlId})
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["deliveries"].(map[string]any)["succeeded"])

	// Approval belongs to bob's node.
	_, body = b.do(t, http.MethodGet, "authors/1/follow_requests", nil)
	require.Len(t, body["items"], 1)

	status, _ = a.do(t, http.MethodPost, "follow_requests/1/accept", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = b.do(t, http.MethodPost, "follow_requests/1/accept", nil)
	require.Equal(t, http.StatusOK, status)
	_, body = b.do(t, http.MethodGet, "authors/1/followers", nil)
	assert.Len(t, body["items"], 1)
}

func TestInboxRejectsUnknownNode(t *testing.T) {
	b := startNode(t)
	b.createAuthor(t, "bob")

	req, err := http.NewRequest(http.MethodPost, b.url("authors/1/inbox"), nil)
	require.NoError(t, err)
	req.SetBasicAuth("nobody", "nothing")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, b.url("authors/9/inbox"), nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
