package web

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/deemkeen/chartreuse/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetAuthor(t *testing.T) {
	n := startNode(t)

	status, body := n.do(t, http.MethodPost, "authors", map[string]string{
		"username":    "greg",
		"displayName": "Greg",
		"github":      "https://github.com/greg",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "author", body["type"])
	assert.Equal(t, n.url("authors/1"), body["id"])
	assert.Equal(t, n.publicHost, body["host"])

	status, body = n.do(t, http.MethodGet, "authors/1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Greg", body["displayName"])
	assert.Equal(t, "https://github.com/greg", body["github"])

	// The same author addressed by its encoded url id.
	status, body = n.do(t, http.MethodGet, "authors/"+url.PathEscape(n.url("authors/1")), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, n.url("authors/1"), body["id"])

	status, body = n.do(t, http.MethodGet, "authors", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)
}

func TestCreateAuthorValidation(t *testing.T) {
	n := startNode(t)
	n.createAuthor(t, "greg")

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"missing username", map[string]string{"displayName": "X"}, http.StatusBadRequest},
		{"bad username", map[string]string{"username": "Not Valid", "displayName": "X"}, http.StatusBadRequest},
		{"bad github", map[string]string{"username": "x_1", "displayName": "X", "github": "nope"}, http.StatusBadRequest},
		{"duplicate username", map[string]string{"username": "greg", "displayName": "X"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := n.do(t, http.MethodPost, "authors", tt.body)
			assert.Equal(t, tt.status, status, body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestUnknownAuthor(t *testing.T) {
	n := startNode(t)

	status, _ := n.do(t, http.MethodGet, "authors/42", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = n.do(t, http.MethodGet, "authors/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = n.do(t, http.MethodPost, "authors/42/posts", map[string]string{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPostLifecycle(t *testing.T) {
	n := startNode(t)
	greg := n.createAuthor(t, "greg")
	postId := n.createPost(t, greg, "Gregs public post")
	assert.Equal(t, greg.UrlId+"/posts/1", postId)

	status, body := n.do(t, http.MethodGet, n.childPath(postId), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "post", body["type"])
	assert.Equal(t, "Gregs public post", body["title"])
	assert.Equal(t, "text/plain", body["contentType"])
	assert.Equal(t, "PUBLIC", body["visibility"])
	assert.Equal(t, greg.UrlId, body["author"].(map[string]any)["id"])
	assert.Equal(t, "comments", body["comments"].(map[string]any)["type"])
	assert.Equal(t, "likes", body["likes"].(map[string]any)["type"])

	status, body = n.do(t, http.MethodPut, n.childPath(postId), map[string]string{"title": "Edited"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Post updated successfully", body["success"])

	_, body = n.do(t, http.MethodGet, n.childPath(postId), nil)
	assert.Equal(t, "Edited", body["title"])
	assert.Equal(t, "Hello World!", body["content"])

	status, _ = n.do(t, http.MethodPut, n.childPath(postId), map[string]string{"visibility": "SECRET"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = n.do(t, http.MethodGet, "authors/1/posts", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)

	status, _ = n.do(t, http.MethodDelete, n.childPath(postId), nil)
	require.Equal(t, http.StatusOK, status)

	status, body = n.do(t, http.MethodGet, n.childPath(postId), nil)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "DELETED", body["visibility"])

	_, body = n.do(t, http.MethodGet, "authors/1/posts", nil)
	assert.Empty(t, body["items"])

	status, _ = n.do(t, http.MethodPut, n.childPath(postId), map[string]string{"title": "Back"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPostBelongsToAuthor(t *testing.T) {
	n := startNode(t)
	greg := n.createAuthor(t, "greg")
	n.createAuthor(t, "ann")
	n.createPost(t, greg, "mine")

	status, _ := n.do(t, http.MethodGet, "authors/2/posts/1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreatePostValidation(t *testing.T) {
	n := startNode(t)
	n.createAuthor(t, "greg")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing title", map[string]string{"content": "c"}},
		{"missing content", map[string]string{"title": "t"}},
		{"unknown content type", map[string]string{"title": "t", "content": "c", "contentType": "text/html"}},
		{"unknown visibility", map[string]string{"title": "t", "content": "c", "visibility": "SECRET"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := n.do(t, http.MethodPost, "authors/1/posts", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

func TestCommentsAndLikes(t *testing.T) {
	n := startNode(t)
	greg := n.createAuthor(t, "greg")
	ann := n.createAuthor(t, "ann")
	postId := n.createPost(t, greg, "p")
	postPath := n.childPath(postId)

	status, body := n.do(t, http.MethodPost, postPath+"/comments", map[string]string{
		"author":  ann.UrlId,
		"comment": "Nice post",
	})
	require.Equal(t, http.StatusCreated, status, body)
	commentId := body["id"].(string)
	assert.Equal(t, ann.UrlId+"/commented/1", commentId)

	status, _ = n.do(t, http.MethodPost, postPath+"/comments", map[string]string{"author": "2", "comment": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = n.do(t, http.MethodPost, "authors/1/posts/99/comments", map[string]string{"author": "2", "comment": "x"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = n.do(t, http.MethodGet, n.childPath(commentId), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "comment", body["type"])
	assert.Equal(t, postId, body["post"])

	// Like toggles on and off.
	status, body = n.do(t, http.MethodPost, postPath+"/likes", map[string]string{"author": "2"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, true, body["liked"])
	likeId := body["id"].(string)

	status, body = n.do(t, http.MethodGet, n.childPath(likeId), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, postId, body["object"])

	_, body = n.do(t, http.MethodGet, postPath+"/likes", nil)
	assert.EqualValues(t, 1, body["count"])

	status, body = n.do(t, http.MethodPost, postPath+"/likes", map[string]string{"author": "2"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["liked"])

	_, body = n.do(t, http.MethodGet, postPath+"/likes", nil)
	assert.EqualValues(t, 0, body["count"])

	status, _ = n.do(t, http.MethodPost, n.childPath(commentId)+"/likes", map[string]string{"author": "1"})
	require.Equal(t, http.StatusCreated, status)

	_, body = n.do(t, http.MethodGet, n.childPath(commentId)+"/likes", nil)
	assert.EqualValues(t, 1, body["count"])

	_, body = n.do(t, http.MethodGet, postPath+"/comments", nil)
	assert.EqualValues(t, 1, body["count"])
}

func TestRemoteAuthorCannotAct(t *testing.T) {
	n := startNode(t)
	greg := n.createAuthor(t, "greg")
	postId := n.createPost(t, greg, "p")

	remote, _, err := n.db.GetOrCreateAuthor(context.Background(), "http://elsewhere.example/api/authors/7", domain.AuthorDescriptor{Host: "http://elsewhere.example/api/"})
	require.NoError(t, err)

	status, body := n.do(t, http.MethodPost, n.childPath(postId)+"/comments", map[string]string{
		"author":  remote.UrlId,
		"comment": "spoofed",
	})
	assert.Equal(t, http.StatusBadRequest, status, body)

	status, _ = n.do(t, http.MethodPost, "authors/"+url.PathEscape(remote.UrlId)+"/posts", map[string]string{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLocalFollowWorkflow(t *testing.T) {
	n := startNode(t)
	greg := n.createAuthor(t, "greg")
	ann := n.createAuthor(t, "ann")

	status, body := n.do(t, http.MethodPost, "authors/2/follow_requests", map[string]string{"object": greg.UrlId})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Follow request sent successfully", body["success"])

	status, body = n.do(t, http.MethodPost, "authors/2/follow_requests", map[string]string{"object": greg.UrlId})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Follow request already exists", body["success"])

	status, body = n.do(t, http.MethodGet, "authors/1/follow_requests", nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	req := items[0].(map[string]any)
	assert.Equal(t, ann.UrlId, req["actor"].(map[string]any)["id"])

	status, _ = n.do(t, http.MethodPost, "follow_requests/999/accept", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = n.do(t, http.MethodPost, "follow_requests/abc/accept", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = n.do(t, http.MethodPost, "follow_requests/1/accept", nil)
	require.Equal(t, http.StatusOK, status)

	_, body = n.do(t, http.MethodGet, "authors/1/followers", nil)
	require.Len(t, body["items"], 1)

	_, body = n.do(t, http.MethodPost, "authors/2/follow_requests", map[string]string{"object": greg.UrlId})
	assert.Equal(t, "Already following", body["success"])

	status, _ = n.do(t, http.MethodDelete, "authors/1/followers/2", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = n.do(t, http.MethodDelete, "authors/1/followers/2", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRejectFollowRequest(t *testing.T) {
	n := startNode(t)
	greg := n.createAuthor(t, "greg")
	n.createAuthor(t, "ann")

	n.do(t, http.MethodPost, "authors/2/follow_requests", map[string]string{"object": greg.UrlId})

	status, _ := n.do(t, http.MethodDelete, "follow_requests/1", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = n.do(t, http.MethodDelete, "follow_requests/1", nil)
	assert.Equal(t, http.StatusNotFound, status)

	_, body := n.do(t, http.MethodGet, "authors/1/followers", nil)
	assert.Empty(t, body["items"])
}

func TestFollowRequestValidation(t *testing.T) {
	n := startNode(t)
	greg := n.createAuthor(t, "greg")

	status, _ := n.do(t, http.MethodPost, "authors/1/follow_requests", map[string]string{"object": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = n.do(t, http.MethodPost, "authors/1/follow_requests", map[string]string{"object": greg.UrlId})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = n.do(t, http.MethodPost, "authors/1/follow_requests", map[string]string{"object": n.url("authors/77")})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateAndDeleteAuthor(t *testing.T) {
	n := startNode(t)
	greg := n.createAuthor(t, "greg")
	n.createAuthor(t, "ann")
	n.createPost(t, greg, "p")

	status, body := n.do(t, http.MethodPut, "authors/1", map[string]any{
		"displayName": "Gregory",
		"github":      "https://github.com/gregory",
		"username":    "ignored",
		"id":          n.url("authors/9"),
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Gregory", body["displayName"])
	assert.Equal(t, greg.UrlId, body["id"])

	status, body = n.do(t, http.MethodGet, "authors/1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Gregory", body["displayName"])
	assert.Equal(t, "https://github.com/gregory", body["github"])

	// Omitted fields keep their value.
	status, body = n.do(t, http.MethodPut, "authors/1", map[string]any{"profileImage": "https://img.example/g.png"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Gregory", body["displayName"])
	assert.Equal(t, "https://img.example/g.png", body["profileImage"])

	status, _ = n.do(t, http.MethodPut, "authors/1", map[string]any{"displayName": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = n.do(t, http.MethodPut, "authors/1", map[string]any{"github": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = n.do(t, http.MethodPut, "authors/42", map[string]any{"displayName": "x"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = n.do(t, http.MethodDelete, "authors/1", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Author deleted successfully", body["success"])

	status, _ = n.do(t, http.MethodGet, "authors/1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = n.do(t, http.MethodGet, "authors/1/posts/1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = n.do(t, http.MethodDelete, "authors/1", nil)
	assert.Equal(t, http.StatusNotFound, status)

	_, body = n.do(t, http.MethodGet, "authors", nil)
	assert.Len(t, body["items"], 1)
}

func TestRemoteAuthorCannotBeEditedOrDeleted(t *testing.T) {
	n := startNode(t)
	remote, _, err := n.db.GetOrCreateAuthor(context.Background(), "http://elsewhere.example/api/authors/7", domain.AuthorDescriptor{Host: "http://elsewhere.example/api/"})
	require.NoError(t, err)

	status, _ := n.do(t, http.MethodPut, "authors/"+escape(remote.UrlId), map[string]any{"displayName": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = n.do(t, http.MethodDelete, "authors/"+escape(remote.UrlId), nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListLiked(t *testing.T) {
	n := startNode(t)
	greg := n.createAuthor(t, "greg")
	ann := n.createAuthor(t, "ann")
	postId := n.createPost(t, greg, "p")

	_, body := n.do(t, http.MethodGet, "authors/2/liked", nil)
	assert.Equal(t, "liked", body["type"])
	assert.Empty(t, body["items"])

	status, body := n.do(t, http.MethodPost, n.childPath(postId)+"/likes", map[string]string{"author": ann.UrlId})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = n.do(t, http.MethodGet, "authors/2/liked", nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	like := items[0].(map[string]any)
	assert.Equal(t, postId, like["object"])

	status, _ = n.do(t, http.MethodGet, "authors/42/liked", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFollowerAndFriendChecks(t *testing.T) {
	n := startNode(t)
	greg := n.createAuthor(t, "greg")
	ann := n.createAuthor(t, "ann")

	status, _ := n.do(t, http.MethodGet, "authors/1/followers/2", nil)
	assert.Equal(t, http.StatusNotFound, status)
	_, body := n.do(t, http.MethodGet, "authors/1/friends/2", nil)
	assert.Equal(t, false, body["is_friend"])

	// ann follows greg.
	n.do(t, http.MethodPost, "authors/2/follow_requests", map[string]string{"object": greg.UrlId})
	status, _ = n.do(t, http.MethodPost, "follow_requests/1/accept", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = n.do(t, http.MethodGet, "authors/1/followers/"+escape(ann.UrlId), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, ann.UrlId, body["follower"].(map[string]any)["id"])
	status, _ = n.do(t, http.MethodGet, "authors/2/followers/1", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// One direction is not a friendship.
	_, body = n.do(t, http.MethodGet, "authors/1/friends/2", nil)
	assert.Equal(t, false, body["is_friend"])
	_, body = n.do(t, http.MethodGet, "authors/1/friends", nil)
	assert.Equal(t, "friends", body["type"])
	assert.Empty(t, body["items"])

	// greg follows back.
	n.do(t, http.MethodPost, "authors/1/follow_requests", map[string]string{"object": ann.UrlId})
	status, _ = n.do(t, http.MethodPost, "follow_requests/2/accept", nil)
	require.Equal(t, http.StatusOK, status)

	_, body = n.do(t, http.MethodGet, "authors/1/friends/2", nil)
	assert.Equal(t, true, body["is_friend"])
	_, body = n.do(t, http.MethodGet, "authors/2/friends/1", nil)
	assert.Equal(t, true, body["is_friend"])

	status, body = n.do(t, http.MethodGet, "authors/1/friends", nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, ann.UrlId, items[0].(map[string]any)["id"])

	status, _ = n.do(t, http.MethodGet, "authors/1/friends/42", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
