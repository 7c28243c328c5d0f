package federation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteAuthorJSON = `{"type":"author","id":"http://node-b.example/chartreuse/api/authors/7","host":"http://node-b.example/chartreuse/api/","displayName":"bob"}`

func TestParseActivityVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind string
	}{
		{"post", `{"type":"post","id":"http://node-b.example/chartreuse/api/authors/7/posts/1","title":"t","author":` + remoteAuthorJSON + `}`, TypePost},
		{"comment", `{"type":"comment","comment":"hi","post":"http://x/p/1","author":` + remoteAuthorJSON + `}`, TypeComment},
		{"like", `{"type":"like","published":"2024-03-01T10:00:00Z","id":"http://x/l/1","object":"http://x/p/1","author":` + remoteAuthorJSON + `}`, TypeLike},
		{"follow", `{"type":"follow","summary":"s","actor":` + remoteAuthorJSON + `,"object":` + remoteAuthorJSON + `}`, TypeFollow},
		{"type is case insensitive", `{"type":"Follow","actor":` + remoteAuthorJSON + `,"object":` + remoteAuthorJSON + `}`, TypeFollow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseActivity([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, a.Kind())
		})
	}
}

func TestParseActivityRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing type", `{"id":"x"}`},
		{"unknown type", `{"type":"share"}`},
		{"like without object", `{"type":"like","published":"2024-03-01T10:00:00Z","id":"http://x/l/1","author":` + remoteAuthorJSON + `}`},
		{"like without published", `{"type":"like","id":"http://x/l/1","object":"http://x/p/1","author":` + remoteAuthorJSON + `}`},
		{"like without author id", `{"type":"like","published":"2024-03-01T10:00:00Z","id":"http://x/l/1","object":"http://x/p/1","author":{}}`},
		{"post without id", `{"type":"post","author":` + remoteAuthorJSON + `}`},
		{"post with bad visibility", `{"type":"post","id":"http://x/p/1","visibility":"SECRET","author":` + remoteAuthorJSON + `}`},
		{"comment with malformed author", `{"type":"comment","comment":"hi","post":"http://x/p/1","author":{"id":"not a url"}}`},
		{"embedded comment without text", `{"type":"post","id":"http://x/p/1","author":` + remoteAuthorJSON + `,"comments":{"src":[{"author":` + remoteAuthorJSON + `}]}}`},
		{"bad timestamp", `{"type":"like","published":"yesterday","id":"http://x/l/1","object":"http://x/p/1","author":` + remoteAuthorJSON + `}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseActivity([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBadRequest), err.Error())
		})
	}
}

func TestParsePublished(t *testing.T) {
	for _, s := range []string{
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:00:00.123456+00:00",
		"2024-03-01T10:00:00.123456",
		"2024-03-01 10:00:00",
	} {
		ts, err := ParsePublished(s)
		require.NoError(t, err, s)
		assert.Equal(t, 2024, ts.Year(), s)
	}

	now, err := ParsePublished("")
	require.NoError(t, err)
	assert.False(t, now.IsZero())
}
