package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeHost makes sure a host/API root ends with a single slash so that
// "authors/..." can be appended to it.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	return strings.TrimRight(host, "/") + "/"
}

// SameHost compares two hosts ignoring trailing slashes and scheme case.
func SameHost(a, b string) bool {
	return strings.EqualFold(NormalizeHost(a), NormalizeHost(b))
}

func AuthorURL(publicHost string, serial int64) string {
	return fmt.Sprintf("%sauthors/%d", NormalizeHost(publicHost), serial)
}

func PostURL(authorURL string, serial int64) string {
	return fmt.Sprintf("%s/posts/%d", authorURL, serial)
}

func CommentURL(authorURL string, serial int64) string {
	return fmt.Sprintf("%s/commented/%d", authorURL, serial)
}

func LikeURL(authorURL string, serial int64) string {
	return fmt.Sprintf("%s/liked/%d", authorURL, serial)
}

// LastSegment returns the last non-empty path segment of a url id.
// Example: "https://a.example/api/authors/12/" -> "12"
func LastSegment(u string) string {
	trimmed := strings.TrimRight(u, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// ExpandAuthorId turns a path parameter into an author url id. The parameter
// is either a full url id, already unescaped by the router, or a bare local
// serial.
func ExpandAuthorId(publicHost string, raw string) (string, error) {
	return expand(raw, func(serial int64) string {
		return AuthorURL(publicHost, serial)
	})
}

// ExpandChildId does the same for posts, comments and likes below an author.
// kind is one of "posts", "commented", "liked".
func ExpandChildId(authorURL string, kind string, raw string) (string, error) {
	return expand(raw, func(serial int64) string {
		return fmt.Sprintf("%s/%s/%d", authorURL, kind, serial)
	})
}

func expand(raw string, build func(int64) string) (string, error) {
	id := strings.TrimSpace(raw)
	if strings.Contains(id, ":") {
		return strings.TrimRight(id, "/"), nil
	}
	serial, err := strconv.ParseInt(id, 10, 64)
	if err != nil || serial <= 0 {
		return "", fmt.Errorf("malformed identifier %q", raw)
	}
	return build(serial), nil
}
