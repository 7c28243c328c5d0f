package domain

import (
	"fmt"
	"strings"
	"time"
)

type Visibility string

const (
	PUBLIC   Visibility = "PUBLIC"
	FRIENDS  Visibility = "FRIENDS"
	UNLISTED Visibility = "UNLISTED"
	DELETED  Visibility = "DELETED"
)

// ParseVisibility accepts the four visibility tags case-insensitively.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToUpper(strings.TrimSpace(s))); v {
	case PUBLIC, FRIENDS, UNLISTED, DELETED:
		return v, nil
	}
	return "", fmt.Errorf("unknown visibility %q", s)
}

// Post is owned by exactly one author. DELETED is a soft-delete marker.
type Post struct {
	Id          int64
	UrlId       string
	AuthorId    int64
	Title       string
	Description string
	ContentType string
	Content     string
	Visibility  Visibility
	Published   time.Time
}

type Comment struct {
	Id          int64
	UrlId       string
	AuthorId    int64
	PostId      int64
	Comment     string
	ContentType string
	Published   time.Time
}

// Like targets exactly one of a post or a comment.
type Like struct {
	Id        int64
	UrlId     string
	AuthorId  int64
	PostId    *int64
	CommentId *int64
	Published time.Time
}

func (l *Like) OnPost() bool {
	return l.PostId != nil
}

