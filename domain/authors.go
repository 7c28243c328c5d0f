package domain

import (
	"fmt"
	"time"
)

// Author is a local or remote identity, addressed by its globally unique UrlId.
// LocalUser is empty for authors discovered through federation.
type Author struct {
	Id           int64
	UrlId        string
	DisplayName  string
	Host         string
	Github       string
	ProfileImage string
	LocalUser    string
	CreatedAt    time.Time
}

// IsLocal reports whether the author has a login on this node.
func (a *Author) IsLocal() bool {
	return a.LocalUser != ""
}

func (a *Author) ToString() string {
	return fmt.Sprintf("\n\tId: %d \n\tUrlId: %s \n\tDisplayName: %s \n\tHost: %s \n\tCREATED_AT: %s)", a.Id, a.UrlId, a.DisplayName, a.Host, a.CreatedAt)
}

// AuthorDescriptor carries the profile fields a remote payload provides for an author.
type AuthorDescriptor struct {
	DisplayName  string
	Host         string
	Github       string
	ProfileImage string
}
