package federation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deemkeen/chartreuse/domain"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	TypePost    = "post"
	TypeComment = "comment"
	TypeLike    = "like"
	TypeFollow  = "follow"
)

// Activity is one of PostActivity, CommentActivity, LikeActivity or
// FollowActivity. The same structs are the canonical JSON served by the REST
// API, so what a node serves is exactly what a peer inbox consumes.
type Activity interface {
	Kind() string
	// ObjectId is the url id of the object the activity carries.
	ObjectId() string
	Validate() error
}

type AuthorObject struct {
	Type         string `json:"type"`
	Id           string `json:"id"`
	Host         string `json:"host"`
	DisplayName  string `json:"displayName"`
	Github       string `json:"github"`
	ProfileImage string `json:"profileImage"`
	Page         string `json:"page,omitempty"`
}

func (a AuthorObject) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Id, validation.Required.Error("author id is required"), is.RequestURL),
		validation.Field(&a.Host, validation.When(a.Host != "", is.RequestURL)),
	)
}

func (a AuthorObject) Descriptor() domain.AuthorDescriptor {
	return domain.AuthorDescriptor{
		DisplayName:  a.DisplayName,
		Host:         a.Host,
		Github:       a.Github,
		ProfileImage: a.ProfileImage,
	}
}

type LikeActivity struct {
	Type      string       `json:"type"`
	Summary   string       `json:"summary,omitempty"`
	Author    AuthorObject `json:"author"`
	Published string       `json:"published"`
	Id        string       `json:"id"`
	Object    string       `json:"object"`
}

func (l LikeActivity) Kind() string     { return TypeLike }
func (l LikeActivity) ObjectId() string { return l.Object }

func (l LikeActivity) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Author),
		validation.Field(&l.Published, validation.Required, validation.By(publishedRule)),
		validation.Field(&l.Id, validation.Required),
		validation.Field(&l.Object, validation.Required),
	)
}

// validateEmbedded checks a like nested in a post or comment, where the
// target is implied by the enclosing object.
func (l LikeActivity) validateEmbedded() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Author),
		validation.Field(&l.Published, validation.By(publishedRule)),
	)
}

type LikeCollection struct {
	Type  string         `json:"type"`
	Count int            `json:"count"`
	Src   []LikeActivity `json:"src"`
}

func (c LikeCollection) Validate() error {
	for i, l := range c.Src {
		if err := l.validateEmbedded(); err != nil {
			return fmt.Errorf("likes.src[%d]: %w", i, err)
		}
	}
	return nil
}

type CommentActivity struct {
	Type        string          `json:"type"`
	Author      AuthorObject    `json:"author"`
	Comment     string          `json:"comment"`
	ContentType string          `json:"contentType"`
	Id          string          `json:"id"`
	Post        string          `json:"post"`
	Published   string          `json:"published"`
	Likes       *LikeCollection `json:"likes,omitempty"`
}

func (c CommentActivity) Kind() string     { return TypeComment }
func (c CommentActivity) ObjectId() string { return c.Id }

func (c CommentActivity) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Author),
		validation.Field(&c.Comment, validation.Required),
		validation.Field(&c.Post, validation.Required),
		validation.Field(&c.Published, validation.By(publishedRule)),
		validation.Field(&c.Likes),
	)
}

// validateEmbedded checks a comment nested in a post; its post is the
// enclosing one.
func (c CommentActivity) validateEmbedded() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Author),
		validation.Field(&c.Comment, validation.Required),
		validation.Field(&c.Published, validation.By(publishedRule)),
		validation.Field(&c.Likes),
	)
}

type CommentCollection struct {
	Type  string            `json:"type"`
	Count int               `json:"count"`
	Src   []CommentActivity `json:"src"`
}

func (c CommentCollection) Validate() error {
	for i, cm := range c.Src {
		if err := cm.validateEmbedded(); err != nil {
			return fmt.Errorf("comments.src[%d]: %w", i, err)
		}
	}
	return nil
}

type PostActivity struct {
	Type        string            `json:"type"`
	Id          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	ContentType string            `json:"contentType"`
	Content     string            `json:"content"`
	Author      AuthorObject      `json:"author"`
	Comments    CommentCollection `json:"comments"`
	Likes       LikeCollection    `json:"likes"`
	Published   string            `json:"published"`
	Visibility  string            `json:"visibility"`
}

func (p PostActivity) Kind() string     { return TypePost }
func (p PostActivity) ObjectId() string { return p.Id }

func (p PostActivity) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Id, validation.Required),
		validation.Field(&p.Author),
		validation.Field(&p.Visibility, validation.By(visibilityRule)),
		validation.Field(&p.Published, validation.By(publishedRule)),
		validation.Field(&p.Comments),
		validation.Field(&p.Likes),
	)
}

type FollowActivity struct {
	Type    string       `json:"type"`
	Summary string       `json:"summary"`
	Actor   AuthorObject `json:"actor"`
	Object  AuthorObject `json:"object"`
}

func (f FollowActivity) Kind() string     { return TypeFollow }
func (f FollowActivity) ObjectId() string { return f.Object.Id }

func (f FollowActivity) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Actor),
		validation.Field(&f.Object),
	)
}

// ParseActivity decodes an inbox payload into its variant and validates the
// variant's required fields. Every failure wraps ErrBadRequest.
func ParseActivity(body []byte) (Activity, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrBadRequest, err)
	}

	var activity Activity
	var err error
	switch strings.ToLower(strings.TrimSpace(envelope.Type)) {
	case TypePost:
		var p PostActivity
		err = json.Unmarshal(body, &p)
		activity = p
	case TypeComment:
		var c CommentActivity
		err = json.Unmarshal(body, &c)
		activity = c
	case TypeLike:
		var l LikeActivity
		err = json.Unmarshal(body, &l)
		activity = l
	case TypeFollow:
		var f FollowActivity
		err = json.Unmarshal(body, &f)
		activity = f
	case "":
		return nil, fmt.Errorf("%w: missing activity type", ErrBadRequest)
	default:
		return nil, fmt.Errorf("%w: unknown activity type %q", ErrBadRequest, envelope.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrBadRequest, envelope.Type, err)
	}
	if err := activity.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrBadRequest, envelope.Type, err)
	}
	return activity, nil
}

var publishedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// ParsePublished reads a published timestamp. An empty value means now.
func ParsePublished(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now(), nil
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatPublished is the layout every timestamp is served with.
func FormatPublished(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func publishedRule(value interface{}) error {
	s, _ := value.(string)
	_, err := ParsePublished(s)
	return err
}

func visibilityRule(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := domain.ParseVisibility(s)
	return err
}
