package web

import (
	"errors"
	"regexp"

	"github.com/deemkeen/chartreuse/domain"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const defaultContentType = "text/plain"

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

var contentTypes = []interface{}{
	"text/plain",
	"text/markdown",
	"application/base64",
	"image/png;base64",
	"image/jpeg;base64",
}

// visibility accepts nil pointers so that partial updates pass.
var visibility = validation.By(func(value interface{}) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return errors.New("must be a string")
	}
	if s == "" {
		return nil
	}
	_, err := domain.ParseVisibility(s)
	return err
})

type createAuthorRequest struct {
	Username     string `json:"username"`
	DisplayName  string `json:"displayName"`
	Github       string `json:"github"`
	ProfileImage string `json:"profileImage"`
}

func (r createAuthorRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username,
			validation.Required.Error("username is required"),
			validation.Length(3, 32),
			validation.Match(usernamePattern).Error("username may contain lowercase letters, digits and underscores"),
		),
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Github, validation.When(r.Github != "", is.RequestURL)),
		validation.Field(&r.ProfileImage, validation.When(r.ProfileImage != "", is.RequestURL)),
	)
}

func (r createAuthorRequest) descriptor() domain.AuthorDescriptor {
	return domain.AuthorDescriptor{
		DisplayName:  r.DisplayName,
		Github:       r.Github,
		ProfileImage: r.ProfileImage,
	}
}

// updateAuthorRequest changes the profile only. Ids, host and login stay.
type updateAuthorRequest struct {
	DisplayName  *string `json:"displayName"`
	Github       *string `json:"github"`
	ProfileImage *string `json:"profileImage"`
}

func (r updateAuthorRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.When(r.DisplayName != nil, validation.Required, validation.Length(1, 100))),
		validation.Field(&r.Github, is.RequestURL),
		validation.Field(&r.ProfileImage, is.RequestURL),
	)
}

func (r updateAuthorRequest) apply(a *domain.Author) {
	if r.DisplayName != nil {
		a.DisplayName = *r.DisplayName
	}
	if r.Github != nil {
		a.Github = *r.Github
	}
	if r.ProfileImage != nil {
		a.ProfileImage = *r.ProfileImage
	}
}

type createPostRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
	Visibility  string `json:"visibility"`
}

func (r createPostRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required.Error("title is required"), validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 500)),
		validation.Field(&r.ContentType, validation.When(r.ContentType != "", validation.In(contentTypes...))),
		validation.Field(&r.Content, validation.Required.Error("content is required")),
		validation.Field(&r.Visibility, visibility),
	)
}

func (r createPostRequest) post() *domain.Post {
	p := &domain.Post{
		Title:       r.Title,
		Description: r.Description,
		ContentType: r.ContentType,
		Content:     r.Content,
		Visibility:  domain.PUBLIC,
	}
	if p.ContentType == "" {
		p.ContentType = defaultContentType
	}
	if v, err := domain.ParseVisibility(r.Visibility); err == nil {
		p.Visibility = v
	}
	return p
}

// updatePostRequest only touches the fields present in the body.
type updatePostRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ContentType *string `json:"contentType"`
	Content     *string `json:"content"`
	Visibility  *string `json:"visibility"`
}

func (r updatePostRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.When(r.Title != nil, validation.Required, validation.Length(1, 200))),
		validation.Field(&r.Description, validation.Length(0, 500)),
		validation.Field(&r.ContentType, validation.When(r.ContentType != nil, validation.In(contentTypes...))),
		validation.Field(&r.Content, validation.When(r.Content != nil, validation.Required)),
		validation.Field(&r.Visibility, visibility),
	)
}

func (r updatePostRequest) apply(p *domain.Post) {
	if r.Title != nil {
		p.Title = *r.Title
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.ContentType != nil {
		p.ContentType = *r.ContentType
	}
	if r.Content != nil {
		p.Content = *r.Content
	}
	if r.Visibility != nil && *r.Visibility != "" {
		if v, err := domain.ParseVisibility(*r.Visibility); err == nil {
			p.Visibility = v
		}
	}
}

type commentRequest struct {
	Author      string `json:"author"`
	Comment     string `json:"comment"`
	ContentType string `json:"contentType"`
}

func (r commentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Author, validation.Required.Error("author is required")),
		validation.Field(&r.Comment, validation.Required.Error("comment is required"), validation.Length(1, 5000)),
		validation.Field(&r.ContentType, validation.When(r.ContentType != "", validation.In(contentTypes...))),
	)
}

type likeRequest struct {
	Author string `json:"author"`
}

func (r likeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Author, validation.Required.Error("author is required")),
	)
}

type followRequestBody struct {
	Object string `json:"object"`
}

func (r followRequestBody) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Object, validation.Required.Error("object is required"), is.RequestURL),
	)
}
