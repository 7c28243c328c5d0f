package federation

import (
	"context"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
)

// NewAuthorObject is the wire form of an author.
func NewAuthorObject(a *domain.Author) AuthorObject {
	return AuthorObject{
		Type:         "author",
		Id:           a.UrlId,
		Host:         a.Host,
		DisplayName:  a.DisplayName,
		Github:       a.Github,
		ProfileImage: a.ProfileImage,
		Page:         a.UrlId,
	}
}

// Canonicalizer renders stored entities in the shape peer inboxes consume.
type Canonicalizer struct {
	q *db.Queries
}

func NewCanonicalizer(q *db.Queries) *Canonicalizer {
	return &Canonicalizer{q: q}
}

func (c *Canonicalizer) author(ctx context.Context, id int64) (AuthorObject, error) {
	a, err := c.q.ReadAuthorById(ctx, id)
	if err != nil {
		return AuthorObject{}, err
	}
	return NewAuthorObject(a), nil
}

func (c *Canonicalizer) Post(ctx context.Context, p *domain.Post) (*PostActivity, error) {
	author, err := c.author(ctx, p.AuthorId)
	if err != nil {
		return nil, err
	}

	comments, err := c.q.ReadCommentsByPost(ctx, p.Id)
	if err != nil {
		return nil, err
	}
	commentObjects := make([]CommentActivity, 0, len(comments))
	for i := range comments {
		co, err := c.Comment(ctx, &comments[i], p)
		if err != nil {
			return nil, err
		}
		commentObjects = append(commentObjects, *co)
	}

	likes, err := c.q.ReadLikesByPost(ctx, p.Id)
	if err != nil {
		return nil, err
	}
	likeCollection, err := c.likeCollection(ctx, likes, p.UrlId)
	if err != nil {
		return nil, err
	}

	return &PostActivity{
		Type:        TypePost,
		Id:          p.UrlId,
		Title:       p.Title,
		Description: p.Description,
		ContentType: p.ContentType,
		Content:     p.Content,
		Author:      author,
		Comments: CommentCollection{
			Type:  "comments",
			Count: len(commentObjects),
			Src:   commentObjects,
		},
		Likes:      *likeCollection,
		Published:  FormatPublished(p.Published),
		Visibility: string(p.Visibility),
	}, nil
}

// Comment renders a comment with its likes. post may be nil, it is then read.
func (c *Canonicalizer) Comment(ctx context.Context, cm *domain.Comment, post *domain.Post) (*CommentActivity, error) {
	if post == nil {
		var err error
		if post, err = c.q.ReadPostById(ctx, cm.PostId); err != nil {
			return nil, err
		}
	}
	author, err := c.author(ctx, cm.AuthorId)
	if err != nil {
		return nil, err
	}
	likes, err := c.q.ReadLikesByComment(ctx, cm.Id)
	if err != nil {
		return nil, err
	}
	likeCollection, err := c.likeCollection(ctx, likes, cm.UrlId)
	if err != nil {
		return nil, err
	}
	return &CommentActivity{
		Type:        TypeComment,
		Author:      author,
		Comment:     cm.Comment,
		ContentType: cm.ContentType,
		Id:          cm.UrlId,
		Post:        post.UrlId,
		Published:   FormatPublished(cm.Published),
		Likes:       likeCollection,
	}, nil
}

func (c *Canonicalizer) Like(ctx context.Context, l *domain.Like) (*LikeActivity, error) {
	var object string
	if l.OnPost() {
		p, err := c.q.ReadPostById(ctx, *l.PostId)
		if err != nil {
			return nil, err
		}
		object = p.UrlId
	} else {
		cm, err := c.q.ReadCommentById(ctx, *l.CommentId)
		if err != nil {
			return nil, err
		}
		object = cm.UrlId
	}
	return c.like(ctx, l, object)
}

func (c *Canonicalizer) like(ctx context.Context, l *domain.Like, object string) (*LikeActivity, error) {
	author, err := c.author(ctx, l.AuthorId)
	if err != nil {
		return nil, err
	}
	return &LikeActivity{
		Type:      TypeLike,
		Summary:   author.DisplayName + " likes this",
		Author:    author,
		Published: FormatPublished(l.Published),
		Id:        l.UrlId,
		Object:    object,
	}, nil
}

func (c *Canonicalizer) likeCollection(ctx context.Context, likes []domain.Like, object string) (*LikeCollection, error) {
	src := make([]LikeActivity, 0, len(likes))
	for i := range likes {
		lo, err := c.like(ctx, &likes[i], object)
		if err != nil {
			return nil, err
		}
		src = append(src, *lo)
	}
	return &LikeCollection{Type: "likes", Count: len(src), Src: src}, nil
}

// NewFollowActivity builds the follow activity sent to the followed author's node.
func NewFollowActivity(actor, object *domain.Author) FollowActivity {
	return FollowActivity{
		Type:    TypeFollow,
		Summary: actor.DisplayName + " wants to follow " + object.DisplayName,
		Actor:   NewAuthorObject(actor),
		Object:  NewAuthorObject(object),
	}
}
