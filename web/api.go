package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/deemkeen/chartreuse/federation"
	"github.com/gin-gonic/gin"
)

func notFoundAs(err error, what string) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %s", federation.ErrNotFound, what)
	}
	return err
}

func (s *Server) authorParam(ctx context.Context, raw string) (*domain.Author, error) {
	id, err := domain.ExpandAuthorId(s.publicHost, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", federation.ErrBadRequest, err)
	}
	author, err := s.db.ReadAuthorByUrlId(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "author "+id)
	}
	return author, nil
}

// localAuthorParam resolves an author that must have an account here.
func (s *Server) localAuthorParam(ctx context.Context, raw string) (*domain.Author, error) {
	author, err := s.authorParam(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.requireLocal(author); err != nil {
		return nil, err
	}
	return author, nil
}

func (s *Server) postParam(c *gin.Context) (*domain.Author, *domain.Post, error) {
	ctx := c.Request.Context()
	author, err := s.authorParam(ctx, c.Param("author_id"))
	if err != nil {
		return nil, nil, err
	}
	id, err := domain.ExpandChildId(author.UrlId, "posts", c.Param("post_id"))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", federation.ErrBadRequest, err)
	}
	post, err := s.db.ReadPostByUrlId(ctx, id)
	if err != nil {
		return nil, nil, notFoundAs(err, "post "+id)
	}
	if post.AuthorId != author.Id {
		return nil, nil, fmt.Errorf("%w: post %s", federation.ErrNotFound, id)
	}
	return author, post, nil
}

func (s *Server) commentParam(c *gin.Context) (*domain.Comment, error) {
	ctx := c.Request.Context()
	author, err := s.authorParam(ctx, c.Param("author_id"))
	if err != nil {
		return nil, err
	}
	id, err := domain.ExpandChildId(author.UrlId, "commented", c.Param("comment_id"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", federation.ErrBadRequest, err)
	}
	comment, err := s.db.ReadCommentByUrlId(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "comment "+id)
	}
	if comment.AuthorId != author.Id {
		return nil, fmt.Errorf("%w: comment %s", federation.ErrNotFound, id)
	}
	return comment, nil
}

func (s *Server) canonical() *federation.Canonicalizer {
	return federation.NewCanonicalizer(s.db.Queries)
}

func (s *Server) handleListAuthors(c *gin.Context) {
	authors, err := s.db.ReadLocalAuthors(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]federation.AuthorObject, 0, len(authors))
	for i := range authors {
		items = append(items, federation.NewAuthorObject(&authors[i]))
	}
	c.JSON(http.StatusOK, gin.H{"type": "authors", "items": items})
}

func (s *Server) handleGetAuthor(c *gin.Context) {
	author, err := s.authorParam(c.Request.Context(), c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, federation.NewAuthorObject(author))
}

func (s *Server) handleListPosts(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.authorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	posts, err := s.db.ReadPostsByAuthor(ctx, author.Id, domain.PUBLIC)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]*federation.PostActivity, 0, len(posts))
	for i := range posts {
		obj, err := s.canonical().Post(ctx, &posts[i])
		if err != nil {
			respondError(c, err)
			return
		}
		items = append(items, obj)
	}
	c.JSON(http.StatusOK, gin.H{"type": "posts", "items": items})
}

// handleGetPost serves the canonical post. Soft-deleted posts answer 410
// with their tombstone so that peers can still apply the deletion.
func (s *Server) handleGetPost(c *gin.Context) {
	_, post, err := s.postParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	obj, err := s.canonical().Post(c.Request.Context(), post)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if post.Visibility == domain.DELETED {
		status = http.StatusGone
	}
	c.JSON(status, obj)
}

func (s *Server) handleListComments(c *gin.Context) {
	_, post, err := s.postParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	obj, err := s.canonical().Post(c.Request.Context(), post)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj.Comments)
}

func (s *Server) handleListPostLikes(c *gin.Context) {
	_, post, err := s.postParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	obj, err := s.canonical().Post(c.Request.Context(), post)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj.Likes)
}

func (s *Server) handleGetComment(c *gin.Context) {
	comment, err := s.commentParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	obj, err := s.canonical().Comment(c.Request.Context(), comment, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (s *Server) handleListCommentLikes(c *gin.Context) {
	comment, err := s.commentParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	obj, err := s.canonical().Comment(c.Request.Context(), comment, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj.Likes)
}

func (s *Server) handleGetLike(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.authorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	id, err := domain.ExpandChildId(author.UrlId, "liked", c.Param("like_id"))
	if err != nil {
		respondError(c, fmt.Errorf("%w: %v", federation.ErrBadRequest, err))
		return
	}
	like, err := s.db.ReadLikeByUrlId(ctx, id)
	if err != nil {
		respondError(c, notFoundAs(err, "like "+id))
		return
	}
	obj, err := s.canonical().Like(ctx, like)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (s *Server) handleListFollowers(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.authorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	followers, err := s.db.ReadFollowers(ctx, author.Id)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]federation.AuthorObject, 0, len(followers))
	for i := range followers {
		items = append(items, federation.NewAuthorObject(&followers[i]))
	}
	c.JSON(http.StatusOK, gin.H{"type": "followers", "items": items})
}

func (s *Server) handleListLiked(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.authorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	likes, err := s.db.ReadLikesByAuthor(ctx, author.Id)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]*federation.LikeActivity, 0, len(likes))
	for i := range likes {
		obj, err := s.canonical().Like(ctx, &likes[i])
		if err != nil {
			respondError(c, err)
			return
		}
		items = append(items, obj)
	}
	c.JSON(http.StatusOK, gin.H{"type": "liked", "items": items})
}

func (s *Server) handleCheckFollower(c *gin.Context) {
	ctx := c.Request.Context()
	followed, err := s.authorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	follower, err := s.authorParam(ctx, c.Param("follower_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := s.db.ReadFollow(ctx, follower.Id, followed.Id); err != nil {
		respondError(c, notFoundAs(err, follower.UrlId+" does not follow "+followed.UrlId))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Is a follower", "follower": federation.NewAuthorObject(follower)})
}

// handleListFriends lists mutual follows, the audience of FRIENDS posts.
func (s *Server) handleListFriends(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.authorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	friends, err := s.db.ReadFriends(ctx, author.Id)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]federation.AuthorObject, 0, len(friends))
	for i := range friends {
		items = append(items, federation.NewAuthorObject(&friends[i]))
	}
	c.JSON(http.StatusOK, gin.H{"type": "friends", "items": items})
}

func (s *Server) handleCheckFriendship(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.authorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	other, err := s.authorParam(ctx, c.Param("friend_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	friends, err := s.db.AreFriends(ctx, author.Id, other.Id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_friend": friends})
}
