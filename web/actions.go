package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/deemkeen/chartreuse/federation"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type deliverySummary struct {
	Attempted int                   `json:"attempted"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Details   []federation.Delivery `json:"details"`
}

func summarize(r *federation.DispatchReport) deliverySummary {
	if r == nil {
		return deliverySummary{Details: []federation.Delivery{}}
	}
	details := r.Deliveries
	if details == nil {
		details = []federation.Delivery{}
	}
	return deliverySummary{
		Attempted: len(r.Deliveries),
		Succeeded: r.Succeeded(),
		Failed:    r.Failed(),
		Details:   details,
	}
}

// report logs a dispatch that could not even compute its targets. The local
// action has already been committed and stays successful.
func report(r *federation.DispatchReport, err error, object string) *federation.DispatchReport {
	if err != nil {
		log.Warn().Err(err).Str("object", object).Msg("Fan-out skipped")
		return nil
	}
	return r
}

func bindRequest(c *gin.Context, req validation.Validatable) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", federation.ErrBadRequest, err)
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", federation.ErrBadRequest, err)
	}
	return nil
}

func (s *Server) requireLocal(author *domain.Author) error {
	if !domain.SameHost(author.Host, s.publicHost) {
		return fmt.Errorf("%w: %s is not a local author", federation.ErrBadRequest, author.UrlId)
	}
	return nil
}

func (s *Server) handleCreateAuthor(c *gin.Context) {
	var req createAuthorRequest
	if err := bindRequest(c, &req); err != nil {
		respondError(c, err)
		return
	}
	var author *domain.Author
	err := s.db.WithTx(c.Request.Context(), func(q *db.Queries) error {
		var err error
		author, err = q.CreateLocalAuthor(c.Request.Context(), s.publicHost, req.descriptor(), req.Username)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	log.Info().Str("author", author.UrlId).Str("username", req.Username).Msg("Created local author")
	c.JSON(http.StatusCreated, federation.NewAuthorObject(author))
}

func (s *Server) handleUpdateAuthor(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.localAuthorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req updateAuthorRequest
	if err := bindRequest(c, &req); err != nil {
		respondError(c, err)
		return
	}
	req.apply(author)
	if err := s.db.UpdateAuthorProfile(ctx, author); err != nil {
		respondError(c, notFoundAs(err, "author "+author.UrlId))
		return
	}
	c.JSON(http.StatusOK, federation.NewAuthorObject(author))
}

// handleDeleteAuthor removes a local author and everything it owns. Peers
// keep their copies.
func (s *Server) handleDeleteAuthor(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.localAuthorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.db.DeleteAuthor(ctx, author.Id); err != nil {
		respondError(c, notFoundAs(err, "author "+author.UrlId))
		return
	}
	log.Info().Str("author", author.UrlId).Msg("Deleted local author")
	c.JSON(http.StatusOK, gin.H{"success": "Author deleted successfully"})
}

func (s *Server) handleCreatePost(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.localAuthorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req createPostRequest
	if err := bindRequest(c, &req); err != nil {
		respondError(c, err)
		return
	}
	post := req.post()
	post.Published = time.Now().UTC()
	err = s.db.WithTx(ctx, func(q *db.Queries) error {
		return q.CreateLocalPost(ctx, author, post)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	r, err := s.dispatcher.SendPost(ctx, post)
	c.JSON(http.StatusCreated, gin.H{
		"success":    "Post created successfully",
		"id":         post.UrlId,
		"deliveries": summarize(report(r, err, post.UrlId)),
	})
}

func (s *Server) handleUpdatePost(c *gin.Context) {
	var req updatePostRequest
	if err := bindRequest(c, &req); err != nil {
		respondError(c, err)
		return
	}
	s.changePost(c, "Post updated successfully", req.apply)
}

// handleDeletePost marks the post DELETED. Peers learn about it through the
// same update path as any other edit.
func (s *Server) handleDeletePost(c *gin.Context) {
	s.changePost(c, "Post deleted successfully", func(p *domain.Post) {
		p.Visibility = domain.DELETED
	})
}

func (s *Server) changePost(c *gin.Context, status string, change func(*domain.Post)) {
	ctx := c.Request.Context()
	author, post, err := s.postParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.requireLocal(author); err != nil {
		respondError(c, err)
		return
	}
	if post.Visibility == domain.DELETED {
		respondError(c, fmt.Errorf("%w: post %s is deleted", federation.ErrNotFound, post.UrlId))
		return
	}
	change(post)
	if err := s.db.UpdatePostContent(ctx, post); err != nil {
		respondError(c, notFoundAs(err, "post "+post.UrlId))
		return
	}
	r, err := s.dispatcher.SendPost(ctx, post)
	c.JSON(http.StatusOK, gin.H{
		"success":    status,
		"id":         post.UrlId,
		"deliveries": summarize(report(r, err, post.UrlId)),
	})
}

func (s *Server) handleCreateComment(c *gin.Context) {
	ctx := c.Request.Context()
	_, post, err := s.postParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if post.Visibility == domain.DELETED {
		respondError(c, fmt.Errorf("%w: post %s is deleted", federation.ErrNotFound, post.UrlId))
		return
	}
	var req commentRequest
	if err := bindRequest(c, &req); err != nil {
		respondError(c, err)
		return
	}
	commenter, err := s.localAuthorParam(ctx, req.Author)
	if err != nil {
		respondError(c, err)
		return
	}

	comment := &domain.Comment{
		PostId:      post.Id,
		Comment:     req.Comment,
		ContentType: req.ContentType,
		Published:   time.Now().UTC(),
	}
	if comment.ContentType == "" {
		comment.ContentType = defaultContentType
	}
	err = s.db.WithTx(ctx, func(q *db.Queries) error {
		return q.CreateLocalComment(ctx, commenter, comment)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	r, err := s.dispatcher.SendComment(ctx, comment)
	c.JSON(http.StatusCreated, gin.H{
		"success":    "Comment added successfully",
		"id":         comment.UrlId,
		"deliveries": summarize(report(r, err, comment.UrlId)),
	})
}

func (s *Server) handleTogglePostLike(c *gin.Context) {
	_, post, err := s.postParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	s.toggleLike(c, &domain.Like{PostId: &post.Id})
}

func (s *Server) handleToggleCommentLike(c *gin.Context) {
	comment, err := s.commentParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	s.toggleLike(c, &domain.Like{CommentId: &comment.Id})
}

// toggleLike removes an existing like of the author on the same target, or
// creates one and fans it out. Removals are not federated.
func (s *Server) toggleLike(c *gin.Context, like *domain.Like) {
	ctx := c.Request.Context()
	var req likeRequest
	if err := bindRequest(c, &req); err != nil {
		respondError(c, err)
		return
	}
	liker, err := s.localAuthorParam(ctx, req.Author)
	if err != nil {
		respondError(c, err)
		return
	}

	existing, err := s.findLike(ctx, liker, like)
	if err == nil {
		if err := s.db.DeleteLike(ctx, existing.Id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": "Like removed successfully", "id": existing.UrlId, "liked": false})
		return
	}
	if !errors.Is(err, federation.ErrNotFound) {
		respondError(c, err)
		return
	}

	like.Published = time.Now().UTC()
	err = s.db.WithTx(ctx, func(q *db.Queries) error {
		return q.CreateLocalLike(ctx, liker, like)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	r, err := s.dispatcher.SendLike(ctx, like)
	c.JSON(http.StatusCreated, gin.H{
		"success":    "Like added successfully",
		"id":         like.UrlId,
		"liked":      true,
		"deliveries": summarize(report(r, err, like.UrlId)),
	})
}

func (s *Server) findLike(ctx context.Context, liker *domain.Author, like *domain.Like) (*domain.Like, error) {
	var (
		existing *domain.Like
		err      error
	)
	if like.OnPost() {
		existing, err = s.db.FindPostLike(ctx, liker.Id, *like.PostId)
	} else {
		existing, err = s.db.FindCommentLike(ctx, liker.Id, *like.CommentId)
	}
	if err != nil {
		return nil, notFoundAs(err, "like")
	}
	return existing, nil
}

type followRequestView struct {
	Id        int64                   `json:"id"`
	Type      string                  `json:"type"`
	Actor     federation.AuthorObject `json:"actor"`
	Object    federation.AuthorObject `json:"object"`
	CreatedAt string                  `json:"createdAt"`
}

func (s *Server) handleListFollowRequests(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.localAuthorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	pending, err := s.follows.Pending(ctx, author)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]followRequestView, 0, len(pending))
	for _, req := range pending {
		actor, err := s.db.ReadAuthorById(ctx, req.RequesterId)
		if err != nil {
			respondError(c, err)
			return
		}
		items = append(items, followRequestView{
			Id:        req.Id,
			Type:      federation.TypeFollow,
			Actor:     federation.NewAuthorObject(actor),
			Object:    federation.NewAuthorObject(author),
			CreatedAt: federation.FormatPublished(req.CreatedAt),
		})
	}
	c.JSON(http.StatusOK, gin.H{"type": "follow_requests", "items": items})
}

func (s *Server) handleRequestFollow(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := s.localAuthorParam(ctx, c.Param("author_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req followRequestBody
	if err := bindRequest(c, &req); err != nil {
		respondError(c, err)
		return
	}
	outcome, err := s.follows.Request(ctx, author, req.Object)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{
		"success":    outcome.Status,
		"deliveries": summarize(outcome.Report),
	}
	if outcome.Request != nil {
		resp["id"] = outcome.Request.Id
	}
	c.JSON(http.StatusOK, resp)
}

func requestIdParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("request_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: malformed follow request id %q", federation.ErrBadRequest, c.Param("request_id"))
	}
	return id, nil
}

func (s *Server) handleAcceptFollowRequest(c *gin.Context) {
	id, err := requestIdParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	follow, err := s.follows.Accept(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Follow request accepted", "id": follow.Id})
}

func (s *Server) handleRejectFollowRequest(c *gin.Context) {
	id, err := requestIdParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.follows.Reject(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Follow request rejected"})
}

func (s *Server) handleUnfollow(c *gin.Context) {
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
	if err := s.follows.Unfollow(ctx, followed.Id, follower.Id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Unfollowed successfully"})
}
