package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/deemkeen/chartreuse/federation"
	"github.com/deemkeen/chartreuse/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Server holds the federation components behind the HTTP API.
type Server struct {
	conf       *util.AppConfig
	db         *db.DB
	publicHost string
	inbox      *federation.Inbox
	dispatcher *federation.Dispatcher
	follows    *federation.Follows

	globalRate  rate.Limit
	globalBurst int
	inboxRate   rate.Limit
	inboxBurst  int
}

func NewServer(conf *util.AppConfig, database *db.DB) *Server {
	publicHost := domain.NormalizeHost(conf.Conf.PublicHost)
	registry := federation.NewRegistry(database)
	dispatcher := federation.NewDispatcher(database, registry, federation.DispatcherConfig{
		PublicHost:  publicHost,
		Timeout:     conf.DeliveryTimeout(),
		Concurrency: conf.DeliveryConcurrency(),
	})
	return &Server{
		conf:       conf,
		db:         database,
		publicHost: publicHost,
		inbox:      federation.NewInbox(database, registry, federation.NewResolver(publicHost), publicHost),
		dispatcher: dispatcher,
		follows:    federation.NewFollows(database, registry, dispatcher, publicHost),

		// 10 requests per second per IP, burst of 20
		globalRate:  rate.Limit(10),
		globalBurst: 20,
		// federation traffic: 5 req/sec per IP
		inboxRate:  rate.Limit(5),
		inboxBurst: 10,
	}
}

// apiPrefix is the path of the public host, e.g. "/chartreuse/api".
func (s *Server) apiPrefix() string {
	u, err := url.Parse(s.publicHost)
	if err != nil || u.Path == "" {
		return "/"
	}
	return strings.TrimRight(u.Path, "/")
}

// Handler builds the gin engine with every route of the node.
func (s *Server) Handler() *gin.Engine {
	g := gin.New()
	g.Use(RequestLogger(), gin.Recovery())
	g.Use(gzip.Gzip(gzip.DefaultCompression))
	// Path parameters may carry URL-encoded url ids containing slashes.
	g.UseRawPath = true
	g.UnescapePathValues = true

	g.Use(RateLimitMiddleware(NewRateLimiter("global", s.globalRate, s.globalBurst)))

	g.GET("/metrics", gin.WrapH(promhttp.Handler()))
	g.GET("/feed", s.handleFeed)

	api := g.Group(s.apiPrefix())
	api.GET("/authors", s.handleListAuthors)
	api.POST("/authors", s.handleCreateAuthor)
	api.GET("/authors/:author_id", s.handleGetAuthor)
	api.PUT("/authors/:author_id", s.handleUpdateAuthor)
	api.DELETE("/authors/:author_id", s.handleDeleteAuthor)

	api.GET("/authors/:author_id/posts", s.handleListPosts)
	api.POST("/authors/:author_id/posts", s.handleCreatePost)
	api.GET("/authors/:author_id/posts/:post_id", s.handleGetPost)
	api.PUT("/authors/:author_id/posts/:post_id", s.handleUpdatePost)
	api.DELETE("/authors/:author_id/posts/:post_id", s.handleDeletePost)
	api.GET("/authors/:author_id/posts/:post_id/comments", s.handleListComments)
	api.POST("/authors/:author_id/posts/:post_id/comments", s.handleCreateComment)
	api.GET("/authors/:author_id/posts/:post_id/likes", s.handleListPostLikes)
	api.POST("/authors/:author_id/posts/:post_id/likes", s.handleTogglePostLike)

	api.GET("/authors/:author_id/commented/:comment_id", s.handleGetComment)
	api.GET("/authors/:author_id/commented/:comment_id/likes", s.handleListCommentLikes)
	api.POST("/authors/:author_id/commented/:comment_id/likes", s.handleToggleCommentLike)
	api.GET("/authors/:author_id/liked", s.handleListLiked)
	api.GET("/authors/:author_id/liked/:like_id", s.handleGetLike)

	api.GET("/authors/:author_id/followers", s.handleListFollowers)
	api.GET("/authors/:author_id/followers/:follower_id", s.handleCheckFollower)
	api.GET("/authors/:author_id/friends", s.handleListFriends)
	api.GET("/authors/:author_id/friends/:friend_id", s.handleCheckFriendship)
	api.DELETE("/authors/:author_id/followers/:follower_id", s.handleUnfollow)
	api.GET("/authors/:author_id/follow_requests", s.handleListFollowRequests)
	api.POST("/authors/:author_id/follow_requests", s.handleRequestFollow)
	api.POST("/follow_requests/:request_id/accept", s.handleAcceptFollowRequest)
	api.DELETE("/follow_requests/:request_id", s.handleRejectFollowRequest)

	inboxLimiter := NewRateLimiter("inbox", s.inboxRate, s.inboxBurst)
	// Max 1MB request body size for inbox activities
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)
	api.POST("/authors/:author_id/inbox", RateLimitMiddleware(inboxLimiter), maxBodySize, s.handleInbox)

	return g
}

func (s *Server) handleInbox(c *gin.Context) {
	body, err := c.GetRawData()
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Inbox: Failed to read body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	res, err := s.inbox.Process(c.Request.Context(), c.Param("author_id"), c.GetHeader("Authorization"), body, c.GetHeader("X-Original-Host"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": res.Status})
}

// respondError writes the JSON error body for err with its taxonomy status.
func respondError(c *gin.Context, err error) {
	status := federation.StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
