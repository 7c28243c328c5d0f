package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/deemkeen/chartreuse/federation"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
	"github.com/rs/zerolog/log"
)

const feedLimit = 50

// GetRSS renders the PUBLIC posts of one author, or of every local author
// when authorId is empty. authorId is a bare serial or a url id.
func GetRSS(ctx context.Context, database *db.DB, publicHost string, authorId string) (string, error) {
	var (
		posts  []domain.Post
		author *domain.Author
		err    error
	)
	link := domain.NormalizeHost(publicHost) + "authors"
	title := "All chartreuse posts"

	if authorId != "" {
		id, err := domain.ExpandAuthorId(publicHost, authorId)
		if err != nil {
			return "", fmt.Errorf("%w: %v", federation.ErrBadRequest, err)
		}
		author, err = database.ReadAuthorByUrlId(ctx, id)
		if err != nil {
			return "", notFoundAs(err, "author "+id)
		}
		posts, err = database.ReadPostsByAuthor(ctx, author.Id, domain.PUBLIC)
		if err != nil {
			return "", err
		}
		title = fmt.Sprintf("chartreuse posts - %s", author.DisplayName)
		link = author.UrlId
	} else {
		posts, err = database.ReadLocalPosts(ctx, domain.PUBLIC, feedLimit)
		if err != nil {
			return "", err
		}
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: "public posts of a chartreuse node",
		Created:     time.Now(),
	}
	if author != nil {
		feed.Author = &feeds.Author{Name: author.DisplayName}
	}

	names := map[int64]string{}
	for _, p := range posts {
		name, ok := names[p.AuthorId]
		if !ok {
			a, err := database.ReadAuthorById(ctx, p.AuthorId)
			if err != nil {
				return "", err
			}
			name = a.DisplayName
			names[p.AuthorId] = name
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          p.UrlId,
			Title:       p.Title,
			Link:        &feeds.Link{Href: p.UrlId},
			Description: p.Description,
			Content:     p.Content,
			Author:      &feeds.Author{Name: name},
			Created:     p.Published,
		})
	}
	return feed.ToRss()
}

func (s *Server) handleFeed(c *gin.Context) {
	rss, err := GetRSS(c.Request.Context(), s.db, s.publicHost, c.Query("author"))
	if err != nil {
		log.Warn().Err(err).Str("author", c.Query("author")).Msg("Could not render feed")
		respondError(c, err)
		return
	}
	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, rss)
}
