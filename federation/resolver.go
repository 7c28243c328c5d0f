package federation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/rs/zerolog/log"
)

// Resolver maps author descriptors from remote payloads onto exactly one
// local row per url id.
type Resolver struct {
	publicHost string
}

func NewResolver(publicHost string) *Resolver {
	return &Resolver{publicHost: domain.NormalizeHost(publicHost)}
}

// Resolve returns the author with obj.Id, creating a remote author from obj
// when it is unseen. An existing author is returned unchanged. Ids under
// this node's public host are never created from a payload.
func (r *Resolver) Resolve(ctx context.Context, q *db.Queries, obj AuthorObject) (*domain.Author, error) {
	urlId := normalizeId(obj.Id)
	u, err := url.Parse(urlId)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: malformed author id %q", ErrBadRequest, obj.Id)
	}

	if r.isLocalId(urlId) {
		author, err := q.ReadAuthorByUrlId(ctx, urlId)
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown local author %s", ErrNotFound, urlId)
		}
		return author, err
	}

	desc := obj.Descriptor()
	if desc.Host == "" {
		desc.Host = fmt.Sprintf("%s://%s/", u.Scheme, u.Host)
	}

	author, created, err := q.GetOrCreateAuthor(ctx, urlId, desc)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info().Str("author", urlId).Str("host", author.Host).Msg("Resolver: Discovered remote author")
	}
	return author, nil
}

// normalizeId gives one object one key regardless of surrounding whitespace
// or trailing slashes.
func normalizeId(id string) string {
	return strings.TrimRight(strings.TrimSpace(id), "/")
}

// ownedHere reports whether author has its home on this node. Objects of
// such authors only change through the local API.
func (r *Resolver) ownedHere(author *domain.Author) bool {
	return r.isLocalId(author.UrlId)
}

func (r *Resolver) isLocalId(urlId string) bool {
	return r.publicHost != "" && strings.HasPrefix(strings.ToLower(urlId), strings.ToLower(r.publicHost))
}
