package federation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/rs/zerolog/log"
)

// Registry looks up peers and authenticates inbound callers.
type Registry struct {
	db *db.DB
}

func NewRegistry(database *db.DB) *Registry {
	return &Registry{db: database}
}

// FindNode returns the ENABLED node for host and direction. A missing or
// disabled node is ErrNotFound.
func (r *Registry) FindNode(ctx context.Context, host string, direction domain.NodeDirection) (*domain.Node, error) {
	node, err := r.db.ReadNode(ctx, host, direction)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !node.Enabled()) {
		return nil, fmt.Errorf("%w: no enabled %s node for %s", ErrNotFound, direction, host)
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

// OutgoingNodes lists the peers we are allowed to push to.
func (r *Registry) OutgoingNodes(ctx context.Context) ([]domain.Node, error) {
	return r.db.ReadNodesByDirection(ctx, domain.OUTGOING, domain.ENABLED)
}

// Authenticate checks an Authorization header carrying HTTP Basic
// credentials. Credentials held by any DISABLED node are rejected.
func (r *Registry) Authenticate(ctx context.Context, authHeader string) (*domain.Node, error) {
	username, password, ok := parseBasicAuth(authHeader)
	if !ok {
		return nil, fmt.Errorf("%w: malformed basic credentials", ErrUnauthorized)
	}

	nodes, err := r.db.ReadNodesByCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		if !nodes[i].Enabled() {
			log.Warn().Str("username", username).Str("host", nodes[i].Host).Msg("Registry: Rejecting credentials of disabled node")
			return nil, fmt.Errorf("%w: node disabled", ErrUnauthorized)
		}
	}
	if len(nodes) > 0 {
		return &nodes[0], nil
	}
	return nil, fmt.Errorf("%w: unknown credentials", ErrUnauthorized)
}

func parseBasicAuth(header string) (username, password string, ok bool) {
	const prefix = "basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}
