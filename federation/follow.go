package federation

import (
	"context"
	"errors"
	"fmt"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/rs/zerolog/log"
)

// FollowOutcome describes what a follow request did.
type FollowOutcome struct {
	Status  string
	Request *domain.FollowRequest
	Report  *DispatchReport
}

// Follows runs the follow workflow of local authors. Approval always happens
// on the followed author's home node: requests to remote authors are
// recorded as pending here and delivered as a follow activity, never turned
// into a Follow locally.
type Follows struct {
	db         *db.DB
	registry   *Registry
	dispatcher *Dispatcher
	publicHost string
}

func NewFollows(database *db.DB, registry *Registry, dispatcher *Dispatcher, publicHost string) *Follows {
	return &Follows{
		db:         database,
		registry:   registry,
		dispatcher: dispatcher,
		publicHost: domain.NormalizeHost(publicHost),
	}
}

// Request makes the local author requester ask to follow the author with
// objectId. Existing follows short-circuit. A pending request to a remote
// author is delivered again, since the home node may not have received it.
func (f *Follows) Request(ctx context.Context, requester *domain.Author, objectId string) (*FollowOutcome, error) {
	if !domain.SameHost(requester.Host, f.publicHost) {
		return nil, fmt.Errorf("%w: %s is not a local author", ErrBadRequest, requester.UrlId)
	}
	objectId = normalizeId(objectId)
	if objectId == "" {
		return nil, fmt.Errorf("%w: object is required", ErrBadRequest)
	}

	object, err := f.db.ReadAuthorByUrlId(ctx, objectId)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: author %s", ErrNotFound, objectId)
	}
	if err != nil {
		return nil, err
	}
	if object.Id == requester.Id {
		return nil, fmt.Errorf("%w: an author cannot follow itself", ErrBadRequest)
	}

	var node *domain.Node
	remote := !domain.SameHost(object.Host, f.publicHost)
	if remote {
		node, err = f.registry.FindNode(ctx, object.Host, domain.OUTGOING)
		if err != nil {
			return nil, fmt.Errorf("%w: no enabled outgoing node for %s", ErrBadRequest, object.Host)
		}
	}

	outcome := &FollowOutcome{}
	err = f.db.WithTx(ctx, func(q *db.Queries) error {
		if _, err := q.ReadFollow(ctx, requester.Id, object.Id); err == nil {
			outcome.Status = "Already following"
			return nil
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}
		if req, err := q.ReadFollowRequest(ctx, requester.Id, object.Id); err == nil {
			outcome.Status = "Follow request already exists"
			if remote {
				outcome.Status = "Follow request sent again"
			}
			outcome.Request = req
			return nil
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}
		req, err := q.CreateFollowRequest(ctx, requester.Id, object.Id)
		if err != nil {
			return err
		}
		outcome.Status = "Follow request sent successfully"
		outcome.Request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	if remote && outcome.Status != "Already following" {
		outcome.Report = f.dispatcher.SendFollow(ctx, node, requester, object)
		log.Info().
			Str("requester", requester.UrlId).
			Str("object", object.UrlId).
			Int("failed", outcome.Report.Failed()).
			Msg("Follows: Sent remote follow request")
	}
	return outcome, nil
}

// Pending lists the follow requests waiting for author's approval.
func (f *Follows) Pending(ctx context.Context, author *domain.Author) ([]domain.FollowRequest, error) {
	return f.db.ReadFollowRequestsTo(ctx, author.Id)
}

// Accept turns a pending request into a Follow. Only the followed author's
// home node may accept.
func (f *Follows) Accept(ctx context.Context, requestId int64) (*domain.Follow, error) {
	var follow *domain.Follow
	err := f.db.WithTx(ctx, func(q *db.Queries) error {
		req, err := q.ReadFollowRequestById(ctx, requestId)
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: follow request %d", ErrNotFound, requestId)
		}
		if err != nil {
			return err
		}
		requestee, err := q.ReadAuthorById(ctx, req.RequesteeId)
		if err != nil {
			return err
		}
		if !domain.SameHost(requestee.Host, f.publicHost) {
			return fmt.Errorf("%w: requests to %s are accepted on its home node", ErrBadRequest, requestee.UrlId)
		}

		follow, err = q.ReadFollow(ctx, req.RequesterId, req.RequesteeId)
		if errors.Is(err, db.ErrNotFound) {
			follow, err = q.CreateFollow(ctx, req.RequesterId, req.RequesteeId)
		}
		if err != nil {
			return err
		}
		return q.DeleteFollowRequest(ctx, req.Id)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("follower", follow.FollowerId).Int64("followed", follow.FollowedId).Msg("Follows: Accepted follow request")
	return follow, nil
}

// Reject deletes a pending request without creating a Follow.
func (f *Follows) Reject(ctx context.Context, requestId int64) error {
	err := f.db.DeleteFollowRequest(ctx, requestId)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: follow request %d", ErrNotFound, requestId)
	}
	return err
}

// Unfollow removes the follower -> followed edge.
func (f *Follows) Unfollow(ctx context.Context, followedId, followerId int64) error {
	err := f.db.DeleteFollow(ctx, followerId, followedId)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: follow", ErrNotFound)
	}
	return err
}
