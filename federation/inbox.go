package federation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InboxResult is the acknowledgement returned to the sending node.
type InboxResult struct {
	Status string
	Type   string
}

// Inbox applies activities pushed by peer nodes.
type Inbox struct {
	db         *db.DB
	registry   *Registry
	resolver   *Resolver
	publicHost string
}

func NewInbox(database *db.DB, registry *Registry, resolver *Resolver, publicHost string) *Inbox {
	return &Inbox{
		db:         database,
		registry:   registry,
		resolver:   resolver,
		publicHost: domain.NormalizeHost(publicHost),
	}
}

// Process handles one inbox request for the author named by rawAuthorId.
// Checks run in a fixed order: target author (404), Authorization header
// (401), node credentials (401), payload (400). The activity is then applied
// in a single transaction.
func (ib *Inbox) Process(ctx context.Context, rawAuthorId, authHeader string, body []byte, originHost string) (result *InboxResult, err error) {
	ctx, span := tracer.Start(ctx, "inbox.process", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	kind := "unknown"
	defer func() {
		inboxActivities.WithLabelValues(kind, resultLabel(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	targetId, err := domain.ExpandAuthorId(ib.publicHost, rawAuthorId)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	target, err := ib.db.ReadAuthorByUrlId(ctx, targetId)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: author %s", ErrNotFound, targetId)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(authHeader) == "" {
		return nil, fmt.Errorf("%w: missing Authorization header", ErrUnauthorized)
	}
	node, err := ib.registry.Authenticate(ctx, authHeader)
	if err != nil {
		log.Warn().Err(err).Str("origin", originHost).Msg("Inbox: Authentication failed")
		return nil, err
	}

	activity, err := ParseActivity(body)
	if err != nil {
		log.Warn().Err(err).Str("node", node.Host).Msg("Inbox: Rejected payload")
		return nil, err
	}
	kind = activity.Kind()
	span.SetAttributes(
		attribute.String("activity.type", kind),
		attribute.String("activity.object", activity.ObjectId()),
		attribute.String("node.host", node.Host),
	)

	if originHost == "" {
		originHost = node.Host
	}

	err = ib.db.WithTx(ctx, func(q *db.Queries) error {
		status, err := ib.apply(ctx, q, activity)
		if err != nil {
			return err
		}
		result = &InboxResult{Status: status, Type: kind}
		return q.CreateActivity(ctx, &domain.InboundActivity{
			Id:           uuid.NewString(),
			ActivityType: kind,
			ObjectURI:    activity.ObjectId(),
			TargetURI:    target.UrlId,
			OriginHost:   originHost,
			RawJSON:      string(body),
		})
	})
	if err != nil {
		log.Error().Err(err).Str("type", kind).Str("object", activity.ObjectId()).Msg("Inbox: Failed to apply activity")
		return nil, err
	}

	log.Info().Str("type", kind).Str("object", activity.ObjectId()).Str("node", node.Host).Msg("Inbox: " + result.Status)
	return result, nil
}

func (ib *Inbox) apply(ctx context.Context, q *db.Queries, activity Activity) (string, error) {
	switch a := activity.(type) {
	case PostActivity:
		return ib.applyPost(ctx, q, a)
	case CommentActivity:
		return ib.applyComment(ctx, q, a)
	case LikeActivity:
		return ib.applyLike(ctx, q, a)
	case FollowActivity:
		return ib.applyFollow(ctx, q, a)
	}
	return "", fmt.Errorf("%w: unsupported activity %T", ErrBadRequest, activity)
}

func (ib *Inbox) applyPost(ctx context.Context, q *db.Queries, a PostActivity) (string, error) {
	id := normalizeId(a.Id)
	if ib.resolver.isLocalId(id) {
		return "", fmt.Errorf("%w: post %s is owned by this node", ErrBadRequest, id)
	}
	author, err := ib.resolver.Resolve(ctx, q, a.Author)
	if err != nil {
		return "", err
	}
	if ib.resolver.ownedHere(author) {
		return "", fmt.Errorf("%w: author %s is owned by this node", ErrBadRequest, author.UrlId)
	}

	visibility := domain.PUBLIC
	if a.Visibility != "" {
		// Validated by PostActivity.Validate.
		visibility, _ = domain.ParseVisibility(a.Visibility)
	}

	existing, err := q.ReadPostByUrlId(ctx, id)
	switch {
	case err == nil:
		if existing.AuthorId != author.Id {
			return "", fmt.Errorf("%w: post %s belongs to another author", ErrBadRequest, id)
		}
		existing.Title = a.Title
		existing.Description = a.Description
		existing.ContentType = a.ContentType
		existing.Content = a.Content
		existing.Visibility = visibility
		if err := q.UpdatePostContent(ctx, existing); err != nil {
			return "", err
		}
		return "Post updated successfully", nil
	case !errors.Is(err, db.ErrNotFound):
		return "", err
	}

	published, _ := ParsePublished(a.Published)
	post := &domain.Post{
		UrlId:       id,
		AuthorId:    author.Id,
		Title:       a.Title,
		Description: a.Description,
		ContentType: a.ContentType,
		Content:     a.Content,
		Visibility:  visibility,
		Published:   published,
	}
	if err := q.CreatePost(ctx, post); err != nil {
		return "", err
	}

	for _, c := range a.Comments.Src {
		if _, err := ib.storeComment(ctx, q, post, c); err != nil {
			return "", err
		}
	}
	for _, l := range a.Likes.Src {
		if _, err := ib.storeLike(ctx, q, l, &post.Id, nil); err != nil {
			return "", err
		}
	}
	return "Post added successfully", nil
}

func (ib *Inbox) applyComment(ctx context.Context, q *db.Queries, a CommentActivity) (string, error) {
	post, err := q.ReadPostByUrlId(ctx, normalizeId(a.Post))
	if errors.Is(err, db.ErrNotFound) {
		return "", fmt.Errorf("%w: post %s", ErrNotFound, a.Post)
	}
	if err != nil {
		return "", err
	}
	created, err := ib.storeComment(ctx, q, post, a)
	if err != nil {
		return "", err
	}
	if !created {
		return "Comment already exists", nil
	}
	return "Comment added successfully", nil
}

// storeComment creates a comment on post unless it is already known, then
// applies its embedded likes. A comment is known by its id, or for id-less
// payloads by (text, author, post).
func (ib *Inbox) storeComment(ctx context.Context, q *db.Queries, post *domain.Post, a CommentActivity) (bool, error) {
	author, err := ib.resolver.Resolve(ctx, q, a.Author)
	if err != nil {
		return false, err
	}

	id := normalizeId(a.Id)
	fromPayload := id != ""
	var comment *domain.Comment
	if fromPayload {
		comment, err = q.ReadCommentByUrlId(ctx, id)
	} else {
		comment, err = q.FindComment(ctx, a.Comment, author.Id, post.Id)
		id = fmt.Sprintf("%s/comments/%s", post.UrlId, uuid.NewString())
	}
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return false, err
	}

	created := false
	if comment == nil {
		if (fromPayload && ib.resolver.isLocalId(id)) || ib.resolver.ownedHere(author) {
			return false, fmt.Errorf("%w: comment %s of a local author is unknown here", ErrBadRequest, a.Id)
		}
		published, _ := ParsePublished(a.Published)
		comment = &domain.Comment{
			UrlId:       id,
			AuthorId:    author.Id,
			PostId:      post.Id,
			Comment:     a.Comment,
			ContentType: a.ContentType,
			Published:   published,
		}
		if err := q.CreateComment(ctx, comment); err != nil {
			return false, err
		}
		created = true
	}

	if a.Likes != nil {
		for _, l := range a.Likes.Src {
			if _, err := ib.storeLike(ctx, q, l, nil, &comment.Id); err != nil {
				return false, err
			}
		}
	}
	return created, nil
}

func (ib *Inbox) applyLike(ctx context.Context, q *db.Queries, a LikeActivity) (string, error) {
	object := normalizeId(a.Object)

	var postId, commentId *int64
	post, err := q.ReadPostByUrlId(ctx, object)
	switch {
	case err == nil:
		postId = &post.Id
	case errors.Is(err, db.ErrNotFound):
		comment, err := q.ReadCommentByUrlId(ctx, object)
		if errors.Is(err, db.ErrNotFound) {
			return "", fmt.Errorf("%w: object %s does not exist", ErrBadRequest, a.Object)
		}
		if err != nil {
			return "", err
		}
		commentId = &comment.Id
	default:
		return "", err
	}

	created, err := ib.storeLike(ctx, q, a, postId, commentId)
	if err != nil {
		return "", err
	}
	if !created {
		return "Like already exists", nil
	}
	return "Like added successfully", nil
}

// storeLike creates the like unless the author already likes the target or
// a like with the same id is known.
func (ib *Inbox) storeLike(ctx context.Context, q *db.Queries, a LikeActivity, postId, commentId *int64) (bool, error) {
	author, err := ib.resolver.Resolve(ctx, q, a.Author)
	if err != nil {
		return false, err
	}

	var existing *domain.Like
	if postId != nil {
		existing, err = q.FindPostLike(ctx, author.Id, *postId)
	} else {
		existing, err = q.FindCommentLike(ctx, author.Id, *commentId)
	}
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	id := normalizeId(a.Id)
	if id != "" {
		if _, err := q.ReadLikeByUrlId(ctx, id); err == nil {
			return false, nil
		} else if !errors.Is(err, db.ErrNotFound) {
			return false, err
		}
	}
	if (id != "" && ib.resolver.isLocalId(id)) || ib.resolver.ownedHere(author) {
		return false, fmt.Errorf("%w: like %s of a local author is unknown here", ErrBadRequest, a.Id)
	}
	if id == "" {
		id = fmt.Sprintf("%s/likes/%s", author.UrlId, uuid.NewString())
	}

	published, _ := ParsePublished(a.Published)
	like := &domain.Like{
		UrlId:     id,
		AuthorId:  author.Id,
		PostId:    postId,
		CommentId: commentId,
		Published: published,
	}
	if err := q.CreateLike(ctx, like); err != nil {
		return false, err
	}
	return true, nil
}

func (ib *Inbox) applyFollow(ctx context.Context, q *db.Queries, a FollowActivity) (string, error) {
	actor, err := ib.resolver.Resolve(ctx, q, a.Actor)
	if err != nil {
		return "", err
	}
	if ib.resolver.ownedHere(actor) {
		return "", fmt.Errorf("%w: follows of local author %s are made locally", ErrBadRequest, actor.UrlId)
	}

	followed, err := q.ReadAuthorByUrlId(ctx, normalizeId(a.Object.Id))
	if errors.Is(err, db.ErrNotFound) {
		return "", fmt.Errorf("%w: followed author %s", ErrNotFound, a.Object.Id)
	}
	if err != nil {
		return "", err
	}
	if followed.Id == actor.Id {
		return "", fmt.Errorf("%w: an author cannot follow itself", ErrBadRequest)
	}

	if _, err := q.ReadFollow(ctx, actor.Id, followed.Id); err == nil {
		return "Already following", nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return "", err
	}
	if _, err := q.ReadFollowRequest(ctx, actor.Id, followed.Id); err == nil {
		return "Follow request already exists", nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return "", err
	}

	if _, err := q.CreateFollowRequest(ctx, actor.Id, followed.Id); err != nil {
		return "", err
	}
	return "Follow request sent successfully", nil
}
