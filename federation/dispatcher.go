package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDeliveryTimeout     = 10 * time.Second
	DefaultDeliveryConcurrency = 4

	maxObjectSize = 4 << 20
)

// ObjectFetcher returns the canonical JSON of a local object given its url id.
type ObjectFetcher interface {
	FetchObject(ctx context.Context, urlId string) ([]byte, error)
}

// HTTPFetcher fetches objects from this node's own REST API. Local url ids
// are the REST locations, so the id is requested as is. Soft-deleted posts
// answer 410 with their tombstone, which is still a valid payload.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) FetchObject(ctx context.Context, urlId string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlId, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusGone {
		return nil, fmt.Errorf("self-fetch of %s returned status: %d", urlId, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxObjectSize))
}

type DispatcherConfig struct {
	// PublicHost is sent as X-Original-Host and decides which owners are local.
	PublicHost  string
	Timeout     time.Duration
	Concurrency int
	Client      *http.Client
	Fetcher     ObjectFetcher
}

// Dispatcher pushes locally originated activities to peer inboxes. Delivery
// is at most once per target; failures are reported, never retried.
type Dispatcher struct {
	db       *db.DB
	registry *Registry
	conf     DispatcherConfig
}

func NewDispatcher(database *db.DB, registry *Registry, conf DispatcherConfig) *Dispatcher {
	conf.PublicHost = domain.NormalizeHost(conf.PublicHost)
	if conf.Timeout <= 0 {
		conf.Timeout = DefaultDeliveryTimeout
	}
	if conf.Concurrency <= 0 {
		conf.Concurrency = DefaultDeliveryConcurrency
	}
	if conf.Client == nil {
		conf.Client = &http.Client{}
	}
	if conf.Fetcher == nil {
		conf.Fetcher = &HTTPFetcher{Client: &http.Client{Timeout: conf.Timeout}}
	}
	return &Dispatcher{db: database, registry: registry, conf: conf}
}

// Target is one inbox delivery: an author on a peer node.
type Target struct {
	Node   domain.Node
	Author domain.Author
}

func (t Target) InboxURL() string {
	return fmt.Sprintf("%sauthors/%s/inbox", domain.NormalizeHost(t.Node.Host), url.PathEscape(domain.LastSegment(t.Author.UrlId)))
}

type Delivery struct {
	Node   string `json:"node"`
	Target string `json:"target"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	Err    error  `json:"-"`
}

// DispatchReport collects the outcome of every delivery of one dispatch.
type DispatchReport struct {
	Type       string     `json:"type"`
	Object     string     `json:"object"`
	Deliveries []Delivery `json:"deliveries"`
}

func (r *DispatchReport) Succeeded() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err == nil {
			n++
		}
	}
	return n
}

func (r *DispatchReport) Failed() int {
	return len(r.Deliveries) - r.Succeeded()
}

// Targets computes who receives an activity on an object owned by owner.
// A local owner's followers are reached through the enabled outgoing node of
// their host; a remote owner is reached only on its own home node.
func (d *Dispatcher) Targets(ctx context.Context, owner *domain.Author) ([]Target, error) {
	nodes, err := d.registry.OutgoingNodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}

	if !domain.SameHost(owner.Host, d.conf.PublicHost) {
		for _, n := range nodes {
			if domain.SameHost(n.Host, owner.Host) {
				return []Target{{Node: n, Author: *owner}}, nil
			}
		}
		return nil, nil
	}

	followers, err := d.db.ReadFollowers(ctx, owner.Id)
	if err != nil {
		return nil, err
	}
	var targets []Target
	for _, f := range followers {
		for _, n := range nodes {
			if domain.SameHost(f.Host, n.Host) {
				targets = append(targets, Target{Node: n, Author: f})
				break
			}
		}
	}
	return targets, nil
}

// SendPost distributes a local post after it was created or updated.
func (d *Dispatcher) SendPost(ctx context.Context, post *domain.Post) (*DispatchReport, error) {
	owner, err := d.db.ReadAuthorById(ctx, post.AuthorId)
	if err != nil {
		return nil, err
	}
	return d.dispatch(ctx, TypePost, post.UrlId, owner)
}

// SendComment delivers a comment to the audience of the post it is on.
func (d *Dispatcher) SendComment(ctx context.Context, comment *domain.Comment) (*DispatchReport, error) {
	owner, err := d.postOwner(ctx, comment.PostId)
	if err != nil {
		return nil, err
	}
	return d.dispatch(ctx, TypeComment, comment.UrlId, owner)
}

// SendLike delivers a like to the audience of the liked post, or of the post
// the liked comment is on.
func (d *Dispatcher) SendLike(ctx context.Context, like *domain.Like) (*DispatchReport, error) {
	postId := like.PostId
	if postId == nil {
		comment, err := d.db.ReadCommentById(ctx, *like.CommentId)
		if err != nil {
			return nil, err
		}
		postId = &comment.PostId
	}
	owner, err := d.postOwner(ctx, *postId)
	if err != nil {
		return nil, err
	}
	return d.dispatch(ctx, TypeLike, like.UrlId, owner)
}

// SendFollow delivers a follow activity to the node of the followed author.
// Follows have no REST representation, so the payload is built here.
func (d *Dispatcher) SendFollow(ctx context.Context, node *domain.Node, actor, object *domain.Author) *DispatchReport {
	report := &DispatchReport{Type: TypeFollow, Object: object.UrlId}
	payload, err := json.Marshal(NewFollowActivity(actor, object))
	if err != nil {
		report.Deliveries = []Delivery{failed(Target{Node: *node, Author: *object}, err)}
		return report
	}
	report.Deliveries = d.deliverAll(ctx, TypeFollow, []Target{{Node: *node, Author: *object}}, payload)
	return report
}

func (d *Dispatcher) postOwner(ctx context.Context, postId int64) (*domain.Author, error) {
	post, err := d.db.ReadPostById(ctx, postId)
	if err != nil {
		return nil, err
	}
	return d.db.ReadAuthorById(ctx, post.AuthorId)
}

func (d *Dispatcher) dispatch(ctx context.Context, kind, objectId string, owner *domain.Author) (*DispatchReport, error) {
	report := &DispatchReport{Type: kind, Object: objectId, Deliveries: []Delivery{}}

	targets, err := d.Targets(ctx, owner)
	if err != nil {
		return nil, err
	}
	dispatchTargets.Observe(float64(len(targets)))
	if len(targets) == 0 {
		log.Debug().Str("type", kind).Str("object", objectId).Msg("Dispatcher: No targets")
		return report, nil
	}

	// One fetch per dispatch: every target receives the same bytes.
	payload, err := d.conf.Fetcher.FetchObject(ctx, objectId)
	if err != nil {
		log.Error().Err(err).Str("object", objectId).Msg("Dispatcher: Failed to fetch canonical object")
		for _, t := range targets {
			report.Deliveries = append(report.Deliveries, failed(t, err))
			deliveriesTotal.WithLabelValues(kind, "transport").Inc()
		}
		return report, nil
	}

	report.Deliveries = d.deliverAll(ctx, kind, targets, payload)
	log.Info().
		Str("type", kind).
		Str("object", objectId).
		Int("succeeded", report.Succeeded()).
		Int("failed", report.Failed()).
		Msg("Dispatcher: Fan-out finished")
	return report, nil
}

// deliverAll posts payload to every target in parallel. A failing target
// never cancels the others.
func (d *Dispatcher) deliverAll(ctx context.Context, kind string, targets []Target, payload []byte) []Delivery {
	results := make([]Delivery, len(targets))
	var g errgroup.Group
	g.SetLimit(d.conf.Concurrency)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = d.deliver(ctx, kind, t, payload)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, kind string, t Target, payload []byte) Delivery {
	ctx, cancel := context.WithTimeout(ctx, d.conf.Timeout)
	defer cancel()

	inbox := t.InboxURL()
	ctx, span := tracer.Start(ctx, "dispatcher.deliver", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("activity.type", kind),
		attribute.String("node.host", t.Node.Host),
		attribute.String("inbox", inbox),
	)

	start := time.Now()
	status, err := d.post(ctx, t.Node, inbox, payload)
	deliveryDuration.Observe(time.Since(start).Seconds())
	deliveriesTotal.WithLabelValues(kind, resultLabel(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().Err(err).Str("inbox", inbox).Msg("Dispatcher: Delivery failed")
		out := failed(t, err)
		out.Status = status
		return out
	}
	log.Debug().Str("inbox", inbox).Int("status", status).Msg("Dispatcher: Delivered")
	return Delivery{Node: t.Node.Host, Target: t.Author.UrlId, Status: status}
}

func (d *Dispatcher) post(ctx context.Context, node domain.Node, inbox string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inbox, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Original-Host", d.conf.PublicHost)
	req.SetBasicAuth(node.Username, node.Password)

	resp, err := d.conf.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w: remote server returned status: %d", ErrTransport, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func failed(t Target, err error) Delivery {
	if !errors.Is(err, ErrTransport) {
		err = fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return Delivery{Node: t.Node.Host, Target: t.Author.UrlId, Error: err.Error(), Err: err}
}
