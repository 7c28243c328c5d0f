package db

import (
	"context"
	"errors"
	"time"

	"github.com/deemkeen/chartreuse/domain"
)

const (
	sqlInsertFollow = `INSERT INTO follows(follower_id, followed_id, created_at) VALUES (?, ?, ?)`
	sqlSelectFollow = `SELECT id, follower_id, followed_id, created_at FROM follows WHERE follower_id = ? AND followed_id = ?`
	sqlDeleteFollow = `DELETE FROM follows WHERE follower_id = ? AND followed_id = ?`
	sqlSelectFollowers = `SELECT authors.id, authors.url_id, authors.display_name, authors.host, authors.github,
		authors.profile_image, authors.local_user, authors.created_at FROM follows
		INNER JOIN authors ON authors.id = follows.follower_id
		WHERE follows.followed_id = ? ORDER BY follows.id`
	sqlSelectFollowing = `SELECT authors.id, authors.url_id, authors.display_name, authors.host, authors.github,
		authors.profile_image, authors.local_user, authors.created_at FROM follows
		INNER JOIN authors ON authors.id = follows.followed_id
		WHERE follows.follower_id = ? ORDER BY follows.id`
	sqlSelectFriends = `SELECT authors.id, authors.url_id, authors.display_name, authors.host, authors.github,
		authors.profile_image, authors.local_user, authors.created_at FROM follows
		INNER JOIN authors ON authors.id = follows.followed_id
		INNER JOIN follows AS back ON back.follower_id = follows.followed_id AND back.followed_id = follows.follower_id
		WHERE follows.follower_id = ? ORDER BY follows.id`

	sqlInsertFollowRequest = `INSERT INTO follow_requests(requester_id, requestee_id, created_at) VALUES (?, ?, ?)`
	sqlSelectFollowRequest = `SELECT id, requester_id, requestee_id, created_at FROM follow_requests
		WHERE requester_id = ? AND requestee_id = ?`
	sqlSelectFollowRequestById  = `SELECT id, requester_id, requestee_id, created_at FROM follow_requests WHERE id = ?`
	sqlSelectFollowRequestsTo   = `SELECT id, requester_id, requestee_id, created_at FROM follow_requests WHERE requestee_id = ? ORDER BY id`
	sqlDeleteFollowRequestById  = `DELETE FROM follow_requests WHERE id = ?`
)

func scanFollowRequest(row scanner) (*domain.FollowRequest, error) {
	var fr domain.FollowRequest
	if err := row.Scan(&fr.Id, &fr.RequesterId, &fr.RequesteeId, &fr.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &fr, nil
}

func (q *Queries) CreateFollow(ctx context.Context, followerId, followedId int64) (*domain.Follow, error) {
	f := &domain.Follow{FollowerId: followerId, FollowedId: followedId, CreatedAt: time.Now()}
	res, err := q.q.ExecContext(ctx, sqlInsertFollow, followerId, followedId, f.CreatedAt)
	if err != nil {
		return nil, duplicate(err)
	}
	f.Id, err = res.LastInsertId()
	return f, err
}

func (q *Queries) ReadFollow(ctx context.Context, followerId, followedId int64) (*domain.Follow, error) {
	var f domain.Follow
	row := q.q.QueryRowContext(ctx, sqlSelectFollow, followerId, followedId)
	if err := row.Scan(&f.Id, &f.FollowerId, &f.FollowedId, &f.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (q *Queries) DeleteFollow(ctx context.Context, followerId, followedId int64) error {
	res, err := q.q.ExecContext(ctx, sqlDeleteFollow, followerId, followedId)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReadFollowers returns the authors following followedId.
func (q *Queries) ReadFollowers(ctx context.Context, followedId int64) ([]domain.Author, error) {
	return q.readAuthors(ctx, sqlSelectFollowers, followedId)
}

// ReadFollowing returns the authors followerId follows.
func (q *Queries) ReadFollowing(ctx context.Context, followerId int64) ([]domain.Author, error) {
	return q.readAuthors(ctx, sqlSelectFollowing, followerId)
}

// ReadFriends returns the authors that follow authorId and are followed back.
func (q *Queries) ReadFriends(ctx context.Context, authorId int64) ([]domain.Author, error) {
	return q.readAuthors(ctx, sqlSelectFriends, authorId)
}

// AreFriends reports whether a and b follow each other.
func (q *Queries) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	for _, pair := range [][2]int64{{a, b}, {b, a}} {
		_, err := q.ReadFollow(ctx, pair[0], pair[1])
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func (q *Queries) CreateFollowRequest(ctx context.Context, requesterId, requesteeId int64) (*domain.FollowRequest, error) {
	fr := &domain.FollowRequest{RequesterId: requesterId, RequesteeId: requesteeId, CreatedAt: time.Now()}
	res, err := q.q.ExecContext(ctx, sqlInsertFollowRequest, requesterId, requesteeId, fr.CreatedAt)
	if err != nil {
		return nil, duplicate(err)
	}
	fr.Id, err = res.LastInsertId()
	return fr, err
}

func (q *Queries) ReadFollowRequest(ctx context.Context, requesterId, requesteeId int64) (*domain.FollowRequest, error) {
	return scanFollowRequest(q.q.QueryRowContext(ctx, sqlSelectFollowRequest, requesterId, requesteeId))
}

func (q *Queries) ReadFollowRequestById(ctx context.Context, id int64) (*domain.FollowRequest, error) {
	return scanFollowRequest(q.q.QueryRowContext(ctx, sqlSelectFollowRequestById, id))
}

// ReadFollowRequestsTo returns the pending requests addressed to requesteeId.
func (q *Queries) ReadFollowRequestsTo(ctx context.Context, requesteeId int64) ([]domain.FollowRequest, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectFollowRequestsTo, requesteeId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.FollowRequest
	for rows.Next() {
		fr, err := scanFollowRequest(rows)
		if err != nil {
			return requests, err
		}
		requests = append(requests, *fr)
	}
	return requests, rows.Err()
}

func (q *Queries) DeleteFollowRequest(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, sqlDeleteFollowRequestById, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
