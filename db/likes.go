package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/deemkeen/chartreuse/domain"
	"github.com/google/uuid"
)

const (
	likeColumns = `id, url_id, author_id, post_id, comment_id, published`

	sqlInsertLike           = `INSERT INTO likes(url_id, author_id, post_id, comment_id, published) VALUES (?, ?, ?, ?, ?)`
	sqlUpdateLikeUrlId      = `UPDATE likes SET url_id = ? WHERE id = ?`
	sqlDeleteLike           = `DELETE FROM likes WHERE id = ?`
	sqlSelectLikeByUrlId    = `SELECT ` + likeColumns + ` FROM likes WHERE url_id = ?`
	sqlSelectPostLike       = `SELECT ` + likeColumns + ` FROM likes WHERE author_id = ? AND post_id = ?`
	sqlSelectCommentLike    = `SELECT ` + likeColumns + ` FROM likes WHERE author_id = ? AND comment_id = ? ORDER BY id LIMIT 1`
	sqlSelectLikesByPost    = `SELECT ` + likeColumns + ` FROM likes WHERE post_id = ? ORDER BY id`
	sqlSelectLikesByComment = `SELECT ` + likeColumns + ` FROM likes WHERE comment_id = ? ORDER BY id`
	sqlSelectLikesByAuthor  = `SELECT ` + likeColumns + ` FROM likes WHERE author_id = ? ORDER BY id`
)

func scanLike(row scanner) (*domain.Like, error) {
	var l domain.Like
	var postId, commentId sql.NullInt64
	err := row.Scan(&l.Id, &l.UrlId, &l.AuthorId, &postId, &commentId, &l.Published)
	if err != nil {
		return nil, notFound(err)
	}
	l.PostId = fromNullableInt(postId)
	l.CommentId = fromNullableInt(commentId)
	return &l, nil
}

func (q *Queries) readLikes(ctx context.Context, query string, args ...any) ([]domain.Like, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var likes []domain.Like
	for rows.Next() {
		l, err := scanLike(rows)
		if err != nil {
			return likes, err
		}
		likes = append(likes, *l)
	}
	return likes, rows.Err()
}

// CreateLike stores a like whose UrlId is already known. A second like by the
// same author on the same post fails with ErrDuplicate.
func (q *Queries) CreateLike(ctx context.Context, l *domain.Like) error {
	if l.Published.IsZero() {
		l.Published = time.Now()
	}
	res, err := q.q.ExecContext(ctx, sqlInsertLike, l.UrlId, l.AuthorId, nullableInt(l.PostId), nullableInt(l.CommentId), l.Published)
	if err != nil {
		return duplicate(err)
	}
	l.Id, err = res.LastInsertId()
	return err
}

func (q *Queries) CreateLocalLike(ctx context.Context, author *domain.Author, l *domain.Like) error {
	l.UrlId = "pending:" + uuid.NewString()
	l.AuthorId = author.Id
	if err := q.CreateLike(ctx, l); err != nil {
		return err
	}
	l.UrlId = domain.LikeURL(author.UrlId, l.Id)
	_, err := q.q.ExecContext(ctx, sqlUpdateLikeUrlId, l.UrlId, l.Id)
	return err
}

func (q *Queries) DeleteLike(ctx context.Context, id int64) error {
	_, err := q.q.ExecContext(ctx, sqlDeleteLike, id)
	return err
}

func (q *Queries) ReadLikeByUrlId(ctx context.Context, urlId string) (*domain.Like, error) {
	return scanLike(q.q.QueryRowContext(ctx, sqlSelectLikeByUrlId, urlId))
}

func (q *Queries) FindPostLike(ctx context.Context, authorId, postId int64) (*domain.Like, error) {
	return scanLike(q.q.QueryRowContext(ctx, sqlSelectPostLike, authorId, postId))
}

func (q *Queries) FindCommentLike(ctx context.Context, authorId, commentId int64) (*domain.Like, error) {
	return scanLike(q.q.QueryRowContext(ctx, sqlSelectCommentLike, authorId, commentId))
}

func (q *Queries) ReadLikesByPost(ctx context.Context, postId int64) ([]domain.Like, error) {
	return q.readLikes(ctx, sqlSelectLikesByPost, postId)
}

func (q *Queries) ReadLikesByComment(ctx context.Context, commentId int64) ([]domain.Like, error) {
	return q.readLikes(ctx, sqlSelectLikesByComment, commentId)
}

// ReadLikesByAuthor returns everything authorId has liked, oldest first.
func (q *Queries) ReadLikesByAuthor(ctx context.Context, authorId int64) ([]domain.Like, error) {
	return q.readLikes(ctx, sqlSelectLikesByAuthor, authorId)
}
