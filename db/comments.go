package db

import (
	"context"
	"time"

	"github.com/deemkeen/chartreuse/domain"
	"github.com/google/uuid"
)

const (
	commentColumns = `id, url_id, author_id, post_id, comment, content_type, published`

	sqlInsertComment = `INSERT INTO comments(url_id, author_id, post_id, comment, content_type, published)
		VALUES (?, ?, ?, ?, ?, ?)`
	sqlUpdateCommentUrlId   = `UPDATE comments SET url_id = ? WHERE id = ?`
	sqlSelectCommentByUrlId = `SELECT ` + commentColumns + ` FROM comments WHERE url_id = ?`
	sqlSelectCommentById    = `SELECT ` + commentColumns + ` FROM comments WHERE id = ?`
	sqlSelectCommentByText  = `SELECT ` + commentColumns + ` FROM comments
		WHERE comment = ? AND author_id = ? AND post_id = ? ORDER BY id LIMIT 1`
	sqlSelectCommentsByPost = `SELECT ` + commentColumns + ` FROM comments WHERE post_id = ? ORDER BY published DESC, id DESC`
)

func scanComment(row scanner) (*domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.Id, &c.UrlId, &c.AuthorId, &c.PostId, &c.Comment, &c.ContentType, &c.Published)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateComment stores a comment whose UrlId is already known.
func (q *Queries) CreateComment(ctx context.Context, c *domain.Comment) error {
	if c.Published.IsZero() {
		c.Published = time.Now()
	}
	if c.ContentType == "" {
		c.ContentType = "text/plain"
	}
	res, err := q.q.ExecContext(ctx, sqlInsertComment, c.UrlId, c.AuthorId, c.PostId, c.Comment, c.ContentType, c.Published)
	if err != nil {
		return duplicate(err)
	}
	c.Id, err = res.LastInsertId()
	return err
}

func (q *Queries) CreateLocalComment(ctx context.Context, author *domain.Author, c *domain.Comment) error {
	c.UrlId = "pending:" + uuid.NewString()
	c.AuthorId = author.Id
	if err := q.CreateComment(ctx, c); err != nil {
		return err
	}
	c.UrlId = domain.CommentURL(author.UrlId, c.Id)
	_, err := q.q.ExecContext(ctx, sqlUpdateCommentUrlId, c.UrlId, c.Id)
	return err
}

func (q *Queries) ReadCommentByUrlId(ctx context.Context, urlId string) (*domain.Comment, error) {
	return scanComment(q.q.QueryRowContext(ctx, sqlSelectCommentByUrlId, urlId))
}

func (q *Queries) ReadCommentById(ctx context.Context, id int64) (*domain.Comment, error) {
	return scanComment(q.q.QueryRowContext(ctx, sqlSelectCommentById, id))
}

// FindComment looks a comment up by its (text, author, post) triple. Used
// only for payloads that carry no comment id.
func (q *Queries) FindComment(ctx context.Context, text string, authorId, postId int64) (*domain.Comment, error) {
	return scanComment(q.q.QueryRowContext(ctx, sqlSelectCommentByText, text, authorId, postId))
}

func (q *Queries) ReadCommentsByPost(ctx context.Context, postId int64) ([]domain.Comment, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectCommentsByPost, postId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return comments, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}
