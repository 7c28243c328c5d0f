package db

import (
	"context"
	"time"

	"github.com/deemkeen/chartreuse/domain"
	"github.com/google/uuid"
)

const (
	postColumns = `id, url_id, author_id, title, description, content_type, content, visibility, published`

	sqlInsertPost = `INSERT INTO posts(url_id, author_id, title, description, content_type, content, visibility, published)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdatePostUrlId   = `UPDATE posts SET url_id = ? WHERE id = ?`
	sqlUpdatePostContent = `UPDATE posts SET visibility = ?, title = ?, description = ?, content_type = ?, content = ? WHERE id = ?`
	sqlSelectPostByUrlId = `SELECT ` + postColumns + ` FROM posts WHERE url_id = ?`
	sqlSelectPostById    = `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	sqlSelectPostsByAuthorAndVisibility = `SELECT ` + postColumns + ` FROM posts
		WHERE author_id = ? AND visibility = ? ORDER BY published DESC`
	sqlSelectLocalPostsByVisibility = `SELECT posts.id, posts.url_id, posts.author_id, posts.title, posts.description,
		posts.content_type, posts.content, posts.visibility, posts.published FROM posts
		INNER JOIN authors ON authors.id = posts.author_id
		WHERE authors.local_user IS NOT NULL AND posts.visibility = ?
		ORDER BY posts.published DESC LIMIT ?`
)

func scanPost(row scanner) (*domain.Post, error) {
	var p domain.Post
	var visibility string
	err := row.Scan(&p.Id, &p.UrlId, &p.AuthorId, &p.Title, &p.Description, &p.ContentType, &p.Content, &visibility, &p.Published)
	if err != nil {
		return nil, notFound(err)
	}
	p.Visibility = domain.Visibility(visibility)
	return &p, nil
}

func (q *Queries) readPosts(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return posts, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// CreatePost stores a post whose UrlId is already known (federated posts).
func (q *Queries) CreatePost(ctx context.Context, p *domain.Post) error {
	if p.Published.IsZero() {
		p.Published = time.Now()
	}
	if p.Visibility == "" {
		p.Visibility = domain.PUBLIC
	}
	res, err := q.q.ExecContext(ctx, sqlInsertPost,
		p.UrlId, p.AuthorId, p.Title, p.Description, p.ContentType, p.Content, string(p.Visibility), p.Published)
	if err != nil {
		return duplicate(err)
	}
	p.Id, err = res.LastInsertId()
	return err
}

// CreateLocalPost stores a post of a local author and assigns its url id
// from the author url and the post serial.
func (q *Queries) CreateLocalPost(ctx context.Context, author *domain.Author, p *domain.Post) error {
	p.UrlId = "pending:" + uuid.NewString()
	p.AuthorId = author.Id
	if err := q.CreatePost(ctx, p); err != nil {
		return err
	}
	p.UrlId = domain.PostURL(author.UrlId, p.Id)
	_, err := q.q.ExecContext(ctx, sqlUpdatePostUrlId, p.UrlId, p.Id)
	return err
}

// UpdatePostContent overwrites the mutable fields of a post.
func (q *Queries) UpdatePostContent(ctx context.Context, p *domain.Post) error {
	res, err := q.q.ExecContext(ctx, sqlUpdatePostContent,
		string(p.Visibility), p.Title, p.Description, p.ContentType, p.Content, p.Id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) ReadPostByUrlId(ctx context.Context, urlId string) (*domain.Post, error) {
	return scanPost(q.q.QueryRowContext(ctx, sqlSelectPostByUrlId, urlId))
}

func (q *Queries) ReadPostById(ctx context.Context, id int64) (*domain.Post, error) {
	return scanPost(q.q.QueryRowContext(ctx, sqlSelectPostById, id))
}

func (q *Queries) ReadPostsByAuthor(ctx context.Context, authorId int64, visibility domain.Visibility) ([]domain.Post, error) {
	return q.readPosts(ctx, sqlSelectPostsByAuthorAndVisibility, authorId, string(visibility))
}

func (q *Queries) ReadLocalPosts(ctx context.Context, visibility domain.Visibility, limit int) ([]domain.Post, error) {
	return q.readPosts(ctx, sqlSelectLocalPostsByVisibility, string(visibility), limit)
}
