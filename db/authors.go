package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/deemkeen/chartreuse/domain"
	"github.com/google/uuid"
)

const (
	authorColumns = `id, url_id, display_name, host, github, profile_image, local_user, created_at`

	sqlInsertAuthor = `INSERT INTO authors(url_id, display_name, host, github, profile_image, local_user, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlInsertAuthorIfAbsent = `INSERT INTO authors(url_id, display_name, host, github, profile_image, local_user, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?) ON CONFLICT(url_id) DO NOTHING`
	sqlUpdateAuthorUrlId      = `UPDATE authors SET url_id = ? WHERE id = ?`
	sqlSelectAuthorByUrlId    = `SELECT ` + authorColumns + ` FROM authors WHERE url_id = ?`
	sqlSelectAuthorById       = `SELECT ` + authorColumns + ` FROM authors WHERE id = ?`
	sqlSelectAuthorByUsername = `SELECT ` + authorColumns + ` FROM authors WHERE local_user = ?`
	sqlSelectLocalAuthors     = `SELECT ` + authorColumns + ` FROM authors WHERE local_user IS NOT NULL ORDER BY id`
	sqlSelectAllAuthors       = `SELECT ` + authorColumns + ` FROM authors ORDER BY id`
	sqlUpdateAuthorProfile    = `UPDATE authors SET display_name = ?, github = ?, profile_image = ? WHERE id = ?`
	sqlDeleteAuthor           = `DELETE FROM authors WHERE id = ?`
)

func scanAuthor(row scanner) (*domain.Author, error) {
	var a domain.Author
	var localUser sql.NullString
	err := row.Scan(&a.Id, &a.UrlId, &a.DisplayName, &a.Host, &a.Github, &a.ProfileImage, &localUser, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	a.LocalUser = localUser.String
	return &a, nil
}

func (q *Queries) readAuthors(ctx context.Context, query string, args ...any) ([]domain.Author, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []domain.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return authors, err
		}
		authors = append(authors, *a)
	}
	return authors, rows.Err()
}

// CreateLocalAuthor inserts an author with a login on this node. Its url id is
// derived from the row serial, so it is written in two steps.
func (q *Queries) CreateLocalAuthor(ctx context.Context, publicHost string, desc domain.AuthorDescriptor, username string) (*domain.Author, error) {
	now := time.Now()
	res, err := q.q.ExecContext(ctx, sqlInsertAuthor,
		"pending:"+uuid.NewString(),
		desc.DisplayName,
		domain.NormalizeHost(publicHost),
		desc.Github,
		desc.ProfileImage,
		username,
		now,
	)
	if err != nil {
		return nil, duplicate(err)
	}
	serial, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if _, err := q.q.ExecContext(ctx, sqlUpdateAuthorUrlId, domain.AuthorURL(publicHost, serial), serial); err != nil {
		return nil, err
	}
	return q.ReadAuthorById(ctx, serial)
}

// GetOrCreateAuthor returns the author with urlId, inserting it from desc
// when it does not exist yet. The insert is ON CONFLICT DO NOTHING, so the
// first writer wins and desc never overwrites an existing row. created
// reports whether this call inserted the row.
func (q *Queries) GetOrCreateAuthor(ctx context.Context, urlId string, desc domain.AuthorDescriptor) (author *domain.Author, created bool, err error) {
	res, err := q.q.ExecContext(ctx, sqlInsertAuthorIfAbsent,
		urlId,
		desc.DisplayName,
		domain.NormalizeHost(desc.Host),
		desc.Github,
		desc.ProfileImage,
		time.Now(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert author %s: %w", urlId, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	author, err = q.ReadAuthorByUrlId(ctx, urlId)
	if err != nil {
		return nil, false, err
	}
	return author, affected > 0, nil
}

func (q *Queries) ReadAuthorByUrlId(ctx context.Context, urlId string) (*domain.Author, error) {
	return scanAuthor(q.q.QueryRowContext(ctx, sqlSelectAuthorByUrlId, urlId))
}

func (q *Queries) ReadAuthorById(ctx context.Context, id int64) (*domain.Author, error) {
	return scanAuthor(q.q.QueryRowContext(ctx, sqlSelectAuthorById, id))
}

func (q *Queries) ReadAuthorByUsername(ctx context.Context, username string) (*domain.Author, error) {
	return scanAuthor(q.q.QueryRowContext(ctx, sqlSelectAuthorByUsername, username))
}

func (q *Queries) ReadLocalAuthors(ctx context.Context) ([]domain.Author, error) {
	return q.readAuthors(ctx, sqlSelectLocalAuthors)
}

func (q *Queries) ReadAllAuthors(ctx context.Context) ([]domain.Author, error) {
	return q.readAuthors(ctx, sqlSelectAllAuthors)
}

// UpdateAuthorProfile overwrites the descriptor fields of an author. The url
// id, host and login never change.
func (q *Queries) UpdateAuthorProfile(ctx context.Context, a *domain.Author) error {
	res, err := q.q.ExecContext(ctx, sqlUpdateAuthorProfile, a.DisplayName, a.Github, a.ProfileImage, a.Id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAuthor removes an author together with its posts, comments, likes,
// follows and follow requests.
func (q *Queries) DeleteAuthor(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, sqlDeleteAuthor, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
