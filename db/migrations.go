package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	sqlCreateAuthorsTable = `CREATE TABLE IF NOT EXISTS authors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url_id TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		host TEXT NOT NULL DEFAULT '',
		github TEXT NOT NULL DEFAULT '',
		profile_image TEXT NOT NULL DEFAULT '',
		local_user TEXT UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url_id TEXT UNIQUE NOT NULL,
		author_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'text/plain',
		content TEXT NOT NULL DEFAULT '',
		visibility TEXT NOT NULL DEFAULT 'PUBLIC',
		published TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateCommentsTable = `CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url_id TEXT UNIQUE NOT NULL,
		author_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		comment TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'text/plain',
		published TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// A like points at exactly one of post/comment. UNIQUE(author_id, post_id)
	// only bites for post likes since NULL post_ids never compare equal.
	sqlCreateLikesTable = `CREATE TABLE IF NOT EXISTS likes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url_id TEXT UNIQUE NOT NULL,
		author_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		post_id INTEGER REFERENCES posts(id) ON DELETE CASCADE,
		comment_id INTEGER REFERENCES comments(id) ON DELETE CASCADE,
		published TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CHECK ((post_id IS NULL) <> (comment_id IS NULL)),
		UNIQUE(author_id, post_id)
	)`

	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		follower_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		followed_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(follower_id, followed_id)
	)`

	sqlCreateFollowRequestsTable = `CREATE TABLE IF NOT EXISTS follow_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		requester_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		requestee_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(requester_id, requestee_id)
	)`

	sqlCreateNodesTable = `CREATE TABLE IF NOT EXISTS nodes (
		host TEXT NOT NULL,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		direction TEXT NOT NULL CHECK (direction IN ('INCOMING', 'OUTGOING')),
		status TEXT NOT NULL DEFAULT 'ENABLED' CHECK (status IN ('ENABLED', 'DISABLED')),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (host, direction)
	)`

	// Audit log of inbound activities
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_type TEXT NOT NULL,
		object_uri TEXT NOT NULL DEFAULT '',
		target_uri TEXT NOT NULL DEFAULT '',
		origin_host TEXT NOT NULL DEFAULT '',
		raw_json TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateIndices = `
		CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id);
		CREATE INDEX IF NOT EXISTS idx_posts_visibility ON posts(visibility);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
		CREATE INDEX IF NOT EXISTS idx_comments_dedup ON comments(post_id, author_id);
		CREATE INDEX IF NOT EXISTS idx_likes_comment_id ON likes(comment_id, author_id);
		CREATE INDEX IF NOT EXISTS idx_follows_followed_id ON follows(followed_id);
		CREATE INDEX IF NOT EXISTS idx_follow_requests_requestee_id ON follow_requests(requestee_id);
		CREATE INDEX IF NOT EXISTS idx_nodes_credentials ON nodes(username, password);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
	`
)

var schema = []struct {
	name string
	sql  string
}{
	{"authors", sqlCreateAuthorsTable},
	{"posts", sqlCreatePostsTable},
	{"comments", sqlCreateCommentsTable},
	{"likes", sqlCreateLikesTable},
	{"follows", sqlCreateFollowsTable},
	{"follow_requests", sqlCreateFollowRequestsTable},
	{"nodes", sqlCreateNodesTable},
	{"activities", sqlCreateActivitiesTable},
}

// RunMigrations creates all tables and indices. It is safe to run on every start.
func (db *DB) RunMigrations() error {
	return db.WithTx(context.Background(), func(q *Queries) error {
		for _, table := range schema {
			if _, err := q.q.ExecContext(context.Background(), table.sql); err != nil {
				log.Error().Err(err).Str("table", table.name).Msg("Error creating table")
				return fmt.Errorf("create table %s: %w", table.name, err)
			}
			log.Debug().Str("table", table.name).Msg("Table created or already exists")
		}
		if _, err := q.q.ExecContext(context.Background(), sqlCreateIndices); err != nil {
			return fmt.Errorf("create indices: %w", err)
		}
		return nil
	})
}
