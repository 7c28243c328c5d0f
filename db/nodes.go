package db

import (
	"context"
	"time"

	"github.com/deemkeen/chartreuse/domain"
)

const (
	nodeColumns = `host, username, password, direction, status, created_at`

	sqlInsertNode = `INSERT INTO nodes(host, username, password, direction, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectNode = `SELECT ` + nodeColumns + ` FROM nodes WHERE host = ? AND direction = ?`
	sqlSelectNodes = `SELECT ` + nodeColumns + ` FROM nodes ORDER BY host, direction`
	sqlSelectNodesByDirection = `SELECT ` + nodeColumns + ` FROM nodes WHERE direction = ? AND status = ? ORDER BY host`
	sqlSelectNodesByCredentials = `SELECT ` + nodeColumns + ` FROM nodes WHERE username = ? AND password = ? ORDER BY host`
	sqlUpdateNodeStatus = `UPDATE nodes SET status = ? WHERE host = ? AND direction = ?`
	sqlDeleteNode       = `DELETE FROM nodes WHERE host = ? AND direction = ?`
)

func scanNode(row scanner) (*domain.Node, error) {
	var n domain.Node
	var direction, status string
	if err := row.Scan(&n.Host, &n.Username, &n.Password, &direction, &status, &n.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	n.Direction = domain.NodeDirection(direction)
	n.Status = domain.NodeStatus(status)
	return &n, nil
}

func (q *Queries) readNodes(ctx context.Context, query string, args ...any) ([]domain.Node, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// CreateNode registers a peer. Hosts are stored with a trailing slash.
func (q *Queries) CreateNode(ctx context.Context, n *domain.Node) error {
	n.Host = domain.NormalizeHost(n.Host)
	if n.Status == "" {
		n.Status = domain.ENABLED
	}
	n.CreatedAt = time.Now()
	_, err := q.q.ExecContext(ctx, sqlInsertNode, n.Host, n.Username, n.Password, string(n.Direction), string(n.Status), n.CreatedAt)
	return duplicate(err)
}

func (q *Queries) ReadNode(ctx context.Context, host string, direction domain.NodeDirection) (*domain.Node, error) {
	return scanNode(q.q.QueryRowContext(ctx, sqlSelectNode, domain.NormalizeHost(host), string(direction)))
}

func (q *Queries) ReadNodes(ctx context.Context) ([]domain.Node, error) {
	return q.readNodes(ctx, sqlSelectNodes)
}

func (q *Queries) ReadNodesByDirection(ctx context.Context, direction domain.NodeDirection, status domain.NodeStatus) ([]domain.Node, error) {
	return q.readNodes(ctx, sqlSelectNodesByDirection, string(direction), string(status))
}

// ReadNodesByCredentials returns every node, enabled or not, holding the pair.
func (q *Queries) ReadNodesByCredentials(ctx context.Context, username, password string) ([]domain.Node, error) {
	return q.readNodes(ctx, sqlSelectNodesByCredentials, username, password)
}

func (q *Queries) UpdateNodeStatus(ctx context.Context, host string, direction domain.NodeDirection, status domain.NodeStatus) error {
	res, err := q.q.ExecContext(ctx, sqlUpdateNodeStatus, string(status), domain.NormalizeHost(host), string(direction))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteNode(ctx context.Context, host string, direction domain.NodeDirection) error {
	res, err := q.q.ExecContext(ctx, sqlDeleteNode, domain.NormalizeHost(host), string(direction))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
