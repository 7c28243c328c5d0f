package db

import (
	"context"
	"time"

	"github.com/deemkeen/chartreuse/domain"
	"github.com/google/uuid"
)

const (
	sqlInsertActivity = `INSERT INTO activities(id, activity_type, object_uri, target_uri, origin_host, raw_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectRecentActivities = `SELECT id, activity_type, object_uri, target_uri, origin_host, raw_json, created_at
		FROM activities ORDER BY created_at DESC LIMIT ?`
)

func (q *Queries) CreateActivity(ctx context.Context, a *domain.InboundActivity) error {
	if a.Id == "" {
		a.Id = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := q.q.ExecContext(ctx, sqlInsertActivity,
		a.Id, a.ActivityType, a.ObjectURI, a.TargetURI, a.OriginHost, a.RawJSON, a.CreatedAt)
	return err
}

func (q *Queries) ReadRecentActivities(ctx context.Context, limit int) ([]domain.InboundActivity, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectRecentActivities, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []domain.InboundActivity
	for rows.Next() {
		var a domain.InboundActivity
		if err := rows.Scan(&a.Id, &a.ActivityType, &a.ObjectURI, &a.TargetURI, &a.OriginHost, &a.RawJSON, &a.CreatedAt); err != nil {
			return activities, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
