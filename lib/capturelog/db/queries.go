package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Resolution struct {
	ID           int64
	TargetUrl    string
	Status       string
	SnapshotUrl  string
	SnapshotTime int64
	Reason       string
	CheckedAt    int64
}

const createResolution = `
INSERT INTO resolution (target_url, status, snapshot_url, snapshot_time, reason, checked_at)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateResolutionParams struct {
	TargetUrl    string
	Status       string
	SnapshotUrl  string
	SnapshotTime int64
	Reason       string
	CheckedAt    int64
}

func (q *Queries) CreateResolution(ctx context.Context, arg CreateResolutionParams) error {
	_, err := q.db.ExecContext(
		ctx, createResolution,
		arg.TargetUrl,
		arg.Status,
		arg.SnapshotUrl,
		arg.SnapshotTime,
		arg.Reason,
		arg.CheckedAt,
	)
	return err
}

const getResolutionsByTarget = `
SELECT id, target_url, status, snapshot_url, snapshot_time, reason, checked_at
FROM resolution
WHERE target_url = ?
ORDER BY checked_at DESC
`

func (q *Queries) GetResolutionsByTarget(ctx context.Context, targetUrl string) ([]Resolution, error) {
	rows, err := q.db.QueryContext(ctx, getResolutionsByTarget, targetUrl)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResolutions(rows)
}

const getRecentResolutions = `
SELECT id, target_url, status, snapshot_url, snapshot_time, reason, checked_at
FROM resolution
ORDER BY checked_at DESC, id DESC
LIMIT ?
`

func (q *Queries) GetRecentResolutions(ctx context.Context, limit int64) ([]Resolution, error) {
	rows, err := q.db.QueryContext(ctx, getRecentResolutions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResolutions(rows)
}

func scanResolutions(rows *sql.Rows) ([]Resolution, error) {
	var out []Resolution
	for rows.Next() {
		var r Resolution
		err := rows.Scan(
			&r.ID,
			&r.TargetUrl,
			&r.Status,
			&r.SnapshotUrl,
			&r.SnapshotTime,
			&r.Reason,
			&r.CheckedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
