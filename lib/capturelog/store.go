package capturelog

import (
	"context"
	"database/sql"
	"time"

	"archivescout/lib/capturelog/db"
	"archivescout/lib/wayback"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/capturelog")

// Store keeps a local log of resolution outcomes so a research
// session can be reviewed later. The resolver itself never touches
// it, recording is the caller's decision.
type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

type Entry struct {
	TargetUrl    string
	Status       wayback.Status
	SnapshotUrl  string
	SnapshotTime time.Time
	Reason       string
	CheckedAt    time.Time
}

func statusFromString(raw string) wayback.Status {
	switch raw {
	case wayback.StatusFound.String():
		return wayback.StatusFound
	case wayback.StatusNotFound.String():
		return wayback.StatusNotFound
	}
	return wayback.StatusRequestFailed
}

func entryFromRow(r db.Resolution) Entry {
	e := Entry{
		TargetUrl:   r.TargetUrl,
		Status:      statusFromString(r.Status),
		SnapshotUrl: r.SnapshotUrl,
		Reason:      r.Reason,
		CheckedAt:   time.Unix(r.CheckedAt, 0).UTC(),
	}
	if r.SnapshotTime != 0 {
		e.SnapshotTime = time.Unix(r.SnapshotTime, 0).UTC()
	}
	return e
}

func (s Store) Record(ctx context.Context, entry Entry) error {
	ctx, span := tracer.Start(ctx, "store:Record")
	defer span.End()

	span.SetAttributes(
		attribute.String("target_url", entry.TargetUrl),
		attribute.String("status", entry.Status.String()),
	)

	checkedAt := entry.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}
	var snapshotTime int64
	if !entry.SnapshotTime.IsZero() {
		snapshotTime = entry.SnapshotTime.Unix()
	}

	err := s.qry.CreateResolution(ctx, db.CreateResolutionParams{
		TargetUrl:    entry.TargetUrl,
		Status:       entry.Status.String(),
		SnapshotUrl:  entry.SnapshotUrl,
		SnapshotTime: snapshotTime,
		Reason:       entry.Reason,
		CheckedAt:    checkedAt.Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// RecordResult is Record for a resolver outcome.
func (s Store) RecordResult(ctx context.Context, targetUrl string, result wayback.SnapshotResult) error {
	return s.Record(ctx, Entry{
		TargetUrl:    targetUrl,
		Status:       result.Status,
		SnapshotUrl:  result.Snapshot.Url,
		SnapshotTime: result.Snapshot.Time,
		Reason:       result.Reason,
	})
}

// History lists every recorded resolution of a target, newest first.
func (s Store) History(ctx context.Context, targetUrl string) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "store:History")
	defer span.End()

	span.SetAttributes(attribute.String("target_url", targetUrl))

	rows, err := s.qry.GetResolutionsByTarget(ctx, targetUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = entryFromRow(r)
	}
	return entries, nil
}

// Recent lists the last n recorded resolutions across all targets,
// newest first.
func (s Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "store:Recent")
	defer span.End()

	rows, err := s.qry.GetRecentResolutions(ctx, int64(n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = entryFromRow(r)
	}
	return entries, nil
}
