package resolver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"archivescout/lib/archivetime"
	"archivescout/lib/capturelog"
	"archivescout/lib/wayback"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/resolver")

type Service struct {
	client *wayback.Client
	// nil disables the research log
	store *capturelog.Store
}

func NewService(client *wayback.Client, store *capturelog.Store) Service {
	return Service{
		client: client,
		store:  store,
	}
}

func (s Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/resolve", s.handleResolve)
	mux.HandleFunc("GET /api/v1/snapshots", s.handleSnapshots)
	mux.HandleFunc("GET /api/v1/history", s.handleHistory)
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to encode response body", "err", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// pulls the shared url/from/to parameters out of the request,
// ok=false means a 400 has already been written
func queryFromRequest(w http.ResponseWriter, r *http.Request) (string, *wayback.TimeRange, bool) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeJson(w, http.StatusBadRequest, errorBody{Error: "missing url parameter"})
		return "", nil, false
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" && to == "" {
		return target, nil, true
	}
	if from == "" || to == "" {
		writeJson(w, http.StatusBadRequest, errorBody{Error: "both from and to are required"})
		return "", nil, false
	}

	start, err := archivetime.ParseDate(from)
	if err != nil {
		writeJson(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return "", nil, false
	}
	end, err := archivetime.ParseDate(to)
	if err != nil {
		writeJson(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return "", nil, false
	}
	return target, &wayback.TimeRange{Start: start, End: end}, true
}

type resolveBody struct {
	Status      string `json:"status"`
	SnapshotUrl string `json:"snapshot_url,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (s Service) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Resolve")
	defer span.End()

	target, timeRange, ok := queryFromRequest(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("target_url", target))

	result, err := s.client.Resolve(ctx, wayback.SnapshotQuery{
		TargetUrl: target,
		Range:     timeRange,
	})
	if errors.Is(err, wayback.ErrInvalidInput) {
		writeJson(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeJson(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	if s.store != nil {
		err := s.store.RecordResult(ctx, target, result)
		if err != nil {
			// the lookup already succeeded, losing a log row is not
			// worth failing the request over
			slog.ErrorContext(ctx, "failed to record resolution", "target", target, "err", err)
		}
	}

	writeJson(w, http.StatusOK, resolveBody{
		Status:      result.Status.String(),
		SnapshotUrl: result.Snapshot.Url,
		Timestamp:   result.Snapshot.Timestamp,
		Reason:      result.Reason,
	})
}

type captureBody struct {
	Timestamp   string `json:"timestamp"`
	Original    string `json:"original"`
	MimeType    string `json:"mime_type"`
	StatusCode  int    `json:"status_code"`
	Digest      string `json:"digest"`
	Length      int64  `json:"length"`
	SnapshotUrl string `json:"snapshot_url"`
}

func (s Service) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Snapshots")
	defer span.End()

	target, timeRange, ok := queryFromRequest(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("target_url", target))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeJson(w, http.StatusBadRequest, errorBody{Error: "limit must be an integer"})
			return
		}
	}

	captures, err := s.client.Snapshots(ctx, wayback.CaptureQuery{
		TargetUrl: target,
		Range:     timeRange,
		Limit:     limit,
	})
	if errors.Is(err, wayback.ErrInvalidInput) {
		writeJson(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeJson(w, http.StatusBadGateway, errorBody{Error: err.Error()})
		return
	}

	body := make([]captureBody, len(captures))
	for i, c := range captures {
		body[i] = captureBody{
			Timestamp:   c.Timestamp,
			Original:    c.Original,
			MimeType:    c.MimeType,
			StatusCode:  c.StatusCode,
			Digest:      c.Digest,
			Length:      c.Length,
			SnapshotUrl: s.client.ReplayUrl(c),
		}
	}
	writeJson(w, http.StatusOK, body)
}

type historyBody struct {
	TargetUrl   string `json:"target_url"`
	Status      string `json:"status"`
	SnapshotUrl string `json:"snapshot_url,omitempty"`
	Reason      string `json:"reason,omitempty"`
	CheckedAt   int64  `json:"checked_at"`
}

func (s Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "History")
	defer span.End()

	if s.store == nil {
		writeJson(w, http.StatusNotFound, errorBody{Error: "research log is disabled"})
		return
	}

	var entries []capturelog.Entry
	var err error
	if target := r.URL.Query().Get("url"); target != "" {
		entries, err = s.store.History(ctx, target)
	} else {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil {
				writeJson(w, http.StatusBadRequest, errorBody{Error: "limit must be an integer"})
				return
			}
		}
		entries, err = s.store.Recent(ctx, limit)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeJson(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	body := make([]historyBody, len(entries))
	for i, e := range entries {
		body[i] = historyBody{
			TargetUrl:   e.TargetUrl,
			Status:      e.Status.String(),
			SnapshotUrl: e.SnapshotUrl,
			Reason:      e.Reason,
			CheckedAt:   e.CheckedAt.Unix(),
		}
	}
	writeJson(w, http.StatusOK, body)
}
