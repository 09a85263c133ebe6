package wayback

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"archivescout/lib/archivetime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Capture is one row of a url's capture history as reported by the
// cdx search api.
type Capture struct {
	Timestamp  string
	Original   string
	MimeType   string
	StatusCode int
	Digest     string
	Length     int64
}

// SnapshotUrl composes the replay page url for this capture,
// e.g. https://web.archive.org/web/20230615000000/http://example.com
func (c Capture) SnapshotUrl(replayBase string) string {
	return fmt.Sprintf(
		"%s/%s/%s",
		strings.TrimRight(replayBase, "/"),
		c.Timestamp,
		c.Original,
	)
}

func (c *Client) ReplayUrl(capture Capture) string {
	return capture.SnapshotUrl(c.replayBase)
}

type CaptureQuery struct {
	TargetUrl string
	Range     *TimeRange
	// caps the number of returned captures, 0 means the archive's default
	Limit int
	// restrict to captures that replayed with http 200
	OnlyOK bool
}

func (q CaptureQuery) validate() error {
	err := SnapshotQuery{TargetUrl: q.TargetUrl, Range: q.Range}.validate()
	if err != nil {
		return err
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative capture limit", ErrInvalidInput)
	}
	return nil
}

// Snapshots lists the archive's captures of a url, oldest first. A
// failing endpoint surfaces as an error here since there is no
// partial result worth returning.
func (c *Client) Snapshots(ctx context.Context, query CaptureQuery) ([]Capture, error) {
	ctx, span := tracer.Start(ctx, "client:Snapshots")
	defer span.End()

	span.SetAttributes(attribute.String("target_url", query.TargetUrl))

	if err := query.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req := c.Http.R().
		SetContext(ctx).
		SetQueryParam("url", query.TargetUrl).
		SetQueryParam("output", "json")
	if query.Range != nil {
		req.SetQueryParam("from", archivetime.FormatDate(query.Range.Start))
		req.SetQueryParam("to", archivetime.FormatDate(query.Range.End))
	}
	if query.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(query.Limit))
	}
	if query.OnlyOK {
		req.SetQueryParam("filter", "statuscode:200")
	}

	res, err := req.Get(c.cdxEndpoint)
	if err != nil {
		span.SetStatus(codes.Error, "cdx request failed")
		return nil, fmt.Errorf("cdx request: %w", err)
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "cdx endpoint returned an error status")
		return nil, fmt.Errorf("cdx endpoint returned %s", res.Status())
	}

	captures, err := parseCdxRows(res.Body())
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse cdx payload")
		return nil, err
	}

	span.SetAttributes(attribute.Int("captures", len(captures)))
	return captures, nil
}

// the json output is a list of rows where the first row names the
// columns of the rest, ex.
//
//	[["urlkey","timestamp","original","mimetype","statuscode","digest","length"],
//	 ["com,example)/","20230615000000","http://example.com","text/html","200","ABC123","1234"]]
func parseCdxRows(body []byte) ([]Capture, error) {
	var rows [][]string
	err := json.Unmarshal(body, &rows)
	if err != nil {
		return nil, fmt.Errorf("decode cdx payload: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := map[string]int{}
	for i, name := range rows[0] {
		columns[name] = i
	}
	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var captures []Capture
	for _, row := range rows[1:] {
		capture := Capture{
			Timestamp: field(row, "timestamp"),
			Original:  field(row, "original"),
			MimeType:  field(row, "mimetype"),
			Digest:    field(row, "digest"),
		}
		// some rows report "-" for status or length
		if code, err := strconv.Atoi(field(row, "statuscode")); err == nil {
			capture.StatusCode = code
		}
		if length, err := strconv.ParseInt(field(row, "length"), 10, 64); err == nil {
			capture.Length = length
		}
		captures = append(captures, capture)
	}
	return captures, nil
}
