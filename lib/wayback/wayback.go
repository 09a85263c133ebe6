package wayback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"archivescout/lib/archivetime"
	"archivescout/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("lib/wayback")

// ErrInvalidInput wraps every validation failure detected before
// any network I/O takes place.
var ErrInvalidInput = errors.New("invalid input")

const (
	DefaultAvailabilityEndpoint = "https://archive.org/wayback/available"
	DefaultCdxEndpoint          = "https://web.archive.org/cdx/search/cdx"
	DefaultReplayBase           = "https://web.archive.org/web"
)

type Client struct {
	availabilityEndpoint string
	cdxEndpoint          string
	replayBase           string

	Http *resty.Client
}

type ClientOptions struct {
	// endpoints default to the public Wayback Machine when empty
	AvailabilityEndpoint string
	CdxEndpoint          string
	ReplayBase           string
	// defaults to 30 seconds
	Timeout time.Duration
	// works around js challenges on archives fronted by cloudflare
	BypassCDN bool
	// max outbound requests per second, 0 means unlimited
	RequestsPerSecond float64
}

func NewClient(opts ClientOptions) *Client {
	if opts.AvailabilityEndpoint == "" {
		opts.AvailabilityEndpoint = DefaultAvailabilityEndpoint
	}
	if opts.CdxEndpoint == "" {
		opts.CdxEndpoint = DefaultCdxEndpoint
	}
	if opts.ReplayBase == "" {
		opts.ReplayBase = DefaultReplayBase
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}

	client := resty.New()
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(opts.Timeout)

	if opts.BypassCDN {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	if opts.RequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, "wayback/http")

	return &Client{
		availabilityEndpoint: opts.AvailabilityEndpoint,
		cdxEndpoint:          opts.CdxEndpoint,
		replayBase:           opts.ReplayBase,
		Http:                 client,
	}
}

// TimeRange bounds a query to snapshots captured between Start and
// End inclusive. Both bounds are required and Start must not come
// after End.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (r TimeRange) validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: time range requires both bounds", ErrInvalidInput)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: time range starts after it ends", ErrInvalidInput)
	}
	return nil
}

type SnapshotQuery struct {
	TargetUrl string
	Range     *TimeRange
}

func (q SnapshotQuery) validate() error {
	if q.TargetUrl == "" {
		return fmt.Errorf("%w: target url is empty", ErrInvalidInput)
	}
	parsed, err := url.Parse(q.TargetUrl)
	if err != nil {
		return fmt.Errorf("%w: target url: %s", ErrInvalidInput, err.Error())
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%w: target url %q is not absolute", ErrInvalidInput, q.TargetUrl)
	}
	if q.Range != nil {
		return q.Range.validate()
	}
	return nil
}

type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusRequestFailed
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not found"
	case StatusRequestFailed:
		return "request failed"
	}
	return "unknown"
}

type Snapshot struct {
	// replay url and 14-digit timestamp exactly as the archive
	// reported them
	Url       string
	Timestamp string
	Time      time.Time
}

// SnapshotResult is a variant over found/not found/request failed.
// Snapshot is only meaningful for StatusFound, Reason only for
// StatusRequestFailed.
type SnapshotResult struct {
	Status   Status
	Snapshot Snapshot
	Reason   string
}

func requestFailed(format string, args ...any) SnapshotResult {
	return SnapshotResult{
		Status: StatusRequestFailed,
		Reason: fmt.Sprintf(format, args...),
	}
}

type closestRecord struct {
	// optional, some archives report only url and timestamp
	Available *bool  `json:"available"`
	Url       string `json:"url"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

type availabilityResponse struct {
	ArchivedSnapshots struct {
		Closest *closestRecord `json:"closest"`
	} `json:"archived_snapshots"`
}

// Resolve looks up the archived snapshot closest to the query's time
// range (or closest overall when no range is given). It performs
// exactly one outbound request and never retries. Transport and HTTP
// failures come back as a StatusRequestFailed result rather than an
// error, the error return is reserved for invalid queries.
func (c *Client) Resolve(ctx context.Context, query SnapshotQuery) (SnapshotResult, error) {
	ctx, span := tracer.Start(ctx, "client:Resolve")
	defer span.End()

	span.SetAttributes(attribute.String("target_url", query.TargetUrl))

	if err := query.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return SnapshotResult{}, err
	}

	req := c.Http.R().
		SetContext(ctx).
		SetQueryParam("url", query.TargetUrl)
	if query.Range != nil {
		req.SetQueryParam("from", archivetime.FormatDate(query.Range.Start))
		req.SetQueryParam("to", archivetime.FormatDate(query.Range.End))
	}

	res, err := req.Get(c.availabilityEndpoint)
	if err != nil {
		span.SetStatus(codes.Error, "availability request failed")
		return requestFailed("availability request: %s", err.Error()), nil
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "availability endpoint returned an error status")
		return requestFailed("availability endpoint returned %s", res.Status()), nil
	}

	var payload availabilityResponse
	err = json.Unmarshal(res.Body(), &payload)
	if err != nil {
		span.SetStatus(codes.Error, "failed to decode availability payload")
		return requestFailed("decode availability payload: %s", err.Error()), nil
	}

	closest := payload.ArchivedSnapshots.Closest
	if closest == nil || closest.Url == "" {
		return SnapshotResult{Status: StatusNotFound}, nil
	}
	// only an explicit "available": false disqualifies the record,
	// a closest match with just url and timestamp still counts
	if closest.Available != nil && !*closest.Available {
		return SnapshotResult{Status: StatusNotFound}, nil
	}

	snapshot := Snapshot{
		Url:       closest.Url,
		Timestamp: closest.Timestamp,
	}
	snapshot.Time, err = archivetime.ParseTimestamp(closest.Timestamp)
	if err != nil {
		span.SetStatus(codes.Error, "archive reported a malformed timestamp")
		return requestFailed("malformed snapshot timestamp: %s", err.Error()), nil
	}

	span.SetAttributes(attribute.String("snapshot_url", snapshot.Url))
	return SnapshotResult{
		Status:   StatusFound,
		Snapshot: snapshot,
	}, nil
}
