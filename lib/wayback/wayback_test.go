package wayback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"archivescout/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testClient(server *httptest.Server) *Client {
	return NewClient(ClientOptions{
		AvailabilityEndpoint: server.URL + "/wayback/available",
		CdxEndpoint:          server.URL + "/cdx/search/cdx",
		ReplayBase:           server.URL + "/web",
		Timeout:              time.Second * 5,
	})
}

func TestResolveInvalidInput(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "lib/wayback")
	defer cleanup()

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()
	client := testClient(server)

	ctx := context.Background()

	cases := []struct {
		name  string
		query SnapshotQuery
	}{
		{name: "empty url", query: SnapshotQuery{TargetUrl: ""}},
		{name: "relative url", query: SnapshotQuery{TargetUrl: "example.com/page"}},
		{name: "garbage url", query: SnapshotQuery{TargetUrl: "ht tp://bad host"}},
		{
			name: "start after end",
			query: SnapshotQuery{
				TargetUrl: "http://example.com",
				Range: &TimeRange{
					Start: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
					End:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				},
			},
		},
		{
			name: "half-open range",
			query: SnapshotQuery{
				TargetUrl: "http://example.com",
				Range:     &TimeRange{End: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
			},
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			_, err := client.Resolve(ctx, test.query)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidInput), "expected ErrInvalidInput, got: %v", err)
		})
	}

	require.Equal(t, 0, requests, "invalid queries must not hit the network")
}

func TestResolveFound(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "lib/wayback")
	defer cleanup()

	const snapshotUrl = "https://web.archive.org/web/20230615000000/http://example.com"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "http://example.com", r.URL.Query().Get("url"))
		require.Equal(t, "20230101", r.URL.Query().Get("from"))
		require.Equal(t, "20231231", r.URL.Query().Get("to"))

		fmt.Fprintf(w, `{
			"url": "http://example.com",
			"archived_snapshots": {
				"closest": {
					"available": true,
					"url": %q,
					"timestamp": "20230615000000",
					"status": "200"
				}
			}
		}`, snapshotUrl)
	}))
	defer server.Close()
	client := testClient(server)

	result, err := client.Resolve(context.Background(), SnapshotQuery{
		TargetUrl: "http://example.com",
		Range: &TimeRange{
			Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	expect := SnapshotResult{
		Status: StatusFound,
		Snapshot: Snapshot{
			Url:       snapshotUrl,
			Timestamp: "20230615000000",
			Time:      time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	diff := cmp.Diff(expect, result)
	require.Empty(t, diff)
}

func TestResolveFoundWithoutAvailableField(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "lib/wayback")
	defer cleanup()

	const snapshotUrl = "https://web.archive.org/web/20230615000000/http://example.com"

	// some archives report a closest record with only url and timestamp
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"archived_snapshots": {
				"closest": {"url": %q, "timestamp": "20230615000000"}
			}
		}`, snapshotUrl)
	}))
	defer server.Close()
	client := testClient(server)

	result, err := client.Resolve(context.Background(), SnapshotQuery{
		TargetUrl: "http://example.com",
	})
	require.NoError(t, err)
	require.Equal(t, StatusFound, result.Status)
	require.Equal(t, snapshotUrl, result.Snapshot.Url)
	require.Equal(t, "20230615000000", result.Snapshot.Timestamp)
}

func TestResolveNotFound(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "lib/wayback")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"url": "http://example.com", "archived_snapshots": {}}`)
	}))
	defer server.Close()
	client := testClient(server)

	result, err := client.Resolve(context.Background(), SnapshotQuery{
		TargetUrl: "http://example.com",
	})
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, result.Status)
	require.Empty(t, result.Snapshot.Url)
}

func TestResolveUnavailableClosest(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "lib/wayback")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"archived_snapshots": {
				"closest": {
					"available": false,
					"url": "https://web.archive.org/web/20230615000000/http://example.com",
					"timestamp": "20230615000000"
				}
			}
		}`)
	}))
	defer server.Close()
	client := testClient(server)

	result, err := client.Resolve(context.Background(), SnapshotQuery{
		TargetUrl: "http://example.com",
	})
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, result.Status)
}

func TestResolveRequestFailed(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "lib/wayback")
	defer cleanup()

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()
		client := testClient(server)

		result, err := client.Resolve(context.Background(), SnapshotQuery{
			TargetUrl: "http://example.com",
		})
		require.NoError(t, err)
		require.Equal(t, StatusRequestFailed, result.Status)
		require.Contains(t, result.Reason, "500")
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		client := testClient(server)
		// closing first forces a transport error
		server.Close()

		result, err := client.Resolve(context.Background(), SnapshotQuery{
			TargetUrl: "http://example.com",
		})
		require.NoError(t, err)
		require.Equal(t, StatusRequestFailed, result.Status)
		require.NotEmpty(t, result.Reason)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Millisecond * 500)
		}))
		defer server.Close()
		client := NewClient(ClientOptions{
			AvailabilityEndpoint: server.URL + "/wayback/available",
			Timeout:              time.Millisecond * 50,
		})

		result, err := client.Resolve(context.Background(), SnapshotQuery{
			TargetUrl: "http://example.com",
		})
		require.NoError(t, err)
		require.Equal(t, StatusRequestFailed, result.Status)
		require.NotEmpty(t, result.Reason)
	})

	t.Run("garbage payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>definitely not json</html>")
		}))
		defer server.Close()
		client := testClient(server)

		result, err := client.Resolve(context.Background(), SnapshotQuery{
			TargetUrl: "http://example.com",
		})
		require.NoError(t, err)
		require.Equal(t, StatusRequestFailed, result.Status)
	})
}

// callers fan out across urls themselves, the client must tolerate
// concurrent use
func TestResolveConcurrent(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "lib/wayback")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"archived_snapshots": {
				"closest": {
					"available": true,
					"url": "https://web.archive.org/web/20230615000000/%s",
					"timestamp": "20230615000000"
				}
			}
		}`, r.URL.Query().Get("url"))
	}))
	defer server.Close()
	client := testClient(server)

	wg := sync.WaitGroup{}
	results := make([]SnapshotResult, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = client.Resolve(context.Background(), SnapshotQuery{
				TargetUrl: fmt.Sprintf("http://example.com/page/%d", i),
			})
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, StatusFound, results[i].Status)
		require.Contains(t, results[i].Snapshot.Url, fmt.Sprintf("/page/%d", i))
	}
}
