package resolver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"archivescout/lib/capturelog"
	capturelogdb "archivescout/lib/capturelog/db"
	"archivescout/lib/testutil"
	"archivescout/lib/wayback"

	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*httptest.Server, func()) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/resolver",
		DbSchema: capturelogdb.Schema,
	})

	archive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wayback/available":
			target := r.URL.Query().Get("url")
			if target == "http://gone.example.org" {
				fmt.Fprint(w, `{"archived_snapshots": {}}`)
				return
			}
			fmt.Fprintf(w, `{
				"archived_snapshots": {
					"closest": {
						"available": true,
						"url": "https://web.archive.org/web/20230615000000/%s",
						"timestamp": "20230615000000"
					}
				}
			}`, target)
		case "/cdx/search/cdx":
			fmt.Fprint(w, `[
				["urlkey","timestamp","original","mimetype","statuscode","digest","length"],
				["com,example)/","20230615000000","http://example.com/","text/html","200","DIGEST","1234"]
			]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	client := wayback.NewClient(wayback.ClientOptions{
		AvailabilityEndpoint: archive.URL + "/wayback/available",
		CdxEndpoint:          archive.URL + "/cdx/search/cdx",
		Timeout:              time.Second * 5,
	})
	store := capturelog.NewStore(setup.DB)

	mux := http.NewServeMux()
	NewService(client, &store).Register(mux)
	api := httptest.NewServer(mux)

	return api, func() {
		api.Close()
		archive.Close()
		cleanup()
	}
}

func getJson(t *testing.T, url string, out any) int {
	res, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	err = json.NewDecoder(res.Body).Decode(out)
	if err != nil {
		t.Fatal(err)
	}
	return res.StatusCode
}

func TestService(t *testing.T) {
	api, cleanup := setupService(t)
	defer cleanup()

	t.Run("TestResolveFound", func(t *testing.T) {
		var body resolveBody
		status := getJson(t, api.URL+"/api/v1/resolve?url=http://example.com&from=20230101&to=20231231", &body)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "found", body.Status)
		require.Equal(t, "https://web.archive.org/web/20230615000000/http://example.com", body.SnapshotUrl)
		require.Equal(t, "20230615000000", body.Timestamp)
	})

	t.Run("TestResolveNotFound", func(t *testing.T) {
		var body resolveBody
		status := getJson(t, api.URL+"/api/v1/resolve?url=http://gone.example.org", &body)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "not found", body.Status)
		require.Empty(t, body.SnapshotUrl)
	})

	t.Run("TestResolveInvalidInput", func(t *testing.T) {
		var body errorBody
		status := getJson(t, api.URL+"/api/v1/resolve?url=not-absolute", &body)
		require.Equal(t, http.StatusBadRequest, status)
		require.NotEmpty(t, body.Error)

		status = getJson(t, api.URL+"/api/v1/resolve?url=http://example.com&from=2023&to=20231231", &body)
		require.Equal(t, http.StatusBadRequest, status)

		// a half-specified range names the actual problem instead of
		// leaking an empty-string parse error
		status = getJson(t, api.URL+"/api/v1/resolve?url=http://example.com&from=20230101", &body)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "both from and to are required", body.Error)

		status = getJson(t, api.URL+"/api/v1/resolve", &body)
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("TestSnapshots", func(t *testing.T) {
		var body []captureBody
		status := getJson(t, api.URL+"/api/v1/snapshots?url=http://example.com", &body)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, body, 1)
		require.Equal(t, "20230615000000", body[0].Timestamp)
		require.Equal(t, 200, body[0].StatusCode)
		require.Contains(t, body[0].SnapshotUrl, "/20230615000000/http://example.com/")
	})

	t.Run("TestHistory", func(t *testing.T) {
		// the earlier resolve calls should have been recorded
		var body []historyBody
		status := getJson(t, api.URL+"/api/v1/history?url=http://example.com", &body)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, body, 1)
		require.Equal(t, "found", body[0].Status)

		status = getJson(t, api.URL+"/api/v1/history", &body)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, body, 2)
	})
}

func TestServiceWithoutStore(t *testing.T) {
	client := wayback.NewClient(wayback.ClientOptions{})
	mux := http.NewServeMux()
	NewService(client, nil).Register(mux)
	api := httptest.NewServer(mux)
	defer api.Close()

	var body errorBody
	status := getJson(t, api.URL+"/api/v1/history", &body)
	require.Equal(t, http.StatusNotFound, status)
}
