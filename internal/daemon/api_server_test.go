package daemon

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"srmsync/internal/api"
	"srmsync/internal/history"
	"srmsync/internal/logging"
	"srmsync/internal/workflow"
)

func newTestAPI(t *testing.T, h *harness, token string) *httptest.Server {
	t.Helper()
	srv := &apiServer{daemon: h.daemon, logger: logging.NewNop()}
	ts := httptest.NewServer(srv.routes(token))
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestAPIStatusAndGames(t *testing.T) {
	h := newHarness(t)
	ts := newTestAPI(t, h, "")

	var status api.DaemonStatus
	if code := getJSON(t, ts.URL+"/api/status", &status); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if status.Running || status.PID == 0 || len(status.Dependencies) != 3 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.TrackedGames[hades.ID.String()] != "install_pending" {
		t.Fatalf("tracked = %v", status.TrackedGames)
	}

	var games api.GameListResponse
	if code := getJSON(t, ts.URL+"/api/games?q=cel", &games); code != http.StatusOK {
		t.Fatalf("games code %d", code)
	}
	if len(games.Games) != 1 || games.Games[0].Name != "Celeste" {
		t.Fatalf("games = %+v", games.Games)
	}
}

func TestAPISessions(t *testing.T) {
	h := newHarness(t)
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	h.history.sessions = []history.Session{
		{ID: "b", Outcome: "succeeded", StartedAt: start, FinishedAt: start.Add(time.Second)},
		{ID: "a", Outcome: "failed", Failure: "timed_out"},
	}
	ts := newTestAPI(t, h, "")

	var resp api.SessionListResponse
	if code := getJSON(t, ts.URL+"/api/sessions?limit=1", &resp); code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
	if len(resp.Sessions) != 1 || resp.Sessions[0].ID != "b" || resp.Sessions[0].DurationMS != 1000 {
		t.Fatalf("sessions = %+v", resp.Sessions)
	}
	if code := getJSON(t, ts.URL+"/api/sessions?limit=zero", nil); code != http.StatusBadRequest {
		t.Fatalf("invalid limit code %d", code)
	}
}

func TestAPISyncQueues(t *testing.T) {
	h := newHarness(t)
	ts := newTestAPI(t, h, "")

	resp, err := http.Post(ts.URL+"/api/sync", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("code %d", resp.StatusCode)
	}
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body["queued"] {
		t.Fatalf("body = %v", body)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	h := newHarness(t)
	ts := newTestAPI(t, h, "s3cret")

	if code := getJSON(t, ts.URL+"/api/status", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestAPIMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	reg := prometheus.NewRegistry()
	workflow.NewMetrics(reg)
	h.daemon.deps.Registry = reg
	ts := newTestAPI(t, h, "")

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "srmsync_session_in_progress") {
		t.Fatalf("metrics code=%d body=%s", resp.StatusCode, body)
	}
}

func TestAPIMetricsDisabledWithoutRegistry(t *testing.T) {
	h := newHarness(t)
	ts := newTestAPI(t, h, "")
	if code := getJSON(t, ts.URL+"/metrics", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}
