package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/diag"
)

func newDiagService(t *testing.T, agentURL string) *diag.Service {
	t.Helper()
	svc := diag.NewService(diag.ServiceConfig{
		AgentBaseURL: agentURL,
		AgentTimeout: 2 * time.Second,
		RouterTTL:    time.Minute,
		Lookup: &fakeLookup{routers: []diag.Router{
			{ID: "rtr-1", Label: "CoreRtr", Address: "10.0.0.1"},
		}},
	})
	t.Cleanup(svc.Close)
	return svc
}

// TestStreamProbe drives a probe through the full path: handler, stream
// consumer, fake agent, and back out as NDJSON display lines.
func TestStreamProbe(t *testing.T) {
	t.Parallel()

	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/probe/stream", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		lines := []string{
			`{"type":"start","target":"8.8.8.8","router_label":"CoreRtr","size":64,"count":2}`,
			`{"type":"reply","seq":1,"host":"8.8.8.8","rtt_ms":11.2,"ttl":57}`,
			`{"type":"timeout","seq":2}`,
			`{"type":"stats","sent":2,"received":1,"lost":1,"loss_pct":50}`,
		}
		for _, line := range lines {
			_, err := w.Write([]byte(line + "\n"))
			require.NoError(t, err)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
	t.Cleanup(agent.Close)

	srv := newTestServer(Services{Diag: newDiagService(t, agent.URL)}, Config{})
	console := httptest.NewServer(srv.Handler())
	t.Cleanup(console.Close)

	body := strings.NewReader(`{"router_id":"rtr-1","target":"8.8.8.8","size":64,"count":2}`)
	resp, err := http.Post(console.URL+"/api/v1/diag/ping/stream", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var raw [][]byte
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		raw = append(raw, append([]byte(nil), scanner.Bytes()...))
	}
	require.NoError(t, scanner.Err())
	require.Greater(t, len(raw), 1)

	// The last record closes the stream with the session state; everything
	// before it is a display line.
	var end probeStreamEnd
	require.NoError(t, json.Unmarshal(raw[len(raw)-1], &end))
	require.Equal(t, string(diag.StateDone), end.State)

	var text []string
	for _, line := range raw[:len(raw)-1] {
		var display diag.DisplayLine
		require.NoError(t, json.Unmarshal(line, &display))
		text = append(text, display.Text)
	}
	joined := strings.Join(text, "\n")
	require.Contains(t, joined, "8.8.8.8")
	require.Contains(t, joined, "Request timed out")
}

func TestStreamProbeRejectsInvalidRequest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(Services{Diag: newDiagService(t, "http://agents.internal:9000")}, Config{})
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"router_id":"rtr-1","target":"8.8.8.8","size":100,"count":2}`)
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/diag/ping/stream", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "not a supported probe size")
}

func TestListRouters(t *testing.T) {
	t.Parallel()

	srv := newTestServer(Services{Diag: newDiagService(t, "http://agents.internal:9000")}, Config{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diag/routers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "CoreRtr")
}

func TestRunDNSCheckRequiresHost(t *testing.T) {
	t.Parallel()

	srv := newTestServer(Services{Diag: newDiagService(t, "http://agents.internal:9000")}, Config{})
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"host":""}`)
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/diag/dns", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeLookup struct {
	routers []diag.Router
}

func (f *fakeLookup) Router(_ context.Context, id string) (diag.Router, error) {
	for _, r := range f.routers {
		if r.ID == id {
			return r, nil
		}
	}
	return diag.Router{}, errors.New("router not found")
}

func (f *fakeLookup) Routers(context.Context) ([]diag.Router, error) {
	return f.routers, nil
}
