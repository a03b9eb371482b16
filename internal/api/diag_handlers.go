package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/strataisp/console/internal/diag"
	"github.com/strataisp/console/internal/metrics"
)

// DiagService is the slice of the diagnostics service the API uses.
type DiagService interface {
	Routers(ctx context.Context) ([]diag.Router, error)
	ValidateProbe(ctx context.Context, req diag.ProbeRequest) error
	NewSession(onLine func(diag.DisplayLine)) *diag.Consumer
	Traceroute(ctx context.Context, routerID, target string) (diag.TracerouteResult, error)
	DNSCheck(ctx context.Context, host string) (diag.DNSResult, error)
}

type probeStreamRequest struct {
	RouterID string `json:"router_id"`
	Target   string `json:"target"`
	Size     int    `json:"size"`
	Count    int    `json:"count"`
}

type tracerouteRequest struct {
	RouterID string `json:"router_id"`
	Target   string `json:"target"`
}

type dnsCheckRequest struct {
	Host string `json:"host"`
}

// probeStreamEnd is the stream's terminal record.
type probeStreamEnd struct {
	State string `json:"state"`
}

func (s *Server) listRouters(w http.ResponseWriter, r *http.Request) {
	routers, err := s.svc.Diag.Routers(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"routers": routers})
}

// streamProbe relays a probe session as newline-delimited JSON display
// lines. The response stays open until the probe completes or the
// client disconnects.
func (s *Server) streamProbe(w http.ResponseWriter, r *http.Request) {
	var req probeStreamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	probe := diag.ProbeRequest{
		RouterID:  req.RouterID,
		Target:    req.Target,
		ProbeSize: req.Size,
		Count:     req.Count,
	}
	if err := s.svc.Diag.ValidateProbe(r.Context(), probe); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// OnLine fires from the consumer's decode goroutine; the mutex keeps
	// lines from interleaving with the terminal write below.
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	consumer := s.svc.Diag.NewSession(func(line diag.DisplayLine) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(line); err != nil {
			return
		}
		flusher.Flush()
	})

	consumer.Start(r.Context(), probe)
	select {
	case <-consumer.Done():
		mu.Lock()
		if err := enc.Encode(probeStreamEnd{State: string(consumer.State())}); err == nil {
			flusher.Flush()
		}
		mu.Unlock()
		metrics.ObserveProbeSession("finished")
	case <-r.Context().Done():
		// Client went away. Stop the session and let it drain; nothing
		// to report to a closed connection.
		consumer.Stop()
		<-consumer.Done()
		metrics.ObserveProbeSession("cancelled")
	}
}

func (s *Server) runTraceroute(w http.ResponseWriter, r *http.Request) {
	var req tracerouteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.RouterID == "" || req.Target == "" {
		writeError(w, http.StatusBadRequest, "router_id and target are required")
		return
	}
	result, err := s.svc.Diag.Traceroute(r.Context(), req.RouterID, req.Target)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) runDNSCheck(w http.ResponseWriter, r *http.Request) {
	var req dnsCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Host == "" {
		writeError(w, http.StatusBadRequest, "host is required")
		return
	}
	result, err := s.svc.Diag.DNSCheck(r.Context(), req.Host)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
