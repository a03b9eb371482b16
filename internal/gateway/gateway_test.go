package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/metrics"
)

func init() {
	metrics.Init()
}

func newGatewayServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSMSClientSend(t *testing.T) {
	t.Parallel()

	bodies := make(chan map[string]any, 1)
	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body
		_, _ = w.Write([]byte(`{"message_id":"sms-9001"}`))
	})

	client := NewSMSClient(SMSConfig{BaseURL: srv.URL, APIKey: "k"})
	id, err := client.Send(context.Background(), "+15550001", "Your invoice is due.")
	require.NoError(t, err)
	require.Equal(t, "sms-9001", id)
	require.Equal(t, map[string]any{"to": "+15550001", "message": "Your invoice is due."}, <-bodies)
}

func TestSMSClientRejectedOnClientError(t *testing.T) {
	t.Parallel()

	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"destination not reachable"}`))
	})

	_, err := NewSMSClient(SMSConfig{BaseURL: srv.URL}).Send(context.Background(), "+bad", "hi")
	require.ErrorIs(t, err, ErrRejected)
	require.Contains(t, err.Error(), "destination not reachable")
}

func TestSMSClientUnavailableOnServerError(t *testing.T) {
	t.Parallel()

	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := NewSMSClient(SMSConfig{BaseURL: srv.URL}).Send(context.Background(), "+15550001", "hi")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSMSClientUnavailableOnConnectFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewSMSClient(SMSConfig{BaseURL: srv.URL}).Send(context.Background(), "+15550001", "hi")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestWhatsAppClientSend(t *testing.T) {
	t.Parallel()

	bodies := make(chan map[string]any, 1)
	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"wa-77"}`))
	})

	client := NewWhatsAppClient(WhatsAppConfig{BaseURL: srv.URL, APIKey: "k"})
	id, err := client.Send(context.Background(), "+15550002", "Welcome aboard")
	require.NoError(t, err)
	require.Equal(t, "wa-77", id)
	require.Equal(t, map[string]any{"recipient": "+15550002", "text": "Welcome aboard"}, <-bodies)
}

func TestWhatsAppClientRejectedOnClientError(t *testing.T) {
	t.Parallel()

	srv := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"recipient opted out"}`))
	})

	_, err := NewWhatsAppClient(WhatsAppConfig{BaseURL: srv.URL}).Send(context.Background(), "+15550002", "hi")
	require.ErrorIs(t, err, ErrRejected)
	require.Contains(t, err.Error(), "recipient opted out")
}

func TestLimiterDelaysBeyondBurst(t *testing.T) {
	t.Parallel()

	// 20 per second means one token every 50ms after the burst.
	l := NewLimiter(20, 1)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "sms.example"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "sms.example"))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestLimiterTracksHostsIndependently(t *testing.T) {
	t.Parallel()

	l := NewLimiter(1, 1)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "sms.example"))

	// A different host has its own bucket and does not inherit the
	// depleted one.
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "wa.example"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := NewLimiter(0.1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "sms.example"))
	require.Error(t, l.Wait(ctx, "sms.example"))
}
