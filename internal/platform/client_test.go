package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/store"
)

func newCoreServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		Timeout:       2 * time.Second,
		MaxTries:      3,
		RetryInterval: time.Millisecond,
	})
}

func TestClientRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64
	srv := newCoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count":12}`))
	})

	count, err := newTestClient(srv.URL).ActiveSessionCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, count)
	require.Equal(t, int64(3), attempts.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64
	srv := newCoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such router"}`))
	})

	_, err := newTestClient(srv.URL).Router(context.Background(), "rtr-404")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no such router")
	require.Equal(t, int64(1), attempts.Load())
}

func TestClientSendsAPIKey(t *testing.T) {
	t.Parallel()

	keys := make(chan string, 1)
	srv := newCoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("X-API-Key")
		_, _ = w.Write([]byte(`{"count":0}`))
	})

	_, err := newTestClient(srv.URL).ActiveSessionCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, "test-key", <-keys)
}

func TestRouterLookup(t *testing.T) {
	t.Parallel()

	paths := make(chan string, 1)
	srv := newCoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		_, _ = w.Write([]byte(`{"id":"rtr-1","label":"CoreRtr","address":"10.0.0.1"}`))
	})

	router, err := newTestClient(srv.URL).Router(context.Background(), "rtr-1")
	require.NoError(t, err)
	require.Equal(t, "/api/internal/routers/rtr-1", <-paths)
	require.Equal(t, "CoreRtr", router.Label)
	require.Equal(t, "10.0.0.1", router.Address)
}

func TestInvoicesSinceBuildsCursorQuery(t *testing.T) {
	t.Parallel()

	queries := make(chan string, 1)
	since := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	changed := since.Add(90 * time.Minute)
	srv := newCoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		resp := map[string]any{
			"invoices": []map[string]any{{
				"id": "inv-1", "subscriber_id": "sub-1", "subscriber_name": "Dana Osei",
				"period": "2024-07", "amount_cents": 4500, "currency": "USD",
				"status": "open", "issued_at": since, "due_at": since.AddDate(0, 0, 14),
				"changed_at": changed,
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	invoices, err := newTestClient(srv.URL).InvoicesSince(context.Background(), since, 100)
	require.NoError(t, err)

	query := <-queries
	require.Contains(t, query, "limit=100")
	require.Contains(t, query, "since=2024-07-01T12")

	require.Len(t, invoices, 1)
	require.Equal(t, store.InvoiceOpen, invoices[0].Status)
	require.True(t, invoices[0].SyncedAt.Equal(changed))
}

func TestPlanExists(t *testing.T) {
	t.Parallel()

	srv := newCoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/internal/plans/fiber-50" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"unknown plan"}`))
	})

	client := newTestClient(srv.URL)

	ok, err := client.PlanExists(context.Background(), "fiber-50")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.PlanExists(context.Background(), "fiber-9000")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueryAudienceSendsFilter(t *testing.T) {
	t.Parallel()

	bodies := make(chan map[string]any, 1)
	srv := newCoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body
		_, _ = w.Write([]byte(`{"subscribers":[
			{"subscriber_id":"sub-1","phone":"+15550001","name":"Dana"},
			{"subscriber_id":"sub-2","phone":"+15550002","name":"Femi"}
		]}`))
	})

	members, err := newTestClient(srv.URL).QueryAudience(context.Background(), `plan == "fiber-50"`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"filter": `plan == "fiber-50"`}, <-bodies)
	require.Len(t, members, 2)
	require.Equal(t, "sub-2", members[1].SubscriberID)
}

func TestUpsertSubscribersReturnsRowOutcomes(t *testing.T) {
	t.Parallel()

	srv := newCoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"index":0,"ok":true},
			{"index":1,"ok":false,"message":"duplicate phone"}
		]}`))
	})

	outcomes, err := newTestClient(srv.URL).UpsertSubscribers(context.Background(), []SubscriberUpsert{
		{Name: "Dana Osei", Phone: "+15550001", PlanCode: "fiber-50"},
		{Name: "Femi Ade", Phone: "+15550001", PlanCode: "fiber-50"},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	require.True(t, outcomes[0].OK)
	require.Equal(t, "duplicate phone", outcomes[1].Message)
}

func TestPushScheduleRulesSendsEveryRule(t *testing.T) {
	t.Parallel()

	bodies := make(chan []byte, 1)
	srv := newCoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies <- data
		w.WriteHeader(http.StatusNoContent)
	})

	rules := []store.ScheduleRule{
		{Name: "night-boost", DayMask: 127, StartMinute: 1320, EndMinute: 360, RateDownKbps: 51200, RateUpKbps: 10240, TargetGroup: "residential"},
	}
	err := newTestClient(srv.URL).PushScheduleRules(context.Background(), rules)
	require.NoError(t, err)

	var wire struct {
		Rules []map[string]any `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(<-bodies, &wire))
	require.Len(t, wire.Rules, 1)
	require.Equal(t, "night-boost", wire.Rules[0]["name"])
	require.Equal(t, float64(127), wire.Rules[0]["day_mask"])
}
