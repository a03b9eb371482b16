package diag

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	mu          sync.Mutex
	byID        map[string]Router
	routerCalls int
	listCalls   int
	err         error
}

func (s *stubLookup) Router(_ context.Context, id string) (Router, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routerCalls++
	if s.err != nil {
		return Router{}, s.err
	}
	r, ok := s.byID[id]
	if !ok {
		return Router{}, fmt.Errorf("router %s not found", id)
	}
	return r, nil
}

func (s *stubLookup) Routers(_ context.Context) ([]Router, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Router, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r)
	}
	return out, nil
}

func (s *stubLookup) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routerCalls, s.listCalls
}

func TestDirectoryCachesRouterLookups(t *testing.T) {
	t.Parallel()

	lookup := &stubLookup{byID: map[string]Router{
		"rtr-1": {ID: "rtr-1", Label: "CoreRtr", Address: "10.0.0.1"},
	}}
	d := NewDirectory(lookup, time.Minute)
	t.Cleanup(d.Close)

	first, err := d.Router(context.Background(), "rtr-1")
	require.NoError(t, err)
	second, err := d.Router(context.Background(), "rtr-1")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, "CoreRtr", second.Label)
	routerCalls, _ := lookup.calls()
	require.Equal(t, 1, routerCalls)
}

func TestDirectoryListingPrimesCache(t *testing.T) {
	t.Parallel()

	lookup := &stubLookup{byID: map[string]Router{
		"rtr-1": {ID: "rtr-1", Label: "CoreRtr", Address: "10.0.0.1"},
		"rtr-2": {ID: "rtr-2", Label: "EdgeRtr", Address: "10.0.0.2"},
	}}
	d := NewDirectory(lookup, time.Minute)
	t.Cleanup(d.Close)

	routers, err := d.Routers(context.Background())
	require.NoError(t, err)
	require.Len(t, routers, 2)

	r, err := d.Router(context.Background(), "rtr-2")
	require.NoError(t, err)
	require.Equal(t, "EdgeRtr", r.Label)

	routerCalls, listCalls := lookup.calls()
	require.Zero(t, routerCalls)
	require.Equal(t, 1, listCalls)
}

func TestDirectoryListingAlwaysHitsSource(t *testing.T) {
	t.Parallel()

	lookup := &stubLookup{byID: map[string]Router{
		"rtr-1": {ID: "rtr-1", Label: "CoreRtr", Address: "10.0.0.1"},
	}}
	d := NewDirectory(lookup, time.Minute)
	t.Cleanup(d.Close)

	for i := 0; i < 3; i++ {
		_, err := d.Routers(context.Background())
		require.NoError(t, err)
	}
	_, listCalls := lookup.calls()
	require.Equal(t, 3, listCalls)
}

func TestDirectoryLookupErrorPropagates(t *testing.T) {
	t.Parallel()

	lookup := &stubLookup{err: fmt.Errorf("core unavailable")}
	d := NewDirectory(lookup, time.Minute)
	t.Cleanup(d.Close)

	_, err := d.Router(context.Background(), "rtr-9")
	require.Error(t, err)
	require.Contains(t, err.Error(), "resolve router rtr-9")

	_, err = d.Routers(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "list routers")
}
