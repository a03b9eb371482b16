package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is the consumer lifecycle phase.
type State string

// Consumer states. Done is terminal for a session, not for the consumer:
// Start re-enters running with a cleared line buffer.
const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateDone    State = "done"
)

// genericStreamError is shown when a failed probe response carries no
// usable message.
const genericStreamError = "probe request failed"

// Doer executes a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ConsumerConfig configures a stream consumer.
type ConsumerConfig struct {
	// Endpoint is the agent gateway's streaming probe URL.
	Endpoint string
	// Client executes the probe request. Defaults to a client with no
	// timeout; the stream stays open until the agent closes it.
	Client Doer
	// OnLine, when set, observes every appended line in arrival order.
	OnLine func(DisplayLine)
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Consumer owns the lifecycle of one outstanding probe stream: it issues
// the request, decodes newline-delimited JSON events incrementally,
// renders them to display lines, and supports cooperative cancellation.
// At most one session is in flight per consumer; starting a new session
// aborts the previous one silently.
type Consumer struct {
	endpoint string
	client   Doer
	onLine   func(DisplayLine)
	logger   *zap.Logger

	mu     sync.Mutex
	state  State
	lines  []DisplayLine
	cancel context.CancelFunc
	done   chan struct{}
	gen    uint64

	malformed atomic.Uint64
}

// NewConsumer builds an idle consumer.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		endpoint: cfg.Endpoint,
		client:   client,
		onLine:   cfg.OnLine,
		logger:   logger,
		state:    StateIdle,
	}
}

// Start begins a probe session. A session already running is aborted
// first, exactly as if the caller had invoked Stop. The line buffer is
// cleared before any event of the new session renders. Cancellation of
// ctx counts as a user stop, not a failure.
//
// Business validation (known router, supported size, count bounds) is the
// caller's responsibility; Start checks protocol framing only.
func (c *Consumer) Start(ctx context.Context, req ProbeRequest) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.state == StateRunning && c.done != nil {
		close(c.done)
	}
	c.gen++
	gen := c.gen
	sessCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateRunning
	c.lines = nil
	c.mu.Unlock()

	go c.run(sessCtx, gen, req)
}

// Stop aborts the in-flight session. User-initiated aborts are silent:
// no error line renders. Calling Stop when no session is running is a
// no-op.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = StateDone
	done := c.done
	c.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// State reports the current lifecycle phase.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Lines returns a snapshot of the session's display lines in arrival
// order.
func (c *Consumer) Lines() []DisplayLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DisplayLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Done returns a channel closed when the current session reaches done.
// For a consumer that has never started, the channel is already closed.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

// MalformedLines reports how many stream lines failed to parse and were
// dropped. Diagnostic only; dropped lines never render or end a session.
func (c *Consumer) MalformedLines() uint64 {
	return c.malformed.Load()
}

type streamRequest struct {
	RouterID string `json:"router_id"`
	Target   string `json:"target"`
	Size     int    `json:"size"`
	Count    int    `json:"count"`
}

func (c *Consumer) run(ctx context.Context, gen uint64, req ProbeRequest) {
	payload, err := json.Marshal(streamRequest{
		RouterID: req.RouterID,
		Target:   req.Target,
		Size:     req.ProbeSize,
		Count:    req.Count,
	})
	if err != nil {
		c.fail(gen, genericStreamError)
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		c.fail(gen, genericStreamError)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if wasCanceled(ctx, err) {
			c.finish(gen)
			return
		}
		c.fail(gen, err.Error())
		return
	}
	defer resp.Body.Close() //nolint:errcheck // nothing useful to do on close failure

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Error responses carry a small JSON body, not a stream.
		c.fail(gen, errorMessage(resp.Body))
		return
	}

	c.decode(ctx, gen, resp.Body)
}

// decode reads the response incrementally, splitting complete lines off
// the buffer and keeping the trailing fragment for the next chunk. At
// end-of-stream the remaining fragment is flushed as one final line.
func (c *Consumer) decode(ctx context.Context, gen uint64, body io.Reader) {
	chunk := make([]byte, 4096)
	var pending []byte
	for {
		if ctx.Err() != nil {
			c.finish(gen)
			return
		}
		n, err := body.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			for {
				nl := bytes.IndexByte(pending, '\n')
				if nl < 0 {
					break
				}
				c.consumeLine(gen, pending[:nl])
				pending = pending[nl+1:]
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				c.consumeLine(gen, pending)
				c.finish(gen)
			case wasCanceled(ctx, err):
				c.finish(gen)
			default:
				c.fail(gen, err.Error())
			}
			return
		}
	}
}

// consumeLine parses one line and appends its rendering. Parse failures
// are dropped without rendering: chunked transports can corrupt single
// lines and one bad record must not poison the session.
func (c *Consumer) consumeLine(gen uint64, raw []byte) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return
	}
	ev, err := ParseEvent(line)
	if err != nil {
		c.malformed.Add(1)
		c.logger.Debug("dropped malformed probe line", zap.Int("bytes", len(line)))
		return
	}
	c.append(gen, Render(ev))
}

// append adds lines for the session identified by gen. Lines from a
// session that lost a restart race are discarded.
func (c *Consumer) append(gen uint64, lines []DisplayLine) {
	if len(lines) == 0 {
		return
	}
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.lines = append(c.lines, lines...)
	onLine := c.onLine
	c.mu.Unlock()
	if onLine != nil {
		for _, line := range lines {
			onLine(line)
		}
	}
}

// fail renders one error line and ends the session.
func (c *Consumer) fail(gen uint64, message string) {
	c.end(gen, Render(Event{Type: EventError, Message: message}))
}

// finish ends the session without rendering anything.
func (c *Consumer) finish(gen uint64) {
	c.end(gen, nil)
}

// end appends any final lines and moves the session to done. The done
// channel closes exactly once, on the running-to-done transition; Stop
// and a restarting Start perform the same transition themselves, so a
// late end from the decode goroutine is a no-op.
func (c *Consumer) end(gen uint64, lines []DisplayLine) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	var done chan struct{}
	if c.state == StateRunning {
		c.lines = append(c.lines, lines...)
		c.state = StateDone
		done = c.done
	} else {
		lines = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	onLine := c.onLine
	c.mu.Unlock()
	if onLine != nil {
		for _, line := range lines {
			onLine(line)
		}
	}
	if done != nil {
		close(done)
	}
}

// wasCanceled distinguishes a user-requested abort from a transport
// failure; the distinction decides whether an error line renders.
func wasCanceled(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled)
}

// errorMessage extracts a human-readable message from a non-success
// response body, best effort.
func errorMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return genericStreamError
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		return genericStreamError
	}
	return payload.Message
}
