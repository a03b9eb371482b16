package diag

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates probe event records on the wire.
type EventType string

// Probe event types emitted by router agents.
const (
	EventStart   EventType = "start"
	EventReply   EventType = "reply"
	EventTimeout EventType = "timeout"
	EventError   EventType = "error"
	EventStats   EventType = "stats"
)

// Event is one probe event decoded from the agent stream. Agents emit a
// flat JSON object per line; which fields are meaningful depends on Type.
type Event struct {
	Type EventType `json:"type"`

	// start
	Target      string `json:"target,omitempty"`
	RouterLabel string `json:"router_label,omitempty"`
	Size        int    `json:"size,omitempty"`
	Count       int    `json:"count,omitempty"`

	// reply / timeout
	Seq   int     `json:"seq,omitempty"`
	Host  string  `json:"host,omitempty"`
	RTTMs float64 `json:"rtt_ms,omitempty"`
	TTL   int     `json:"ttl,omitempty"`

	// error
	Message string `json:"message,omitempty"`

	// stats; min/max/avg are meaningful only when Received > 0
	Sent     int     `json:"sent,omitempty"`
	Received int     `json:"received,omitempty"`
	Lost     int     `json:"lost,omitempty"`
	LossPct  float64 `json:"loss_pct,omitempty"`
	MinMs    float64 `json:"min_ms,omitempty"`
	MaxMs    float64 `json:"max_ms,omitempty"`
	AvgMs    float64 `json:"avg_ms,omitempty"`
}

// ParseEvent decodes one NDJSON line into an Event.
func ParseEvent(line []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, fmt.Errorf("parse probe event: %w", err)
	}
	return ev, nil
}

// Color tags a display line for the console UI.
type Color string

// Display line colors.
const (
	ColorWhite  Color = "white"
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorCyan   Color = "cyan"
)

// DisplayLine is one rendered line of probe output.
type DisplayLine struct {
	Text  string `json:"text"`
	Color Color  `json:"color"`
}

// ProbeRequest describes one probe invocation. The consumer checks only
// protocol framing; business validation (known router, size in the
// supported set, count bounds) belongs to the caller.
type ProbeRequest struct {
	Target    string
	ProbeSize int
	Count     int
	RouterID  string
}

// ProbeSizes is the fixed set of packet sizes agents accept, in bytes.
var ProbeSizes = []int{64, 128, 256, 512, 1024, 1400, 4096, 16384, 64000}

// ValidProbeSize reports whether size is one of ProbeSizes.
func ValidProbeSize(size int) bool {
	for _, s := range ProbeSizes {
		if s == size {
			return true
		}
	}
	return false
}

// MaxProbeCount bounds ProbeRequest.Count.
const MaxProbeCount = 100
