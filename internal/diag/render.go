package diag

import (
	"fmt"
	"strconv"
)

// Render maps one probe event to zero or more display lines. The mapping
// is pure and deterministic; the consumer and its tests both rely on
// byte-identical output for the same event. Unknown event types render
// nothing.
func Render(ev Event) []DisplayLine {
	switch ev.Type {
	case EventStart:
		return []DisplayLine{
			{
				Text: fmt.Sprintf("Pinging %s via %s (size=%d, count=%d):",
					ev.Target, ev.RouterLabel, ev.Size, ev.Count),
				Color: ColorWhite,
			},
			{Text: "", Color: ColorWhite},
		}
	case EventReply:
		return []DisplayLine{
			{
				Text: fmt.Sprintf("  seq=%d  Reply from %s: bytes=%d time=%.2fms TTL=%d",
					ev.Seq, ev.Host, ev.Size, ev.RTTMs, ev.TTL),
				Color: ColorGreen,
			},
		}
	case EventTimeout:
		return []DisplayLine{
			{Text: fmt.Sprintf("  seq=%d  Request timed out.", ev.Seq), Color: ColorRed},
		}
	case EventError:
		return []DisplayLine{
			{Text: "Error: " + ev.Message, Color: ColorRed},
		}
	case EventStats:
		packetsColor := ColorWhite
		if ev.Lost > 0 {
			packetsColor = ColorYellow
		}
		lines := []DisplayLine{
			{Text: "", Color: ColorWhite},
			{Text: fmt.Sprintf("Ping statistics for %s:", ev.Target), Color: ColorCyan},
			{
				Text: fmt.Sprintf("    Packets: Sent = %d, Received = %d, Lost = %d (%s%% loss)",
					ev.Sent, ev.Received, ev.Lost, formatLossPct(ev.LossPct)),
				Color: packetsColor,
			},
		}
		if ev.Received > 0 {
			lines = append(lines,
				DisplayLine{Text: "Approximate round trip times in milli-seconds:", Color: ColorCyan},
				DisplayLine{
					Text: fmt.Sprintf("    Minimum = %.2fms, Maximum = %.2fms, Average = %.2fms",
						ev.MinMs, ev.MaxMs, ev.AvgMs),
					Color: ColorWhite,
				},
			)
		}
		return lines
	}
	return nil
}

// formatLossPct renders loss with the fewest digits that round-trip, so
// whole percentages print without a decimal point (50, not 50.00).
func formatLossPct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
