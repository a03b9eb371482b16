// Package clock defines the time source contract injected into services
// so tests can control timestamps.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}
