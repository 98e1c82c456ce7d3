// Package parsers turns syslog envelopes from external network appliances
// into normalized event drafts. Each vendor parser owns an ordered list of
// named patterns plus a coarse fallback hint; the dispatcher tries every
// vendor's patterns in registration order before any fallback, so a
// recognizable event is never swallowed by another vendor's generic hint.
package parsers

import (
	"go.uber.org/zap"

	"github.com/vigilo/siem/internal/siem/event"
	"github.com/vigilo/siem/internal/siem/logger"
	"github.com/vigilo/siem/internal/siem/syslog"
)

// VendorParser recognizes one appliance family's log dialect.
type VendorParser interface {
	Name() string
	// TryParse tests the vendor's named patterns in declared order and
	// returns a draft for the first match.
	TryParse(env *syslog.Envelope) (*event.Draft, bool)
	// Fallback is a cheap hostname/keyword hint producing a low-severity
	// generic event when no named pattern matched.
	Fallback(env *syslog.Envelope) (*event.Draft, bool)
}

// Dispatcher holds the fixed, ordered vendor registry. Adding a vendor
// means appending an implementation, not modifying dispatch logic.
type Dispatcher struct {
	vendors []VendorParser
	log     *zap.SugaredLogger
}

// NewDispatcher builds the default registry: Sophos XGS first, then UniFi.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		vendors: []VendorParser{NewSophosXGSParser(), NewUniFiParser()},
		log:     logger.L(),
	}
}

// Dispatch returns a draft for the first matching vendor pattern, or a
// vendor-generic fallback, or nil when the source is wholly unrecognized.
// A nil result is an intentional drop, not an error.
func (d *Dispatcher) Dispatch(env *syslog.Envelope) *event.Draft {
	for _, v := range d.vendors {
		if draft, ok := v.TryParse(env); ok {
			return draft
		}
	}
	for _, v := range d.vendors {
		if draft, ok := v.Fallback(env); ok {
			return draft
		}
	}
	d.log.Debugw("unclassifiable syslog message",
		"source_ip", env.SourceIP,
		"message", truncate(env.Message, 100))
	return nil
}
