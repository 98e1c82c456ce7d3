package event

import (
	"time"

	"github.com/google/uuid"
)

// Event types produced by the internal platform path.
const (
	TypeAuthFailure       = "auth_failure"
	TypeStateChange       = "state_change"
	TypeServiceCall       = "service_call"
	TypeAutomationTrigger = "automation_trigger"
	TypeScriptRun         = "script_run"
)

// Event types produced by external device parsers. The set is open: new
// vendor parsers may introduce new types without touching this list.
const (
	TypeFirewallBlock = "firewall_block"
	TypeFirewallAllow = "firewall_allow"
	TypeIPSAlert      = "ips_alert"
	TypeVPNConnection = "vpn_connection"
	TypeWifiClient    = "wifi_client"
	TypeNetworkAuth   = "network_auth"
)

// Event is the canonical unit persisted by the storage engine. It is
// immutable once constructed; the storage engine owns persisted records.
type Event struct {
	// ID is assigned at normalization time.
	ID string `json:"event_id"`
	// RowID is the relational backend's serial; zero elsewhere.
	RowID int64 `json:"-"`
	// Timestamp is ingestion time, not necessarily source time.
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"event_type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	EntityID  string    `json:"entity_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	// Data is an open mapping of auxiliary fields, opaque to storage.
	Data map[string]any `json:"data,omitempty"`

	// Provenance, present for externally sourced events.
	DeviceType string `json:"device_type,omitempty"`
	SourceIP   string `json:"source_ip,omitempty"`
	Hostname   string `json:"hostname,omitempty"`
}

// Draft is the pre-normalization shape produced by vendor parsers and the
// internal signal constructors. A Draft carries no identity or timestamp;
// Normalize assigns both.
type Draft struct {
	Type       string
	Severity   Severity
	Message    string
	EntityID   string
	UserID     string
	DeviceType string
	SourceIP   string
	Hostname   string
	Data       map[string]any
}

// Normalize builds the canonical Event from a draft. The severity is
// clamped into the closed four-level set and the data map is never nil.
func Normalize(d *Draft, receivedAt time.Time) *Event {
	data := d.Data
	if data == nil {
		data = map[string]any{}
	}
	return &Event{
		ID:         uuid.NewString(),
		Timestamp:  receivedAt.UTC(),
		Type:       d.Type,
		Severity:   ClampSeverity(string(d.Severity)),
		Message:    d.Message,
		EntityID:   d.EntityID,
		UserID:     d.UserID,
		Data:       data,
		DeviceType: d.DeviceType,
		SourceIP:   d.SourceIP,
		Hostname:   d.Hostname,
	}
}
