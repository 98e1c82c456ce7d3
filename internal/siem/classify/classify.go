// Package classify turns internally sourced platform signals (state
// transitions, service invocations, notifications) into event drafts.
// Externally parsed events never pass through here; they carry their own
// severity from the vendor parser.
package classify

import (
	"fmt"
	"strings"

	"github.com/vigilo/siem/internal/siem/event"
)

// securityDomains is the fixed set of entity domains that are classified at
// all. Entities outside this set are not turned into events.
var securityDomains = map[string]bool{
	"alarm_control_panel": true,
	"lock":                true,
	"binary_sensor":       true,
	"camera":              true,
	"person":              true,
	"device_tracker":      true,
}

// securityServices is the fixed set of (domain, service) invocations that
// are recorded as service_call events.
var securityServices = map[[2]string]bool{
	{"alarm_control_panel", "alarm_arm_away"}: true,
	{"alarm_control_panel", "alarm_arm_home"}: true,
	{"alarm_control_panel", "alarm_disarm"}:   true,
	{"lock", "lock"}:                          true,
	{"lock", "unlock"}:                        true,
	{"homeassistant", "restart"}:              true,
	{"homeassistant", "stop"}:                 true,
}

// EntityDomain returns the domain portion of a dotted entity identifier,
// or "" if the identifier has no domain.
func EntityDomain(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i >= 0 {
		return entityID[:i]
	}
	return ""
}

// IsSecurityEntity reports whether the entity's domain is in the
// security-relevant set.
func IsSecurityEntity(entityID string) bool {
	return securityDomains[EntityDomain(entityID)]
}

// IsSecurityService reports whether the (domain, service) pair is tracked.
func IsSecurityService(domain, service string) bool {
	return securityServices[[2]string{domain, service}]
}

// Severity applies the classification rule table to a state transition.
// Rules are checked in order; the first match wins.
func Severity(entityID, oldState, newState string) event.Severity {
	switch EntityDomain(entityID) {
	case "alarm_control_panel":
		if newState == "triggered" {
			return event.SeverityCritical
		}
		if newState == "armed_away" || newState == "armed_home" {
			return event.SeverityMedium
		}
	case "lock":
		if oldState == "locked" && newState == "unlocked" {
			return event.SeverityHigh
		}
	case "binary_sensor":
		if strings.Contains(entityID, "motion") ||
			strings.Contains(entityID, "door") ||
			strings.Contains(entityID, "window") {
			if newState == "on" {
				return event.SeverityMedium
			}
		}
	}
	return event.SeverityLow
}

// StateChange builds a draft for a state transition, or reports false when
// the entity is not security-relevant.
func StateChange(entityID, oldState, newState string) (*event.Draft, bool) {
	if !IsSecurityEntity(entityID) {
		return nil, false
	}
	return &event.Draft{
		Type:     event.TypeStateChange,
		Severity: Severity(entityID, oldState, newState),
		Message:  fmt.Sprintf("State changed: %s from %s to %s", entityID, oldState, newState),
		EntityID: entityID,
		Data: map[string]any{
			"old_state": oldState,
			"new_state": newState,
		},
	}, true
}

// ServiceCall builds a draft for a service invocation, or reports false
// when the (domain, service) pair is not security-relevant.
func ServiceCall(domain, service string, serviceData map[string]any) (*event.Draft, bool) {
	if !IsSecurityService(domain, service) {
		return nil, false
	}
	return &event.Draft{
		Type:     event.TypeServiceCall,
		Severity: event.SeverityMedium,
		Message:  fmt.Sprintf("Service called: %s.%s", domain, service),
		Data: map[string]any{
			"domain":       domain,
			"service":      service,
			"service_data": serviceData,
		},
	}, true
}

// AutomationTrigger builds a low-severity draft for an automation run.
func AutomationTrigger(name, entityID string, data map[string]any) *event.Draft {
	return &event.Draft{
		Type:     event.TypeAutomationTrigger,
		Severity: event.SeverityLow,
		Message:  fmt.Sprintf("Automation triggered: %s", name),
		EntityID: entityID,
		Data:     data,
	}
}

// ScriptRun builds a low-severity draft for a script start.
func ScriptRun(name, entityID string, data map[string]any) *event.Draft {
	return &event.Draft{
		Type:     event.TypeScriptRun,
		Severity: event.SeverityLow,
		Message:  fmt.Sprintf("Script started: %s", name),
		EntityID: entityID,
		Data:     data,
	}
}

// Notification inspects free-form notification text for authentication
// failures, or reports false when the text is not one.
func Notification(message string, data map[string]any) (*event.Draft, bool) {
	lower := strings.ToLower(message)
	if !strings.Contains(lower, "login") {
		return nil, false
	}
	if !strings.Contains(lower, "fail") && !strings.Contains(lower, "invalid") {
		return nil, false
	}
	return &event.Draft{
		Type:     event.TypeAuthFailure,
		Severity: event.SeverityHigh,
		Message:  fmt.Sprintf("Authentication failure detected: %s", message),
		Data:     data,
	}, true
}
