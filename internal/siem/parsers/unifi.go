package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vigilo/siem/internal/siem/event"
	"github.com/vigilo/siem/internal/siem/syslog"
)

// UniFi controllers log free-form text; detection is keyword-driven and the
// connect/disconnect status is inferred from keyword presence, not a
// structured field. That heuristic is kept as-is for compatibility.
var (
	unifiWifiRe  = regexp.MustCompile(`(?i)(?:sta_(?:connect|disconnect)|client_(?:connected|disconnected)).*?(?:mac|client)[=:]?\s*([\da-f:]{17})`)
	unifiAuthRe  = regexp.MustCompile(`(?i)(?:auth|authentication).*?(?:failed|success|deny|allow)`)
	unifiIPSRe   = regexp.MustCompile(`(?i)(?:IDS|IPS)`)
	unifiGuestRe = regexp.MustCompile(`(?i)guest.*?(?:authorize|portal)`)

	unifiAPRe        = regexp.MustCompile(`(?i)(?:ap|device)[=:]\s*([\w-]+)`)
	unifiUserRe      = regexp.MustCompile(`(?i)user[=:]?\s*([\w@.-]+)`)
	unifiSignatureRe = regexp.MustCompile(`(?i)signature[=:]\s*([^,\]]+)`)
	unifiSrcRe       = regexp.MustCompile(`(?i)src[=:]\s*([\d.]+)`)
	unifiMACRe       = regexp.MustCompile(`(?i)mac[=:]?\s*([\da-f:]{17})`)
)

type UniFiParser struct{}

func NewUniFiParser() *UniFiParser { return &UniFiParser{} }

func (p *UniFiParser) Name() string { return "unifi" }

func (p *UniFiParser) TryParse(env *syslog.Envelope) (*event.Draft, bool) {
	msg := env.Message
	switch {
	case unifiWifiRe.MatchString(msg):
		return p.parseWifiClient(env), true
	case unifiAuthRe.MatchString(msg):
		return p.parseAuth(env), true
	case unifiIPSRe.MatchString(msg):
		return p.parseIPS(env), true
	case unifiGuestRe.MatchString(msg):
		return p.parseGuest(env), true
	}
	return nil, false
}

func (p *UniFiParser) Fallback(env *syslog.Envelope) (*event.Draft, bool) {
	if !strings.Contains(strings.ToLower(env.Hostname), "unifi") &&
		!strings.Contains(strings.ToLower(env.Message), "ubnt") {
		return nil, false
	}
	return &event.Draft{
		Type:       "unifi_generic",
		Severity:   event.SeverityLow,
		Message:    "UniFi: " + truncate(env.Message, fallbackTruncate),
		DeviceType: "unifi",
		Hostname:   env.Hostname,
		SourceIP:   env.SourceIP,
		Data:       map[string]any{"raw_message": env.Message},
	}, true
}

func (p *UniFiParser) parseWifiClient(env *syslog.Envelope) *event.Draft {
	msg := env.Message
	mac := orUnknown(extract(unifiWifiRe, msg))
	ap := extract(unifiAPRe, msg)
	if ap == "" {
		ap = env.Hostname
	}

	lower := strings.ToLower(msg)
	status := "disconnected"
	if strings.Contains(lower, "connect") || strings.Contains(lower, "join") {
		status = "connected"
	}

	data := map[string]any{"status": status, "raw_message": msg}
	addField(data, "mac", extract(unifiWifiRe, msg))
	addField(data, "ap", ap)

	return &event.Draft{
		Type:       event.TypeWifiClient,
		Severity:   event.SeverityLow,
		Message:    fmt.Sprintf("UniFi WiFi: Client %s %s to %s", mac, status, ap),
		EntityID:   "device_" + strings.ReplaceAll(mac, ":", "_"),
		DeviceType: "unifi",
		Hostname:   env.Hostname,
		SourceIP:   env.SourceIP,
		Data:       data,
	}
}

func (p *UniFiParser) parseAuth(env *syslog.Envelope) *event.Draft {
	msg := env.Message
	user := orUnknown(extract(unifiUserRe, msg))

	lower := strings.ToLower(msg)
	failed := strings.Contains(lower, "fail") ||
		strings.Contains(lower, "deny") ||
		strings.Contains(lower, "reject")
	sev := event.SeverityLow
	status := "success"
	if failed {
		sev = event.SeverityHigh
		status = "failed"
	}

	data := map[string]any{"status": status, "raw_message": msg}
	addField(data, "user", extract(unifiUserRe, msg))

	return &event.Draft{
		Type:       event.TypeNetworkAuth,
		Severity:   sev,
		Message:    fmt.Sprintf("UniFi Auth: %s - %s", user, status),
		UserID:     extract(unifiUserRe, msg),
		DeviceType: "unifi",
		Hostname:   env.Hostname,
		SourceIP:   env.SourceIP,
		Data:       data,
	}
}

func (p *UniFiParser) parseIPS(env *syslog.Envelope) *event.Draft {
	msg := env.Message
	signature := strings.TrimSpace(extract(unifiSignatureRe, msg))
	srcIP := extract(unifiSrcRe, msg)

	data := map[string]any{"raw_message": msg}
	addField(data, "signature", signature)
	addField(data, "src_ip", srcIP)

	display := signature
	if display == "" {
		display = "Unknown threat"
	}

	return &event.Draft{
		Type:       event.TypeIPSAlert,
		Severity:   event.SeverityHigh,
		Message:    fmt.Sprintf("UniFi IPS Alert: %s from %s", display, orUnknown(srcIP)),
		DeviceType: "unifi",
		Hostname:   env.Hostname,
		SourceIP:   env.SourceIP,
		Data:       data,
	}
}

func (p *UniFiParser) parseGuest(env *syslog.Envelope) *event.Draft {
	msg := env.Message
	mac := orUnknown(extract(unifiMACRe, msg))

	data := map[string]any{"raw_message": msg}
	addField(data, "mac", extract(unifiMACRe, msg))

	return &event.Draft{
		Type:       event.TypeWifiClient,
		Severity:   event.SeverityLow,
		Message:    fmt.Sprintf("UniFi Guest: %s authorized on guest portal", mac),
		DeviceType: "unifi",
		Hostname:   env.Hostname,
		SourceIP:   env.SourceIP,
		Data:       data,
	}
}
