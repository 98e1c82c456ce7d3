package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vigilo/siem/internal/siem/event"
	"github.com/vigilo/siem/internal/siem/syslog"
)

// Sophos XGS firewalls emit key="value" pairs (log_subtype, src_ip, …).
// Detection keys off log_subtype; field extraction is per-key so optional
// fields like dst_port are picked up wherever they sit on the line.
var (
	sophosFirewallRe = regexp.MustCompile(`log_subtype="(Denied|Allowed)".*?src_ip=[\d.]+.*?dst_ip=[\d.]+`)
	sophosIPSRe      = regexp.MustCompile(`log_subtype="(IPS|ATP|DPI)".*?src_ip=[\d.]+`)
	sophosAuthRe     = regexp.MustCompile(`log_subtype="(Authentication|Admin)"`)
	sophosVPNRe      = regexp.MustCompile(`log_subtype="(SSL-VPN|IPsec)"`)

	sophosSrcIPRe     = regexp.MustCompile(`src_ip=([\d.]+)`)
	sophosDstIPRe     = regexp.MustCompile(`dst_ip=([\d.]+)`)
	sophosSrcPortRe   = regexp.MustCompile(`src_port=(\d+)`)
	sophosDstPortRe   = regexp.MustCompile(`dst_port=(\d+)`)
	sophosProtocolRe  = regexp.MustCompile(`protocol="(\w+)"`)
	sophosThreatRe    = regexp.MustCompile(`threat_name="([^"]+)"`)
	sophosSignatureRe = regexp.MustCompile(`signature_msg="([^"]+)"`)
	sophosUserNameRe  = regexp.MustCompile(`user_name="([^"]+)"`)
	sophosVPNUserRe   = regexp.MustCompile(`user="([^"]+)"`)
	sophosStatusRe    = regexp.MustCompile(`status="([^"]+)"`)
	sophosRemoteIPRe  = regexp.MustCompile(`remote_ip=([\d.]+)`)
)

type SophosXGSParser struct{}

func NewSophosXGSParser() *SophosXGSParser { return &SophosXGSParser{} }

func (p *SophosXGSParser) Name() string { return "sophos_xgs" }

func (p *SophosXGSParser) TryParse(env *syslog.Envelope) (*event.Draft, bool) {
	msg := env.Message
	switch {
	case sophosFirewallRe.MatchString(msg):
		return p.parseFirewall(env), true
	case sophosIPSRe.MatchString(msg):
		return p.parseIPS(env), true
	case sophosAuthRe.MatchString(msg):
		return p.parseAuth(env), true
	case sophosVPNRe.MatchString(msg):
		return p.parseVPN(env), true
	}
	return nil, false
}

func (p *SophosXGSParser) Fallback(env *syslog.Envelope) (*event.Draft, bool) {
	if !strings.Contains(strings.ToLower(env.Hostname), "sophos") &&
		!strings.Contains(strings.ToLower(env.Message), "xgs") {
		return nil, false
	}
	return &event.Draft{
		Type:       "sophos_generic",
		Severity:   event.SeverityLow,
		Message:    "Sophos: " + truncate(env.Message, fallbackTruncate),
		DeviceType: "sophos_xgs",
		Hostname:   env.Hostname,
		SourceIP:   env.SourceIP,
		Data:       map[string]any{"raw_message": env.Message},
	}, true
}

func (p *SophosXGSParser) parseFirewall(env *syslog.Envelope) *event.Draft {
	msg := env.Message
	action := extract(sophosFirewallRe, msg)
	srcIP := extract(sophosSrcIPRe, msg)
	dstIP := extract(sophosDstIPRe, msg)
	dstPort := extract(sophosDstPortRe, msg)

	typ := event.TypeFirewallAllow
	sev := event.SeverityLow
	if action == "Denied" {
		typ = event.TypeFirewallBlock
		sev = event.SeverityMedium
	}

	text := fmt.Sprintf("Sophos Firewall %s: %s → %s", action, orUnknown(srcIP), orUnknown(dstIP))
	if dstPort != "" {
		text += ":" + dstPort
	}

	data := map[string]any{"action": action, "raw_message": msg}
	addField(data, "src_ip", srcIP)
	addField(data, "dst_ip", dstIP)
	addField(data, "src_port", extract(sophosSrcPortRe, msg))
	addField(data, "dst_port", dstPort)
	addField(data, "protocol", extract(sophosProtocolRe, msg))

	return &event.Draft{
		Type:       typ,
		Severity:   sev,
		Message:    text,
		DeviceType: "sophos_xgs",
		Hostname:   env.Hostname,
		SourceIP:   env.SourceIP,
		Data:       data,
	}
}

func (p *SophosXGSParser) parseIPS(env *syslog.Envelope) *event.Draft {
	msg := env.Message
	threat := extract(sophosThreatRe, msg)
	if threat == "" {
		threat = extract(sophosSignatureRe, msg)
	}
	if threat == "" {
		threat = "Unknown threat"
	}
	srcIP := extract(sophosSrcIPRe, msg)

	data := map[string]any{"subtype": extract(sophosIPSRe, msg), "raw_message": msg}
	addField(data, "src_ip", srcIP)
	addField(data, "threat", extract(sophosThreatRe, msg))
	addField(data, "signature", extract(sophosSignatureRe, msg))

	return &event.Draft{
		Type:       event.TypeIPSAlert,
		Severity:   event.SeverityHigh,
		Message:    fmt.Sprintf("Sophos IPS Alert: %s from %s", threat, orUnknown(srcIP)),
		DeviceType: "sophos_xgs",
		Hostname:   env.Hostname,
		SourceIP:   env.SourceIP,
		Data:       data,
	}
}

func (p *SophosXGSParser) parseAuth(env *syslog.Envelope) *event.Draft {
	msg := env.Message
	user := orUnknown(extract(sophosUserNameRe, msg))
	status := orUnknown(extract(sophosStatusRe, msg))

	sev := event.SeverityLow
	if strings.Contains(strings.ToLower(status), "fail") {
		sev = event.SeverityHigh
	}

	data := map[string]any{"subtype": extract(sophosAuthRe, msg), "raw_message": msg}
	addField(data, "user", extract(sophosUserNameRe, msg))
	addField(data, "status", extract(sophosStatusRe, msg))

	return &event.Draft{
		Type:       event.TypeNetworkAuth,
		Severity:   sev,
		Message:    fmt.Sprintf("Sophos Auth: %s - %s", user, status),
		UserID:     extract(sophosUserNameRe, msg),
		DeviceType: "sophos_xgs",
		Hostname:   env.Hostname,
		SourceIP:   env.SourceIP,
		Data:       data,
	}
}

func (p *SophosXGSParser) parseVPN(env *syslog.Envelope) *event.Draft {
	msg := env.Message
	user := orUnknown(extract(sophosVPNUserRe, msg))
	status := orUnknown(extract(sophosStatusRe, msg))
	remoteIP := orUnknown(extract(sophosRemoteIPRe, msg))

	data := map[string]any{"subtype": extract(sophosVPNRe, msg), "raw_message": msg}
	addField(data, "user", extract(sophosVPNUserRe, msg))
	addField(data, "status", extract(sophosStatusRe, msg))
	addField(data, "remote_ip", extract(sophosRemoteIPRe, msg))

	return &event.Draft{
		Type:       event.TypeVPNConnection,
		Severity:   event.SeverityMedium,
		Message:    fmt.Sprintf("Sophos VPN: %s from %s - %s", user, remoteIP, status),
		UserID:     extract(sophosVPNUserRe, msg),
		DeviceType: "sophos_xgs",
		Hostname:   env.Hostname,
		SourceIP:   env.SourceIP,
		Data:       data,
	}
}
