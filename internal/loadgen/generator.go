// Package loadgen produces synthetic syslog datagrams and canonical
// events for load and integration testing.
package loadgen

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/vigilo/siem/internal/siem/event"
)

// Seed makes subsequent generation deterministic. Zero keeps gofakeit's
// own randomized seed.
func Seed(seed int64) {
	if seed != 0 {
		gofakeit.Seed(seed)
	}
}

var severities = []event.Severity{
	event.SeverityLow, event.SeverityMedium, event.SeverityHigh, event.SeverityCritical,
}

var eventTypes = []string{
	event.TypeFirewallBlock, event.TypeFirewallAllow, event.TypeIPSAlert,
	event.TypeVPNConnection, event.TypeWifiClient, event.TypeNetworkAuth,
	event.TypeStateChange, event.TypeAuthFailure,
}

// Event builds one synthetic canonical event with a timestamp inside the
// last 24 hours.
func Event() *event.Event {
	typ := eventTypes[gofakeit.Number(0, len(eventTypes)-1)]
	sev := severities[gofakeit.Number(0, len(severities)-1)]
	at := time.Now().Add(-time.Duration(gofakeit.Number(0, 86400)) * time.Second)

	draft := &event.Draft{
		Type:       typ,
		Severity:   sev,
		Message:    fmt.Sprintf("%s event from %s", typ, RandomHostname()),
		DeviceType: deviceTypeFor(typ),
		SourceIP:   gofakeit.IPv4Address(),
		Hostname:   RandomHostname(),
		Data: map[string]any{
			"raw_message": fmt.Sprintf("synthetic %s sample", typ),
		},
	}
	if typ == event.TypeStateChange {
		draft.EntityID = RandomEntity()
		draft.DeviceType = ""
		draft.SourceIP = ""
		draft.Hostname = ""
	}
	return event.Normalize(draft, at)
}

// Events builds n synthetic events.
func Events(n int) []*event.Event {
	out := make([]*event.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Event())
	}
	return out
}

func deviceTypeFor(typ string) string {
	switch typ {
	case event.TypeWifiClient, event.TypeNetworkAuth:
		return "unifi"
	case event.TypeStateChange, event.TypeAuthFailure:
		return ""
	default:
		return "sophos_xgs"
	}
}

// Datagram builds one raw syslog datagram in the format of a random
// vendor, including occasional unparseable noise.
func Datagram() string {
	now := time.Now().Format("Jan _2 15:04:05")
	pri := gofakeit.Number(0, 191)

	switch gofakeit.Number(0, 7) {
	case 0:
		return fmt.Sprintf(`<%d>%s %s device="SFW" log_subtype="Denied" src_ip=%s src_port=%d dst_ip=%s dst_port=%d protocol="%s"`,
			pri, now, RandomHostname(), gofakeit.IPv4Address(), gofakeit.Number(1024, 65535),
			gofakeit.IPv4Address(), gofakeit.Number(1, 1023), RandomProtocol())
	case 1:
		return fmt.Sprintf(`<%d>%s %s device="SFW" log_subtype="Allowed" src_ip=%s src_port=%d dst_ip=%s dst_port=%d protocol="%s"`,
			pri, now, RandomHostname(), gofakeit.IPv4Address(), gofakeit.Number(1024, 65535),
			gofakeit.IPv4Address(), gofakeit.Number(1, 1023), RandomProtocol())
	case 2:
		return fmt.Sprintf(`<%d>%s %s device="SFW" log_subtype="IPS" src_ip=%s threat_name="%s"`,
			pri, now, RandomHostname(), gofakeit.IPv4Address(), RandomThreat())
	case 3:
		return fmt.Sprintf(`<%d>%s %s device="SFW" log_subtype="Authentication" user_name="%s" status="%s"`,
			pri, now, RandomHostname(), RandomUser(), authStatus())
	case 4:
		return fmt.Sprintf(`<%d>%s %s device="SFW" log_subtype="SSL-VPN" user="%s" status="Connected" remote_ip=%s`,
			pri, now, RandomHostname(), RandomUser(), gofakeit.IPv4Address())
	case 5:
		return fmt.Sprintf(`<%d>%s unifi-ap hostapd: sta_connect mac=%s ap=%s`,
			pri, now, RandomMAC(), RandomHostname())
	case 6:
		return fmt.Sprintf(`<%d>%s unifi-usg sshd: authentication %s for user=%s`,
			pri, now, authResult(), RandomUser())
	default:
		return gofakeit.Sentence(gofakeit.Number(3, 8))
	}
}

func authStatus() string {
	if gofakeit.Bool() {
		return "Successful"
	}
	return "Failed"
}

func authResult() string {
	if gofakeit.Bool() {
		return "success"
	}
	return "failed"
}
