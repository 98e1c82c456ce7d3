package loadgen

import (
	"github.com/brianvoe/gofakeit/v7"
)

// Shared lists for synthetic syslog and event generation.

// RandomHostname returns a random device hostname from Hostnames.
func RandomHostname() string {
	return Hostnames[gofakeit.Number(0, len(Hostnames)-1)]
}

var Hostnames = []string{
	"sophos-fw01", "sophos-fw02", "xgs2100-edge", "xgs136-branch",
	"unifi-ap-lobby", "unifi-ap-office", "unifi-usg-01", "udm-pro",
}

// RandomThreat returns a random IPS threat name from ThreatNames.
func RandomThreat() string {
	return ThreatNames[gofakeit.Number(0, len(ThreatNames)-1)]
}

var ThreatNames = []string{
	"ET SCAN Nmap Scripting Engine", "ET DROP Dshield Block Listed Source",
	"ET POLICY SSH Brute Force", "ET MALWARE Win32/Emotet CnC Checkin",
	"ET EXPLOIT Apache Log4j RCE Attempt", "ET TROJAN Possible Metasploit Payload",
	"SERVER-WEBAPP SQL injection attempt", "OS-WINDOWS SMB remote code execution",
}

// RandomUser returns a random account name from UserNames.
func RandomUser() string {
	return UserNames[gofakeit.Number(0, len(UserNames)-1)]
}

var UserNames = []string{
	"admin", "jsmith", "akumar", "mgarcia", "operator",
	"svc-backup", "svc-monitor", "guest", "helpdesk",
}

// RandomProtocol returns a random transport protocol from Protocols.
func RandomProtocol() string {
	return Protocols[gofakeit.Number(0, len(Protocols)-1)]
}

var Protocols = []string{"TCP", "UDP", "ICMP"}

// RandomEntity returns a random platform entity id from EntityIDs.
func RandomEntity() string {
	return EntityIDs[gofakeit.Number(0, len(EntityIDs)-1)]
}

var EntityIDs = []string{
	"alarm_control_panel.home", "lock.front_door", "lock.garage",
	"binary_sensor.motion_hallway", "binary_sensor.door_back",
	"binary_sensor.window_kitchen", "camera.driveway",
	"person.owner", "device_tracker.phone_owner",
}

// RandomMAC returns a random lowercase colon-separated MAC address.
func RandomMAC() string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 0, 17)
	for i := 0; i < 6; i++ {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, hexdigits[gofakeit.Number(0, 15)], hexdigits[gofakeit.Number(0, 15)])
	}
	return string(buf)
}
