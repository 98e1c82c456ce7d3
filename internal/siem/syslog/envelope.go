package syslog

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

// Envelope is the structured decomposition of a raw syslog datagram before
// vendor-specific parsing. Decomposition is best-effort: a datagram that
// defies the RFC3164 heuristics still yields an envelope carrying the whole
// text as Message.
type Envelope struct {
	Raw        string
	SourceIP   string
	ReceivedAt time.Time
	// SourceTime is the sender's calendar timestamp when one could be
	// recognized. Informational only; ReceivedAt is canonical.
	SourceTime time.Time
	// Facility and Priority come from the <N> prefix; -1 when absent.
	Facility int
	Priority int
	Hostname string
	Tag      string
	Message  string
}

// ParseEnvelope decomposes one datagram. It never fails: any heuristic
// breakdown falls back to preserving the entire original text as Message
// with Hostname unset.
func ParseEnvelope(raw, sourceIP string, receivedAt time.Time) *Envelope {
	env := &Envelope{
		Raw:        raw,
		SourceIP:   sourceIP,
		ReceivedAt: receivedAt,
		Facility:   -1,
		Priority:   -1,
		Message:    raw,
	}

	msg := raw
	if strings.HasPrefix(msg, "<") {
		end := strings.IndexByte(msg, '>')
		if end > 0 {
			pri, err := strconv.Atoi(msg[1:end])
			if err != nil {
				return env
			}
			env.Facility = pri >> 3
			env.Priority = pri & 0x7
			msg = strings.TrimSpace(msg[end+1:])
		}
	}

	// RFC3164-style decomposition: at most 4 whitespace-delimited segments.
	parts := splitFieldsN(msg, 4)
	if len(parts) < 3 {
		return env
	}

	if len(parts) >= 3 {
		env.SourceTime = parseSourceTime(parts)
	}

	if looksLikeHostname(parts[1]) {
		env.Hostname = parts[1]
		tagMsg := strings.Join(parts[2:], " ")
		if tag, rest, ok := strings.Cut(tagMsg, ":"); ok {
			env.Tag = strings.TrimSpace(tag)
			env.Message = strings.TrimSpace(rest)
		} else {
			env.Message = tagMsg
		}
	} else {
		env.Hostname = sourceIP
		env.Message = strings.Join(parts[1:], " ")
	}
	return env
}

// parseSourceTime tries to recognize a calendar timestamp in the leading
// segments ("Jun  1 12:00:00" or a single ISO token).
func parseSourceTime(parts []string) time.Time {
	if len(parts) >= 3 {
		if t, err := dateparse.ParseAny(strings.Join(parts[:3], " ")); err == nil {
			return t
		}
	}
	if t, err := dateparse.ParseAny(parts[0]); err == nil {
		return t
	}
	return time.Time{}
}

// looksLikeHostname reports whether text is either four dot-separated
// octets in [0,255] or composed only of alphanumerics, dots, hyphens and
// underscores.
func looksLikeHostname(text string) bool {
	if text == "" {
		return false
	}
	octets := strings.Split(text, ".")
	if len(octets) == 4 {
		ip := true
		for _, o := range octets {
			n, err := strconv.Atoi(o)
			if err != nil || o == "" || n < 0 || n > 255 {
				ip = false
				break
			}
		}
		if ip {
			return true
		}
	}
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// splitFieldsN splits s on whitespace runs into at most n segments; the
// final segment keeps its internal whitespace.
func splitFieldsN(s string, n int) []string {
	var parts []string
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	for len(parts) < n-1 {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			break
		}
		parts = append(parts, s[:i])
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
		if s == "" {
			return parts
		}
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
