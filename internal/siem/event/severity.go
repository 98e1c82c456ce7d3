package event

// Severity is the urgency level assigned to an event. The set is closed:
// classifiers and parsers must map anything else into one of these four.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Valid reports whether s is one of the four known levels.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Rank returns the ordering of s by increasing urgency (low=0 … critical=3).
// Unknown severities rank as low.
func (s Severity) Rank() int {
	return severityRank[s]
}

// ClampSeverity maps an arbitrary severity string into the closed set.
// Anything unrecognized becomes low.
func ClampSeverity(s string) Severity {
	sev := Severity(s)
	if sev.Valid() {
		return sev
	}
	return SeverityLow
}
