package model

import "strings"

// Claim is the user-supplied statement being checked. It is never mutated
// once a request starts.
type Claim string

// Normalize trims surrounding whitespace
func (c Claim) Normalize() Claim {
	return Claim(strings.TrimSpace(string(c)))
}

// IsEmpty reports whether the claim carries no text after trimming
func (c Claim) IsEmpty() bool {
	return strings.TrimSpace(string(c)) == ""
}

func (c Claim) String() string {
	return string(c)
}

// Verdict is the discrete label derived from a generated report
type Verdict string

const (
	VerdictTrue             Verdict = "true"
	VerdictFalse            Verdict = "false"
	VerdictUnverified       Verdict = "unverified"
	VerdictContextDependent Verdict = "context_dependent"
)

// Geography is the scope a claim is about
type Geography string

const (
	GeographyDomestic      Geography = "domestic"
	GeographyInternational Geography = "international"
)

// ParseGeography maps free-form classifier output onto a Geography.
// Unknown values report ok=false.
func ParseGeography(s string) (Geography, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "domestic", "local", "national":
		return GeographyDomestic, true
	case "international", "foreign", "global":
		return GeographyInternational, true
	default:
		return "", false
	}
}

// GeographyLabel is produced once per request by the geography classifier
type GeographyLabel struct {
	Type       Geography `json:"type"`
	Confidence float64   `json:"confidence"` // 0..1
	Reasoning  string    `json:"reasoning"`
}

// FallbackGeography is substituted whenever the classifier cannot answer
func FallbackGeography() GeographyLabel {
	return GeographyLabel{
		Type:       GeographyDomestic,
		Confidence: 0.5,
		Reasoning:  "fallback",
	}
}
