package model

import "time"

// Status distinguishes strong, weak and absent evidence outcomes
type Status string

const (
	StatusSuccess   Status = "success"
	StatusPartial   Status = "partial"
	StatusNoResults Status = "no_results"
)

// Response is the report returned for every structurally valid request
type Response struct {
	RequestID   string         `json:"requestId"`
	Status      Status         `json:"status"`
	Claim       string         `json:"claim"`
	Report      string         `json:"report"`
	Verdict     Verdict        `json:"verdict"`
	Sources     []Source       `json:"sources"`
	SocialMedia []SocialSource `json:"socialMedia,omitempty"`
	SourceInfo  SourceInfo     `json:"sourceInfo"`
	GeneratedAt time.Time      `json:"generatedAt"`

	// Provider names the generator that produced the report, empty for templated reports
	Provider string `json:"provider,omitempty"`
}

// Source is one cited evidence document; ID matches the [n] marker in the report
type Source struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Snippet  string  `json:"snippet"`
	Language string  `json:"language"`
	Tier     string  `json:"tier,omitempty"`
	Score    float64 `json:"score"`
}

// SocialSource discloses a social-media hit that was excluded from verification
type SocialSource struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SourceInfo summarises where the evidence came from
type SourceInfo struct {
	HasDomesticSources bool           `json:"hasDomesticSources"`
	HasForeignSources  bool           `json:"hasForeignSources"`
	TotalSources       int            `json:"totalSources"`
	Geography          GeographyLabel `json:"geography"`
	TierBreakdown      map[string]int `json:"tierBreakdown"`
}

// ErrorKind classifies the error body returned instead of a report
type ErrorKind string

const (
	ErrorInvalidInput ErrorKind = "invalid_input"
	ErrorUnauthorized ErrorKind = "unauthorized"
	ErrorRateLimited  ErrorKind = "rate_limited"
	ErrorInternal     ErrorKind = "internal"
)

// ErrorResponse is the documented error body for input, auth and quota errors
type ErrorResponse struct {
	Error     ErrorKind  `json:"error"`
	Message   string     `json:"message"`
	Remaining *int       `json:"remaining,omitempty"`
	ResetAt   *time.Time `json:"resetAt,omitempty"`
}
