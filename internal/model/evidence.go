package model

import "time"

// TierCategory tags what kind of publisher a tier groups
type TierCategory string

const (
	CategoryDomesticNews           TierCategory = "domestic-news"
	CategoryDomesticFactCheck      TierCategory = "domestic-factcheck"
	CategoryInternationalMedia     TierCategory = "international-media"
	CategoryInternationalFactCheck TierCategory = "international-factcheck"
	CategoryLocal                  TierCategory = "local"
	CategoryGeneral                TierCategory = "general"
)

// IsDomestic reports whether sources in this category are domestic-language
func (c TierCategory) IsDomestic() bool {
	return c == CategoryDomesticNews || c == CategoryDomesticFactCheck || c == CategoryLocal
}

// IsForeign reports whether sources in this category are foreign-language
func (c TierCategory) IsForeign() bool {
	return c == CategoryInternationalMedia || c == CategoryInternationalFactCheck
}

// GeneralRank is the sentinel rank for hits from unrestricted search passes.
// It sorts after every configured tier.
const GeneralRank = 99

// SourceTier is a ranked group of trusted domains. Tiers are static configuration.
type SourceTier struct {
	Rank     int          `json:"rank" yaml:"rank" mapstructure:"rank"`
	Name     string       `json:"name" yaml:"name" mapstructure:"name"`
	Category TierCategory `json:"category" yaml:"category" mapstructure:"category"`
	Domains  []string     `json:"domains" yaml:"domains" mapstructure:"domains"`
}

// GeneralTier describes the unrestricted fallback pass
func GeneralTier() SourceTier {
	return SourceTier{Rank: GeneralRank, Name: "general", Category: CategoryGeneral}
}

// CandidateDocument is one normalized search hit
type CandidateDocument struct {
	URL           string       `json:"url"`
	Domain        string       `json:"domain"`
	Title         string       `json:"title"`
	Body          string       `json:"body"`
	PublishedDate *time.Time   `json:"published_date,omitempty"`
	Author        string       `json:"author,omitempty"`
	TierRank      int          `json:"tier_rank"`
	TierCategory  TierCategory `json:"tier_category"`
	IsSocialMedia bool         `json:"is_social_media"`

	// DomesticLanguage marks evidence written in the domestic language
	DomesticLanguage bool `json:"domestic_language"`

	// ProviderScore is the search provider's own relevance, 0 when absent
	ProviderScore float64 `json:"provider_score,omitempty"`
}

// ScoredDocument is a candidate with its relevance score attached
type ScoredDocument struct {
	CandidateDocument
	RelevanceScore float64 `json:"relevance_score"`
}

// Language returns the evidence language flag for the document
func (d CandidateDocument) Language(domesticLang, foreignLang string) string {
	if d.DomesticLanguage {
		return domesticLang
	}
	return foreignLang
}

// EvidenceSet is the deduplicated, ordered and bounded evidence handed to generation
type EvidenceSet struct {
	Documents   []ScoredDocument    `json:"documents"`
	SocialMedia []CandidateDocument `json:"social_media,omitempty"` // disclosure only, never verification

	HasDomesticSources bool           `json:"has_domestic_sources"`
	HasForeignSources  bool           `json:"has_foreign_sources"`
	TierBreakdown      map[string]int `json:"tier_breakdown"`

	// Shortfall is set when fewer than the requested minimum were collected
	Shortfall bool `json:"shortfall"`
	// Threshold is the relevance threshold the final filter applied
	Threshold float64 `json:"threshold"`
}

// Len returns the number of verification documents
func (e *EvidenceSet) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Documents)
}
