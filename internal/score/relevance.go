// Package score computes the relevance of evidence documents to a claim.
//
// The score is a transparent weighted sum of keyword hits, clamped to [0,1]:
//
//	keyword in title        +0.30 each
//	full query in title     +0.50
//	keyword in body         +0.15 each
//	keyword in url          +0.05 each
//	full query in title/body +0.20
//	body shorter than 50    x0.5
//	no title/body hit       x0.2
package score

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/verity/internal/model"
)

const (
	weightTitleKeyword = 0.3
	weightTitleQuery   = 0.5
	weightBodyKeyword  = 0.15
	weightURLKeyword   = 0.05
	weightQueryMatch   = 0.2

	minStemRunes = 2

	sparseBodyRunes  = 50
	sparsePenalty    = 0.5
	irrelevantFactor = 0.2
)

// Scorer scores documents against a query. It is safe for concurrent use.
type Scorer struct {
	stopWords map[string]bool
}

// NewScorer creates a scorer with the built-in bilingual stop-word list
func NewScorer() *Scorer {
	return &Scorer{
		stopWords: defaultStopWords,
	}
}

// Breakdown exposes the inputs behind a score
type Breakdown struct {
	Keywords     []string `json:"keywords"`
	TitleHits    int      `json:"title_hits"`
	BodyHits     int      `json:"body_hits"`
	URLHits      int      `json:"url_hits"`
	TitleQuery   bool     `json:"title_query"`
	QueryMatch   bool     `json:"query_match"`
	SparseBody   bool     `json:"sparse_body"`
	NoContentHit bool     `json:"no_content_hit"`
	Raw          float64  `json:"raw"`
	Score        float64  `json:"score"`
}

// Score returns the relevance of a candidate document to the query
func (s *Scorer) Score(query string, doc model.CandidateDocument) float64 {
	return s.Explain(query, doc.Title, doc.Body, doc.URL).Score
}

// ScoreText scores raw title/body/url strings
func (s *Scorer) ScoreText(query, title, body, url string) float64 {
	return s.Explain(query, title, body, url).Score
}

// Explain computes the score and returns the full breakdown
func (s *Scorer) Explain(query, title, body, url string) Breakdown {
	q := s.normalize(query)
	if q == "" {
		return Breakdown{}
	}

	keywords := s.Keywords(query)
	if len(keywords) == 0 {
		keywords = []string{q}
	}

	t := s.normalize(title)
	b := s.normalize(body)
	u := s.normalize(url)

	bd := Breakdown{Keywords: keywords}
	raw := 0.0

	for _, kw := range keywords {
		if strings.Contains(t, kw) {
			bd.TitleHits++
			raw += weightTitleKeyword
		}
	}
	if strings.Contains(t, q) {
		bd.TitleQuery = true
		raw += weightTitleQuery
	}
	for _, kw := range keywords {
		if strings.Contains(b, kw) {
			bd.BodyHits++
			raw += weightBodyKeyword
		}
	}
	for _, kw := range keywords {
		if strings.Contains(u, kw) {
			bd.URLHits++
			raw += weightURLKeyword
		}
	}
	if strings.Contains(t, q) || strings.Contains(b, q) {
		bd.QueryMatch = true
		raw += weightQueryMatch
	}

	bd.Raw = raw

	if utf8.RuneCountInString(strings.TrimSpace(body)) < sparseBodyRunes {
		bd.SparseBody = true
		raw *= sparsePenalty
	}
	if bd.TitleHits == 0 && bd.BodyHits == 0 {
		bd.NoContentHit = true
		raw *= irrelevantFactor
	}

	bd.Score = clamp(raw)
	return bd
}

// Keywords tokenizes a query, strips trailing Korean particles and drops stop
// words. Duplicates are removed, order is preserved.
func (s *Scorer) Keywords(query string) []string {
	fields := strings.FieldsFunc(s.normalize(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		if s.stopWords[f] {
			continue
		}
		f = stripParticle(f)
		if s.stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		keywords = append(keywords, f)
	}
	return keywords
}

// normalize folds case and composes Hangul jamo. Casers are stateful, so a
// fresh one is used per call.
func (s *Scorer) normalize(text string) string {
	return strings.TrimSpace(cases.Fold().String(norm.NFC.String(text)))
}

// stripParticle removes one trailing postposition from a Hangul token
// ("윤석열이" -> "윤석열"). The stem keeps at least two syllables. Matching is
// by substring, so a stem still hits the inflected form in documents.
func stripParticle(word string) string {
	last, _ := utf8.DecodeLastRuneInString(word)
	if !unicode.Is(unicode.Hangul, last) {
		return word
	}
	n := utf8.RuneCountInString(word)
	for _, p := range particles {
		if strings.HasSuffix(word, p) && n-utf8.RuneCountInString(p) >= minStemRunes {
			return strings.TrimSuffix(word, p)
		}
	}
	return word
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
