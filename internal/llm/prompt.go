package llm

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/verity/internal/model"
)

// DefaultExcerptChars is the evidence body cap when neither the dialect nor
// the cascade set one
const DefaultExcerptChars = 600

// SystemPrompt frames every generation call
const SystemPrompt = "You are a careful fact-checking analyst. You judge claims only against the numbered evidence you are given and you cite it by number."

// PromptInput is the evidence bundle a report is generated from
type PromptInput struct {
	Claim       model.Claim
	Geography   model.Geography
	Evidence    []model.ScoredDocument
	SocialMedia []model.CandidateDocument

	// Language labels for the evidence list
	DomesticLanguage string
	ForeignLanguage  string
}

// BuildPrompt renders the stage prompt for one dialect. excerptChars applies
// when the dialect does not override it.
func BuildPrompt(in PromptInput, d Dialect, excerptChars int) string {
	limit := excerptChars
	if d.ExcerptChars > 0 {
		limit = d.ExcerptChars
	}
	if limit <= 0 {
		limit = DefaultExcerptChars
	}

	var sb strings.Builder

	sb.WriteString("Fact-check the following claim using ONLY the numbered evidence below.\n\n")
	fmt.Fprintf(&sb, "CLAIM: %s\n", in.Claim)
	if in.Geography != "" {
		fmt.Fprintf(&sb, "CLAIM SCOPE: %s\n", in.Geography)
	}
	sb.WriteString("\n")

	sb.WriteString("EVIDENCE:\n")
	for i, doc := range in.Evidence {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, oneLine(doc.Title))
		fmt.Fprintf(&sb, "    URL: %s\n", doc.URL)
		if lang := doc.Language(in.DomesticLanguage, in.ForeignLanguage); lang != "" {
			fmt.Fprintf(&sb, "    Language: %s\n", lang)
		}
		if doc.PublishedDate != nil {
			fmt.Fprintf(&sb, "    Published: %s\n", doc.PublishedDate.Format("2006-01-02"))
		}
		fmt.Fprintf(&sb, "    Excerpt: %s\n", Excerpt(doc.Body, limit))
	}
	sb.WriteString("\n")

	if len(in.SocialMedia) > 0 {
		sb.WriteString("SOCIAL MEDIA POSTS (NOT EVIDENCE):\n")
		for i, doc := range in.SocialMedia {
			fmt.Fprintf(&sb, "[S%d] %s (%s)\n", i+1, oneLine(doc.Title), doc.URL)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("RULES:\n")
	sb.WriteString("1. Base every statement on the numbered evidence. Do not use outside knowledge.\n")
	fmt.Fprintf(&sb, "2. Cite evidence with numbered markers like [1] or [2][3]; numbers must match the EVIDENCE list (1-%d).\n", len(in.Evidence))
	if len(in.SocialMedia) > 0 {
		sb.WriteString("3. NEVER use social media posts to support or refute the claim. You may only mention that they exist by their S-index.\n")
	} else {
		sb.WriteString("3. Social media is never evidence.\n")
	}
	sb.WriteString("4. Write the report in the same language as the claim.\n")
	if d.NoTables {
		sb.WriteString("5. Do NOT use tables. Use short paragraphs and plain bullet lists only.\n")
	} else {
		sb.WriteString("5. Use markdown headings and lists; a small table is allowed when comparing sources.\n")
	}
	if d.MinWords > 0 {
		fmt.Fprintf(&sb, "6. Write at least %d words. Explain what each cited source says before concluding.\n", d.MinWords)
	}
	sb.WriteString("\n")

	sb.WriteString("End the report with a single line in this exact form:\n")
	sb.WriteString("Verdict: <True | False | Unverified | Context-dependent>\n")

	return sb.String()
}

// Excerpt caps body to limit runes on a word boundary when possible
func Excerpt(body string, limit int) string {
	body = oneLine(body)
	if limit <= 0 || utf8.RuneCountInString(body) <= limit {
		return body
	}
	runes := []rune(body)
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// Citations returns the distinct evidence numbers cited in text, ascending
func Citations(text string) []int {
	seen := make(map[int]bool)
	var out []int
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// OutOfRangeCitations returns cited numbers with no matching evidence entry
func OutOfRangeCitations(text string, evidenceCount int) []int {
	var bad []int
	for _, n := range Citations(text) {
		if n < 1 || n > evidenceCount {
			bad = append(bad, n)
		}
	}
	return bad
}
