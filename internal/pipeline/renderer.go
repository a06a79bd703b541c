package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/verity/internal/model"
)

// Renderer writes check responses to files and terminals
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the response as indented JSON
func (r *Renderer) RenderJSON(resp *model.Response, path string) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the human-readable report
func (r *Renderer) RenderMarkdown(resp *model.Response, path string) error {
	return writeFile(path, []byte(r.Markdown(resp)))
}

// Markdown renders the response as a Markdown document
func (r *Renderer) Markdown(resp *model.Response) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Fact check: %s\n\n", resp.Claim)
	fmt.Fprintf(&sb, "**Verdict:** %s  \n", verdictLabel(resp.Verdict))
	fmt.Fprintf(&sb, "**Status:** %s  \n", resp.Status)
	fmt.Fprintf(&sb, "**Geography:** %s (confidence %.2f)\n\n", resp.SourceInfo.Geography.Type, resp.SourceInfo.Geography.Confidence)

	sb.WriteString(strings.TrimSpace(resp.Report))
	sb.WriteString("\n\n")

	if len(resp.Sources) > 0 {
		sb.WriteString("## Sources\n\n")
		for _, s := range resp.Sources {
			title := s.Title
			if title == "" {
				title = s.URL
			}
			fmt.Fprintf(&sb, "%d. [%s](%s)", s.ID, title, s.URL)
			if s.Tier != "" {
				fmt.Fprintf(&sb, " _(%s, %s)_", s.Tier, s.Language)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(resp.SocialMedia) > 0 {
		sb.WriteString("## Social media (not used for verification)\n\n")
		for _, s := range resp.SocialMedia {
			fmt.Fprintf(&sb, "- S%d. %s <%s>\n", s.ID, s.Title, s.URL)
		}
		sb.WriteString("\n")
	}

	if len(resp.SourceInfo.TierBreakdown) > 0 {
		sb.WriteString("## Source breakdown\n\n")
		tiers := make([]string, 0, len(resp.SourceInfo.TierBreakdown))
		for t := range resp.SourceInfo.TierBreakdown {
			tiers = append(tiers, t)
		}
		sort.Strings(tiers)
		for _, t := range tiers {
			fmt.Fprintf(&sb, "- %s: %d\n", t, resp.SourceInfo.TierBreakdown[t])
		}
		sb.WriteString("\n")
	}

	if r.includeFooter {
		fmt.Fprintf(&sb, "---\n_Request %s, generated %s", resp.RequestID, resp.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
		if resp.Provider != "" {
			fmt.Fprintf(&sb, " by %s", resp.Provider)
		}
		sb.WriteString("._\n")
	}

	return sb.String()
}

// RenderSummary prints a short terminal summary
func (r *Renderer) RenderSummary(w io.Writer, resp *model.Response) {
	fmt.Fprintf(w, "\nClaim:    %s\n", resp.Claim)
	fmt.Fprintf(w, "Verdict:  %s\n", verdictLabel(resp.Verdict))
	fmt.Fprintf(w, "Status:   %s\n", resp.Status)
	fmt.Fprintf(w, "Sources:  %d", resp.SourceInfo.TotalSources)
	if n := len(resp.SocialMedia); n > 0 {
		fmt.Fprintf(w, " (+%d social media excluded)", n)
	}
	fmt.Fprintln(w)
	if resp.Provider != "" {
		fmt.Fprintf(w, "Provider: %s\n", resp.Provider)
	}
}

func verdictLabel(v model.Verdict) string {
	switch v {
	case model.VerdictTrue:
		return "True"
	case model.VerdictFalse:
		return "False"
	case model.VerdictContextDependent:
		return "Context-dependent"
	default:
		return "Unverified"
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
