// Package verdict derives a discrete verdict label from generated report text.
//
// Extraction is an ordered keyword scan. Context-dependent phrasing is
// checked first, then explicit negations, then true, then false, then
// unverified; anything else is unverified. If the report contains a "Verdict:" (or 판정/결론) line, only
// that line is scanned.
//
// The scan is deliberately simple and therefore fragile: a report whose
// narrative argues one way but whose verdict line says another is labelled by
// the verdict line, and free text without one is labelled by whichever
// pattern group matches first. Callers should treat the label as a summary of
// the report, not an independent judgement.
package verdict

import (
	"regexp"

	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/verity/internal/model"
)

type rule struct {
	verdict  model.Verdict
	patterns []*regexp.Regexp
}

// rules are evaluated in order; the first group with a match wins
var rules = []rule{
	{model.VerdictContextDependent, compile(
		`(?i)context[-\s]?dependent`,
		`(?i)\b(?:partly|partially|half)[-\s](?:true|false)\b`,
		`(?i)\bmostly\s+(?:true|false)\b.*\bbut\b`,
		`(?i)\bmisleading\b`,
		`맥락에\s*따라`,
		`맥락\s*의존`,
		`부분적\s*(?:으로\s*)?(?:사실|거짓)`,
		`일부\s*(?:사실|거짓)`,
		`절반의\s*사실`,
	)},
	// 사실 inside a negation ("허위 사실", "사실 아님") must not reach the true group
	{model.VerdictFalse, compile(
		`(?:허위|거짓)\s*(?:의\s*)?사실`,
		`사실이\s*아`,
		`사실\s*아님`,
		`사실무근`,
	)},
	{model.VerdictTrue, compile(
		`(?i)^[^\pL\d]*(?:mostly\s+)?true\b`,
		`(?i)\b(?:is|are|was|were)\s+(?:mostly\s+)?(?:true|accurate)\b`,
		`사실(?:\s*$|입니다|임|로\s*판단|로\s*확인)`,
		`^[^\pL\d]*참(?:\s*$|입니다|임)`,
	)},
	{model.VerdictFalse, compile(
		`(?i)\bfalse\b`,
		`(?i)\bnot\s+(?:true|accurate)\b`,
		`(?i)\bfabricated\b`,
		`거짓`,
		`허위`,
	)},
	{model.VerdictUnverified, compile(
		`(?i)\bunverifi(?:ed|able)\b`,
		`(?i)cannot\s+be\s+(?:verified|confirmed)`,
		`(?i)insufficient\s+evidence`,
		`확인\s*불가`,
		`검증\s*불가`,
		`판단\s*불가`,
		`미확인`,
	)},
}

var verdictLine = regexp.MustCompile(`(?im)^[\s#>*_-]*(?:final\s+)?(?:verdict|판정|결론)[*_\s]*[:：]\s*(.+)$`)

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Extract returns the verdict for report text. It is pure and deterministic.
func Extract(text string) model.Verdict {
	text = norm.NFC.String(text)

	if m := verdictLine.FindAllStringSubmatch(text, -1); len(m) > 0 {
		if v, ok := scan(m[len(m)-1][1]); ok {
			return v
		}
	}
	if v, ok := scan(text); ok {
		return v
	}
	return model.VerdictUnverified
}

func scan(s string) (model.Verdict, bool) {
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(s) {
				return r.verdict, true
			}
		}
	}
	return "", false
}
