package pipeline

import (
	"errors"
	"fmt"
)

// snippetChars caps the source snippets returned to callers
const snippetChars = 300

var errGenerationFailed = errors.New("generation failed")

func noResultsReport(claim fmt.Stringer) string {
	return fmt.Sprintf(`## Claim
%s

## Findings
No evidence about this claim was found in the trusted source tiers or in general web search. The claim could not be checked.

Verdict: Unverified`, claim)
}

func generationFailedReport(claim fmt.Stringer, sources int) string {
	return fmt.Sprintf(`## Claim
%s

## Findings
%d sources were collected and are listed below, but report generation failed for every provider, so no analysis is available. Review the sources directly.

Verdict: Unverified`, claim, sources)
}
