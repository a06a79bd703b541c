package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/verity/internal/model"
)

// Checker fact-checks a single claim
type Checker interface {
	Check(ctx context.Context, claim string) (*model.Response, error)
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context, claim string) (*model.Response, error)

// Check calls f
func (f CheckerFunc) Check(ctx context.Context, claim string) (*model.Response, error) {
	return f(ctx, claim)
}

// ClaimJob checks one claim from a batch
type ClaimJob struct {
	Index   int
	Claim   string
	Checker Checker
	Timeout time.Duration
}

// Execute executes the check
func (j *ClaimJob) Execute(ctx context.Context) Result {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := j.Checker.Check(ctx, j.Claim)
	return &ClaimResult{
		Index:    j.Index,
		Claim:    j.Claim,
		Response: resp,
		Error:    err,
		Elapsed:  time.Since(start),
	}
}

// ClaimResult is the outcome of one batch check
type ClaimResult struct {
	Index    int
	Claim    string
	Response *model.Response
	Error    error
	Elapsed  time.Duration
}

// GetError returns the error from the check
func (r *ClaimResult) GetError() error {
	return r.Error
}

// BatchProcessor checks many claims concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
	timeout     time.Duration
}

// NewBatchProcessor creates a new batch processor. timeout bounds each
// claim (0 = no per-claim bound).
func NewBatchProcessor(checker Checker, concurrency int, timeout time.Duration) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// ProcessClaims checks claims concurrently; results keep input order
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []string) []*ClaimResult {
	if len(claims) == 0 {
		return []*ClaimResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	jobs := make([]Job, len(claims))
	for i, claim := range claims {
		jobs[i] = &ClaimJob{
			Index:   i,
			Claim:   claim,
			Checker: b.checker,
			Timeout: b.timeout,
		}
	}

	out := make([]*ClaimResult, len(claims))
	for _, r := range pool.Run(jobs) {
		cr := r.(*ClaimResult)
		out[cr.Index] = cr
	}

	// claims dropped when the batch context ended still get a result
	for i, r := range out {
		if r != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out[i] = &ClaimResult{Index: i, Claim: claims[i], Error: fmt.Errorf("not checked: %w", err)}
	}

	return out
}

// ProcessFile reads claims from a file and checks them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ClaimResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	return b.ProcessClaims(ctx, claims), nil
}

// ReadClaimsFromFile reads one claim per line, skipping blanks, comments and
// duplicates
func ReadClaimsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := strings.Join(strings.Fields(line), " ")
		if !seen[key] {
			seen[key] = true
			claims = append(claims, key)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}
