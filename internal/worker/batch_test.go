package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/verity/internal/model"
)

// mockChecker implements Checker
type mockChecker struct {
	failOn string
	delay  time.Duration
}

func (m *mockChecker) Check(ctx context.Context, claim string) (*model.Response, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if claim == m.failOn {
		return nil, errors.New("check error")
	}
	return &model.Response{
		Status:  model.StatusSuccess,
		Claim:   claim,
		Verdict: model.VerdictTrue,
	}, nil
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claims.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessClaims(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{}, 2, 0)

	claims := []string{"claim one", "claim two", "claim three", "claim four"}
	results := processor.ProcessClaims(context.Background(), claims)

	if len(results) != len(claims) {
		t.Fatalf("expected %d results, got %d", len(claims), len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %q: %v", res.Claim, res.Error)
		}
		if res.Claim != claims[i] {
			t.Errorf("result %d out of order: got %q", i, res.Claim)
		}
		if res.Response == nil || res.Response.Claim != claims[i] {
			t.Errorf("expected response for %q", claims[i])
		}
	}
}

func TestBatchProcessor_ProcessClaims_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{failOn: "bad"}, 2, 0)

	results := processor.ProcessClaims(context.Background(), []string{"good", "bad"})

	if results[0].Error != nil {
		t.Errorf("unexpected error: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[1].Response != nil {
		t.Error("expected nil response on error")
	}
}

func TestBatchProcessor_ProcessClaims_Timeout(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{delay: 200 * time.Millisecond}, 1, 10*time.Millisecond)

	results := processor.ProcessClaims(context.Background(), []string{"slow"})
	if !errors.Is(results[0].Error, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", results[0].Error)
	}
}

func TestBatchProcessor_ProcessClaims_BatchDeadline(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{delay: 30 * time.Millisecond}, 1, 0)
	claims := []string{"a", "b", "c", "d", "e"}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results := processor.ProcessClaims(ctx, claims)
	if len(results) != len(claims) {
		t.Fatalf("expected %d results, got %d", len(claims), len(results))
	}

	failed := 0
	for i, r := range results {
		if r == nil {
			t.Fatalf("result %d missing", i)
		}
		if r.Index != i || r.Claim != claims[i] {
			t.Errorf("result %d out of order: index %d claim %q", i, r.Index, r.Claim)
		}
		if r.Error != nil {
			failed++
			if !errors.Is(r.Error, context.DeadlineExceeded) {
				t.Errorf("expected deadline exceeded for %q, got %v", r.Claim, r.Error)
			}
		}
	}
	if failed == 0 {
		t.Error("expected unchecked claims to carry an error")
	}
	if results[0].Error != nil {
		t.Errorf("expected first claim to finish, got %v", results[0].Error)
	}
}

func TestBatchProcessor_ProcessClaims_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{}, 2, 0)

	results := processor.ProcessClaims(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestCheckerFunc(t *testing.T) {
	var got string
	fn := CheckerFunc(func(ctx context.Context, claim string) (*model.Response, error) {
		got = claim
		return &model.Response{Claim: claim}, nil
	})

	processor := NewBatchProcessor(fn, 1, 0)
	processor.ProcessClaims(context.Background(), []string{"adapted"})

	if got != "adapted" {
		t.Errorf("expected CheckerFunc to receive claim, got %q", got)
	}
}

func TestReadClaimsFromFile(t *testing.T) {
	path := writeTemp(t, `The subway fare rises next year
# comment

  서울 지하철 요금이 인상된다   
The   subway fare rises   next year
`)

	claims, err := ReadClaimsFromFile(path)
	if err != nil {
		t.Fatalf("ReadClaimsFromFile failed: %v", err)
	}

	expected := []string{"The subway fare rises next year", "서울 지하철 요금이 인상된다"}
	if strings.Join(claims, "|") != strings.Join(expected, "|") {
		t.Errorf("expected %v, got %v", expected, claims)
	}
}

func TestReadClaimsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadClaimsFromFile("/non/existent/file"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTemp(t, "claim a\nclaim b\n")
	processor := NewBatchProcessor(&mockChecker{}, 2, 0)

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{}, 2, 0)

	if _, err := processor.ProcessFile(context.Background(), "/non/existent/file"); err == nil {
		t.Error("expected error for non-existent file")
	}
}
