package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/pipeline"
)

var (
	outJSON    string
	outMD      string
	timeout    time.Duration
	noCache    bool
	noFooter   bool
	cacheDir   string
	httpProxy  string
	httpsProxy string
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <claim>",
	Short: "Fact-check a single claim",
	Long: `Check runs the full pipeline for one claim:
- Classify the claim as domestic or international
- Search trusted source tiers in order, then general web search
- Filter results by relevance and disclose social media separately
- Generate a cited report with a verdict

No access key is needed for local checks.

Example:
  verity check "The Han river froze over in January 2024"
  verity check "Seoul is the capital of Japan" --json report.json --md report.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&outJSON, "json", "", "write JSON report to file")
	checkCmd.Flags().StringVar(&outMD, "md", "", "write Markdown report to file")
	checkCmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "timeout for the whole check")
	addRuntimeFlags(checkCmd)
}

// addRuntimeFlags registers the flags shared by check and batch
func addRuntimeFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable search and geography caching")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "persist search results on disk in this directory")
	cmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

// localConfig loads config and applies the runtime flags
func localConfig() (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if cacheDir != "" {
		cfg.Cache.DiskDir = cacheDir
	}
	if httpProxy != "" {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
	if cfg.Search.APIKey == "" {
		return nil, fmt.Errorf("search API key not set (export TAVILY_API_KEY or set search.api_key)")
	}
	return cfg, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	claim := model.Claim(strings.Join(args, " "))

	cfg, err := localConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger := newLogger(false)
	comps, err := pipeline.Build(ctx, cfg, logger, nil, false)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer comps.Close()

	fmt.Fprintf(os.Stderr, "⚙️  Checking claim...\n")
	res, err := comps.Coordinator.Check(ctx, claim, "")
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	resp := res.Response

	renderer := pipeline.NewRenderer(!noFooter)
	if outJSON != "" {
		if err := renderer.RenderJSON(resp, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(resp, outMD); err != nil {
			return fmt.Errorf("render Markdown: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
	}

	renderer.RenderSummary(os.Stdout, resp)
	if outJSON == "" && outMD == "" {
		fmt.Fprintf(os.Stdout, "\n%s\n", resp.Report)
	}
	return nil
}
