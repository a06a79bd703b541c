package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/util"
)

// HTTPClassifier calls an external classification service
type HTTPClassifier struct {
	endpoint   string
	httpClient *http.Client
}

type classifyRequest struct {
	Claim string `json:"claim"`
}

type classifyResponse struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// NewHTTPClassifier creates a classifier client for endpoint
func NewHTTPClassifier(endpoint string, timeout time.Duration, proxy model.HTTPConfig) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClassifier{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(proxy.HTTPProxy, proxy.HTTPSProxy, proxy.NoProxy),
			},
		},
	}
}

// Classify posts the claim and validates the answer
func (c *HTTPClassifier) Classify(ctx context.Context, claim model.Claim) (model.GeographyLabel, error) {
	body, err := json.Marshal(classifyRequest{Claim: claim.String()})
	if err != nil {
		return model.GeographyLabel{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.GeographyLabel{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.GeographyLabel{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.GeographyLabel{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return model.GeographyLabel{}, fmt.Errorf("classifier error (%d): %s", resp.StatusCode, string(respBody))
	}

	var parsed classifyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return model.GeographyLabel{}, fmt.Errorf("unmarshal response: %w", err)
	}

	return validate(parsed.Type, parsed.Confidence, parsed.Reasoning)
}
