package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/verity/internal/auth"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/observability"
	"github.com/ppiankov/verity/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedLabeler struct{}

func (fixedLabeler) Label(ctx context.Context, claim model.Claim) model.GeographyLabel {
	return model.FallbackGeography()
}

type fixedRetriever struct{}

func (fixedRetriever) Retrieve(ctx context.Context, claim model.Claim, geo model.Geography, maxResults, minResults int) *model.EvidenceSet {
	return &model.EvidenceSet{
		Documents: []model.ScoredDocument{{
			CandidateDocument: model.CandidateDocument{URL: "https://yna.co.kr/a", Title: "A", Body: "body", DomesticLanguage: true},
			RelevanceScore:    0.9,
		}},
		HasDomesticSources: true,
		TierBreakdown:      map[string]int{"domestic-news": 1},
	}
}

type fixedGenerator struct{}

func (fixedGenerator) Generate(ctx context.Context, in llm.PromptInput) llm.Result {
	return llm.Result{Text: "Confirmed [1].\nVerdict: True", Provider: "openai", Stage: 1, Attempts: 1}
}

type testEnv struct {
	server  *Server
	manager *auth.Manager
	key     string
	clock   *time.Time
}

func newTestEnv(t *testing.T, limit int, adminToken string) *testEnv {
	t.Helper()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	env := &testEnv{clock: &now}

	quota := auth.NewQuotaTracker(limit, time.Hour)
	quota.SetClock(func() time.Time { return *env.clock })

	env.manager = auth.NewManager(auth.NewMemoryStore(), quota, true, quietLogger())
	require.NoError(t, env.manager.Init(ctx, 5))

	key, err := env.manager.Assign(ctx, "tester")
	require.NoError(t, err)
	env.key = key.Value

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	coord := pipeline.NewCoordinator(fixedLabeler{}, fixedRetriever{}, fixedGenerator{},
		model.RetrievalConfig{MaxResults: 10, MinResults: 1, DomesticLanguage: "ko", ForeignLanguage: "en"},
		pipeline.WithAuthorizer(env.manager),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(quietLogger()),
	)

	env.server = New(coord, env.manager, reg, Config{AdminToken: adminToken, RequestTimeout: time.Minute}, quietLogger())
	return env
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCheck_Success(t *testing.T) {
	env := newTestEnv(t, 100, "")

	w := env.do(http.MethodPost, "/v1/check", `{"claim": "The river flooded"}`, map[string]string{"Authorization": "Bearer " + env.key})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.StatusSuccess, resp.Status)
	assert.Equal(t, model.VerdictTrue, resp.Verdict)
	assert.NotEmpty(t, resp.RequestID)
	assert.Len(t, resp.Sources, 1)

	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestCheck_KeyHeaderStyles(t *testing.T) {
	env := newTestEnv(t, 100, "")

	w := env.do(http.MethodPost, "/v1/check", `{"claim": "x"}`, map[string]string{APIKeyHeader: env.key})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/v1/check", `{"claim": "x"}`, map[string]string{"Authorization": "bearer " + env.key})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheck_InputErrors(t *testing.T) {
	env := newTestEnv(t, 100, "")
	headers := map[string]string{APIKeyHeader: env.key}

	for _, body := range []string{`{"claim": ""}`, `{"claim": "   "}`, `{not json`, ``} {
		w := env.do(http.MethodPost, "/v1/check", body, headers)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.Equal(t, model.ErrorInvalidInput, decodeError(t, w).Error)
	}
}

func TestCheck_Unauthorized(t *testing.T) {
	env := newTestEnv(t, 100, "")
	ctx := context.Background()

	revoked, err := env.manager.Assign(ctx, "leaver")
	require.NoError(t, err)
	_, err = env.manager.Revoke(ctx, revoked.Value)
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		message string
	}{
		{"missing", nil, "required"},
		{"not found", map[string]string{APIKeyHeader: "vk_unknown"}, "not found"},
		{"revoked", map[string]string{APIKeyHeader: revoked.Value}, "revoked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/v1/check", `{"claim": "x"}`, tt.headers)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, model.ErrorUnauthorized, body.Error)
			assert.Contains(t, body.Message, tt.message)
		})
	}
}

func TestCheck_QuotaExceeded(t *testing.T) {
	env := newTestEnv(t, 100, "")
	headers := map[string]string{APIKeyHeader: env.key}
	firstReset := env.clock.Add(time.Hour)

	for i := 0; i < 100; i++ {
		w := env.do(http.MethodPost, "/v1/check", `{"claim": "x"}`, headers)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		*env.clock = env.clock.Add(10 * time.Second)
	}

	w := env.do(http.MethodPost, "/v1/check", `{"claim": "x"}`, headers)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	body := decodeError(t, w)
	assert.Equal(t, model.ErrorRateLimited, body.Error)
	require.NotNil(t, body.Remaining)
	assert.Equal(t, 0, *body.Remaining)
	require.NotNil(t, body.ResetAt)
	assert.True(t, body.ResetAt.Equal(firstReset), "resetAt %s, want %s", body.ResetAt, firstReset)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestQuotaEndpoint(t *testing.T) {
	env := newTestEnv(t, 10, "")
	headers := map[string]string{APIKeyHeader: env.key}

	env.do(http.MethodPost, "/v1/check", `{"claim": "x"}`, headers)

	w := env.do(http.MethodGet, "/v1/quota", "", headers)
	require.Equal(t, http.StatusOK, w.Code)

	var q auth.Quota
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 9, q.Remaining)

	w = env.do(http.MethodGet, "/v1/quota", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestKeyAdministration(t *testing.T) {
	env := newTestEnv(t, 10, "s3cret")

	w := env.do(http.MethodPost, "/v1/keys", `{"owner": "new-owner"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var key auth.AccessKey
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &key))
	assert.Equal(t, auth.StatusAssigned, key.Status)

	w = env.do(http.MethodPost, "/v1/keys", `{"owner": "new-owner"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/v1/keys", `{"owner": ""}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/v1/keys/"+key.Value, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	admin := map[string]string{AdminTokenHeader: "s3cret"}
	w = env.do(http.MethodDelete, "/v1/keys/"+key.Value, "", admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/v1/keys/"+key.Value, "", admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodDelete, "/v1/keys/vk_missing", "", admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKeyRevocation_DisabledWithoutAdminToken(t *testing.T) {
	env := newTestEnv(t, 10, "")

	w := env.do(http.MethodDelete, "/v1/keys/"+env.key, "", map[string]string{AdminTokenHeader: ""})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, 10, "")

	w := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	env.do(http.MethodPost, "/v1/check", `{"claim": "x"}`, map[string]string{APIKeyHeader: env.key})

	w = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "verity_pipeline_checks_total")
}

func TestExtractKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"api key header", map[string]string{APIKeyHeader: " abc "}, "abc"},
		{"bearer", map[string]string{"Authorization": "Bearer abc"}, "abc"},
		{"api key wins", map[string]string{APIKeyHeader: "one", "Authorization": "Bearer two"}, "one"},
		{"basic auth ignored", map[string]string{"Authorization": "Basic abc"}, ""},
		{"empty bearer", map[string]string{"Authorization": "Bearer "}, ""},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractKey(c))
		})
	}
}
