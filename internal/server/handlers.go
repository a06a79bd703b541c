package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/verity/internal/auth"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/pipeline"
)

// APIKeyHeader is the dedicated key header; Authorization: Bearer is also accepted
const APIKeyHeader = "X-API-Key"

// AdminTokenHeader carries the admin token for key revocation
const AdminTokenHeader = "X-Admin-Token"

type checkRequest struct {
	Claim string `json:"claim"`
}

type assignRequest struct {
	Owner string `json:"owner"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCheck(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, model.ErrorResponse{
			Error:   model.ErrorInvalidInput,
			Message: "malformed request body",
		})
		return
	}

	ctx := c.Request.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	res, err := s.checker.Check(ctx, model.Claim(req.Claim), extractKey(c))
	if err != nil {
		s.writePipelineError(c, err)
		return
	}

	setQuotaHeaders(c, res.Quota)
	c.JSON(http.StatusOK, res.Response)
}

func (s *Server) handleQuota(c *gin.Context) {
	q, err := s.keys.Quota(c.Request.Context(), extractKey(c))
	if err != nil {
		s.writeKeyError(c, err)
		return
	}
	setQuotaHeaders(c, q)
	c.JSON(http.StatusOK, q)
}

func (s *Server) handleAssignKey(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, model.ErrorResponse{
			Error:   model.ErrorInvalidInput,
			Message: "malformed request body",
		})
		return
	}

	key, err := s.keys.Assign(c.Request.Context(), req.Owner)
	if err != nil {
		s.writeKeyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, key)
}

func (s *Server) handleRevokeKey(c *gin.Context) {
	key, err := s.keys.Revoke(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.writeKeyError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminToken == "" {
			writeError(c, http.StatusForbidden, model.ErrorResponse{
				Error:   model.ErrorUnauthorized,
				Message: "key administration is disabled",
			})
			c.Abort()
			return
		}
		token := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(c, http.StatusUnauthorized, model.ErrorResponse{
				Error:   model.ErrorUnauthorized,
				Message: "invalid admin token",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) writePipelineError(c *gin.Context, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		s.logger.Error("check failed", "error", err)
		writeError(c, http.StatusInternalServerError, model.ErrorResponse{
			Error:   model.ErrorInternal,
			Message: "internal error",
		})
		return
	}

	status := statusFor(perr.Kind)
	if status == http.StatusInternalServerError {
		s.logger.Error("check failed", "error", perr.Err)
	}
	if perr.Kind == model.ErrorRateLimited && perr.ResetAt != nil {
		c.Header("X-RateLimit-Limit", strconv.Itoa(perr.Limit))
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("X-RateLimit-Reset", strconv.FormatInt(perr.ResetAt.Unix(), 10))
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(*perr.ResetAt)))
	}
	writeError(c, status, perr.Body())
}

func (s *Server) writeKeyError(c *gin.Context, err error) {
	body := model.ErrorResponse{Error: model.ErrorUnauthorized, Message: err.Error()}
	status := http.StatusUnauthorized

	switch {
	case errors.Is(err, auth.ErrEmptyOwner):
		status, body.Error = http.StatusBadRequest, model.ErrorInvalidInput
	case errors.Is(err, auth.ErrAlreadyAssigned):
		status, body.Error = http.StatusConflict, model.ErrorInvalidInput
	case errors.Is(err, auth.ErrNoKeysAvailable):
		status, body.Error = http.StatusServiceUnavailable, model.ErrorInternal
	case errors.Is(err, auth.ErrKeyNotFound) && c.Request.Method == http.MethodDelete:
		status, body.Error = http.StatusNotFound, model.ErrorInvalidInput
	case errors.Is(err, auth.ErrKeyRevoked) && c.Request.Method == http.MethodDelete:
		status, body.Error = http.StatusConflict, model.ErrorInvalidInput
	case errors.Is(err, auth.ErrMissingKey),
		errors.Is(err, auth.ErrKeyNotFound),
		errors.Is(err, auth.ErrKeyRevoked),
		errors.Is(err, auth.ErrKeyNotAssigned):
	default:
		s.logger.Error("key operation failed", "error", err)
		status = http.StatusInternalServerError
		body = model.ErrorResponse{Error: model.ErrorInternal, Message: "internal error"}
	}
	writeError(c, status, body)
}

func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.ErrorInvalidInput:
		return http.StatusBadRequest
	case model.ErrorUnauthorized:
		return http.StatusUnauthorized
	case model.ErrorRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, body model.ErrorResponse) {
	c.JSON(status, body)
}

// extractKey reads the key from X-API-Key or Authorization: Bearer
func extractKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(APIKeyHeader)); key != "" {
		return key
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func setQuotaHeaders(c *gin.Context, q auth.Quota) {
	if q.Unlimited {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(q.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(q.ResetAt.Unix(), 10))
}

func retryAfterSeconds(resetAt time.Time) int {
	secs := int(time.Until(resetAt).Seconds() + 0.5)
	if secs < 1 {
		return 1
	}
	return secs
}
