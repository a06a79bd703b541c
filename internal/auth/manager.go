package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/verity/internal/model"
)

// Manager combines key validation with quota enforcement
type Manager struct {
	store   KeyStore
	quota   *QuotaTracker
	enabled bool
	logger  *slog.Logger
}

// NewManager creates a manager. With enabled=false every request is
// authorized and unlimited.
func NewManager(store KeyStore, quota *QuotaTracker, enabled bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if quota == nil {
		quota = NewQuotaTracker(0, 0)
	}
	return &Manager{store: store, quota: quota, enabled: enabled, logger: logger}
}

// NewStore builds the key store named in cfg
func NewStore(ctx context.Context, cfg model.AuthConfig) (KeyStore, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown key store: %s (supported: memory, postgres)", cfg.Store)
	}
}

// Enabled reports whether keys are required
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Store exposes the underlying key store
func (m *Manager) Store() KeyStore {
	return m.store
}

// Init seeds the key pool
func (m *Manager) Init(ctx context.Context, size int) error {
	created, err := m.store.Seed(ctx, size)
	if err != nil {
		return fmt.Errorf("seed key pool: %w", err)
	}
	if created > 0 {
		m.logger.Info("key pool seeded", "created", created, "size", size)
	}
	return nil
}

// Assign hands an available key to owner
func (m *Manager) Assign(ctx context.Context, owner string) (*AccessKey, error) {
	owner = strings.TrimSpace(owner)
	key, err := m.store.Assign(ctx, owner)
	if err != nil {
		return nil, err
	}
	m.logger.Info("key assigned", "owner", owner)
	return key, nil
}

// Validate looks up a raw key and reports why it cannot be used
func (m *Manager) Validate(ctx context.Context, raw string) (*AccessKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingKey
	}
	key, err := m.store.Get(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := key.Usable(); err != nil {
		return key, err
	}
	return key, nil
}

// Revoke permanently disables a key
func (m *Manager) Revoke(ctx context.Context, raw string) (*AccessKey, error) {
	key, err := m.store.Revoke(ctx, strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	m.logger.Info("key revoked", "owner", key.Owner)
	return key, nil
}

// CheckQuota consumes one request from the key's window
func (m *Manager) CheckQuota(key string) Quota {
	if !m.enabled {
		return Quota{Allowed: true, Unlimited: true}
	}
	return m.quota.Check(key)
}

// Quota reports the key's window without consuming a request
func (m *Manager) Quota(ctx context.Context, raw string) (Quota, error) {
	if !m.enabled {
		return Quota{Allowed: true, Unlimited: true}, nil
	}
	key, err := m.Validate(ctx, raw)
	if err != nil {
		return Quota{}, err
	}
	return m.quota.Peek(key.Value), nil
}

// Authorize validates the key and consumes quota. A rejected quota is
// returned along with ErrQuotaExceeded.
func (m *Manager) Authorize(ctx context.Context, raw string) (Quota, error) {
	if !m.enabled {
		return Quota{Allowed: true, Unlimited: true}, nil
	}

	key, err := m.Validate(ctx, raw)
	if err != nil {
		return Quota{}, err
	}

	q := m.quota.Check(key.Value)
	if !q.Allowed {
		return q, ErrQuotaExceeded
	}
	return q, nil
}
