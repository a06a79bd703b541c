// Package auth manages the access-key pool and per-key request quotas.
//
// Keys move one way: available -> assigned -> revoked, or available -> revoked.
// Stores serialize every transition so concurrent requests never observe a
// key going backwards.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingKey      = errors.New("api key is required")
	ErrKeyNotFound     = errors.New("api key not found")
	ErrKeyRevoked      = errors.New("api key has been revoked")
	ErrKeyNotAssigned  = errors.New("api key has not been assigned")
	ErrNoKeysAvailable = errors.New("no keys available")
	ErrAlreadyAssigned = errors.New("owner already holds a key")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrEmptyOwner      = errors.New("owner is required")
)

// KeyStatus is the lifecycle state of an access key
type KeyStatus string

const (
	StatusAvailable KeyStatus = "available"
	StatusAssigned  KeyStatus = "assigned"
	StatusRevoked   KeyStatus = "revoked"
)

// AccessKey is one pool entry
type AccessKey struct {
	Value      string     `json:"key"`
	Status     KeyStatus  `json:"status"`
	Owner      string     `json:"owner,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	AssignedAt *time.Time `json:"assignedAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
}

// Usable reports whether the key may authenticate requests
func (k *AccessKey) Usable() error {
	switch k.Status {
	case StatusAssigned:
		return nil
	case StatusRevoked:
		return ErrKeyRevoked
	default:
		return ErrKeyNotAssigned
	}
}

// KeyStore persists the key pool. Implementations must make Assign and
// Revoke atomic per key.
type KeyStore interface {
	// Seed tops the pool up to size keys and returns how many were created
	Seed(ctx context.Context, size int) (int, error)
	// Assign hands the oldest available key to owner
	Assign(ctx context.Context, owner string) (*AccessKey, error)
	Get(ctx context.Context, value string) (*AccessKey, error)
	Revoke(ctx context.Context, value string) (*AccessKey, error)
	List(ctx context.Context) ([]AccessKey, error)
}

// NewKeyValue generates a fresh key value
func NewKeyValue() string {
	return "vk_" + uuid.NewString()
}
