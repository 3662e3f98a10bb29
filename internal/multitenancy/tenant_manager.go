package multitenancy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elile/screening-core/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// MULTI-TENANT SUPPORT - Persistent & Scalable
// ============================================================================

// TenantManager manages tenant organizations and API-key issuance backed by
// the relational store.
type TenantManager struct {
	db *store.Client
}

// NewTenantManager creates a new persistent tenant manager
func NewTenantManager(db *store.Client) *TenantManager {
	return &TenantManager{
		db: db,
	}
}

// ============================================================================
// TENANT OPERATIONS
// ============================================================================

// GetTenant retrieves a tenant by ID
func (tm *TenantManager) GetTenant(ctx context.Context, tenantID string) (*store.Tenant, error) {
	return tm.db.GetTenant(ctx, tenantID)
}

// LoadTenant validates and loads a tenant, ensuring it is active
func (tm *TenantManager) LoadTenant(ctx context.Context, tenantID string) (*store.Tenant, error) {
	tenant, err := tm.db.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, errors.New("tenant not found")
	}

	if tenant.Status != "ACTIVE" && tenant.Status != "TRIAL" {
		return nil, fmt.Errorf("tenant is %s", tenant.Status)
	}

	return tenant, nil
}

// ============================================================================
// API KEY MANAGEMENT
// ============================================================================

const apiKeyPrefix = "scrn_"

// CreateAPIKey creates a new API key with format: scrn_<id>.<secret>
func (tm *TenantManager) CreateAPIKey(ctx context.Context, tenantID, name string, scopes []string) (*store.APIKey, string, error) {
	idBytes := make([]byte, 8)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, "", err
	}
	keyID := hex.EncodeToString(idBytes)

	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", err
	}
	secret := hex.EncodeToString(secretBytes)

	fullKey := fmt.Sprintf("%s%s.%s", apiKeyPrefix, keyID, secret)

	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	apiKey := &store.APIKey{
		KeyID:    keyID,
		TenantID: tenantID,
		Name:     name,
		KeyHash:  string(secretHash),
		Scopes:   scopes,
		IsActive: true,
	}

	if err := tm.db.CreateAPIKey(ctx, apiKey); err != nil {
		return nil, "", err
	}

	return apiKey, fullKey, nil
}

// ValidateAPIKey validates an API key and returns the Tenant.
// Key format: scrn_<key_id>.<secret>
func (tm *TenantManager) ValidateAPIKey(ctx context.Context, fullKey string) (*store.Tenant, error) {
	if !strings.HasPrefix(fullKey, apiKeyPrefix) {
		return nil, errors.New("invalid key format")
	}
	parts := strings.Split(strings.TrimPrefix(fullKey, apiKeyPrefix), ".")
	if len(parts) != 2 {
		return nil, errors.New("invalid key format")
	}

	keyID := parts[0]
	secret := parts[1]

	apiKey, err := tm.db.GetAPIKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("lookup failed: %w", err)
	}
	if apiKey == nil {
		return nil, errors.New("invalid api key")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(apiKey.KeyHash), []byte(secret)); err != nil {
		return nil, errors.New("invalid api key secret")
	}

	if !apiKey.IsActive {
		return nil, errors.New("api key inactive")
	}
	if apiKey.ExpiresAt != nil && time.Now().After(*apiKey.ExpiresAt) {
		return nil, errors.New("api key expired")
	}

	return tm.LoadTenant(ctx, apiKey.TenantID)
}

// ============================================================================
// CONTEXT HELPERS
// ============================================================================

type contextKey string

const (
	tenantIDKey contextKey = "tenant_id"
	tenantKey   contextKey = "tenant"
)

// WithTenant adds tenant ID to context
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// GetTenantID extracts tenant ID from context
func GetTenantID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(tenantIDKey).(string)
	if !ok || id == "" {
		return "", errors.New("tenant context missing")
	}
	return id, nil
}
