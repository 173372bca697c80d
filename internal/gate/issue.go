package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tooldex/tooldex/internal/mailer"
	"github.com/tooldex/tooldex/internal/store"
	"github.com/tooldex/tooldex/internal/turnstile"
	"github.com/tooldex/tooldex/pkg/models"
)

// Issuer handles key registration. The raw key exists only in the scope
// of Register: generated, digested, handed to the mailer, dropped.
type Issuer struct {
	store     store.Store
	mailer    mailer.Mailer
	turnstile turnstile.Verifier
	quota     int
}

// NewIssuer creates an Issuer.
func NewIssuer(s store.Store, m mailer.Mailer, v turnstile.Verifier, dailyQuota int) *Issuer {
	return &Issuer{store: s, mailer: m, turnstile: v, quota: dailyQuota}
}

// Register verifies the turnstile token, then issues a key unless the
// email already holds an active one. Both branches return nil so the
// caller's success response cannot be used to probe which addresses are
// registered.
func (i *Issuer) Register(ctx context.Context, name, email, token, remoteIP string) error {
	if err := i.turnstile.Verify(ctx, token, remoteIP); err != nil {
		return err
	}

	exists, err := i.store.HasActiveKeyForEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check existing key: %w", err)
	}
	if exists {
		return nil
	}

	raw := KeyPrefix + uuid.NewString()
	now := time.Now().UTC()
	key := &models.APIKey{
		ID:         uuid.New(),
		OwnerName:  name,
		OwnerEmail: email,
		KeyDigest:  Digest(raw),
		KeyPrefix:  DisplayPrefix(raw),
		Active:     true,
		DailyQuota: i.quota,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := i.store.CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}

	// Mail is the only channel the plaintext ever crosses. A delivery
	// failure leaves the key unreachable, so revoke it and report.
	if err := i.mailer.SendAPIKey(ctx, email, name, raw); err != nil {
		if derr := i.store.DeactivateAPIKey(ctx, key.ID); derr != nil {
			return fmt.Errorf("deliver api key: %w (revoke also failed: %v)", err, derr)
		}
		return fmt.Errorf("deliver api key: %w", err)
	}
	return nil
}
