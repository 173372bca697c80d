package gate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tooldex/tooldex/internal/gate"
	"github.com/tooldex/tooldex/internal/turnstile"
)

type recordingMailer struct {
	to, name, rawKey string
	calls            int
	err              error
}

func (m *recordingMailer) SendAPIKey(_ context.Context, to, name, rawKey string) error {
	m.calls++
	m.to, m.name, m.rawKey = to, name, rawKey
	return m.err
}

type rejectingVerifier struct{ err error }

func (v rejectingVerifier) Verify(_ context.Context, _, _ string) error { return v.err }

func TestRegister_IssuesKey(t *testing.T) {
	st := &keyStore{}
	m := &recordingMailer{}
	issuer := gate.NewIssuer(st, m, turnstile.NoopVerifier{}, 500)

	err := issuer.Register(context.Background(), "Ada", "ada@example.com", "tok", "203.0.113.9")
	require.NoError(t, err)

	require.NotNil(t, st.created)
	assert.Equal(t, "Ada", st.created.OwnerName)
	assert.Equal(t, "ada@example.com", st.created.OwnerEmail)
	assert.True(t, st.created.Active)
	assert.Equal(t, 500, st.created.DailyQuota)

	// The mailed key round-trips: digest and display prefix match what
	// was stored, and nothing stored can reproduce the key.
	require.Equal(t, 1, m.calls)
	assert.True(t, strings.HasPrefix(m.rawKey, gate.KeyPrefix))
	assert.Equal(t, gate.Digest(m.rawKey), st.created.KeyDigest)
	assert.Equal(t, gate.DisplayPrefix(m.rawKey), st.created.KeyPrefix)
	assert.NotEqual(t, m.rawKey, st.created.KeyDigest)
}

func TestRegister_ExistingEmailIsSilentNoop(t *testing.T) {
	st := &keyStore{hasActive: true}
	m := &recordingMailer{}
	issuer := gate.NewIssuer(st, m, turnstile.NoopVerifier{}, 500)

	err := issuer.Register(context.Background(), "Ada", "ada@example.com", "tok", "")
	require.NoError(t, err, "re-registration must be indistinguishable from success")

	assert.Nil(t, st.created, "no second key may be created")
	assert.Equal(t, 0, m.calls, "no mail goes out for an already-registered address")
}

func TestRegister_TurnstileFailureShortCircuits(t *testing.T) {
	st := &keyStore{}
	m := &recordingMailer{}
	issuer := gate.NewIssuer(st, m, rejectingVerifier{err: turnstile.ErrTokenInvalid}, 500)

	err := issuer.Register(context.Background(), "Ada", "ada@example.com", "bad", "")
	assert.ErrorIs(t, err, turnstile.ErrTokenInvalid)
	assert.Nil(t, st.created)
	assert.Equal(t, "", st.hasEmail, "verification failures must not touch the store")
}

func TestRegister_MailFailureRevokesKey(t *testing.T) {
	st := &keyStore{}
	m := &recordingMailer{err: errors.New("relay down")}
	issuer := gate.NewIssuer(st, m, turnstile.NoopVerifier{}, 500)

	err := issuer.Register(context.Background(), "Ada", "ada@example.com", "tok", "")
	require.Error(t, err)

	require.NotNil(t, st.created)
	assert.Equal(t, 1, st.deactCalls, "an undeliverable key must be revoked")
	assert.Equal(t, st.created.ID, st.deactID)
}
