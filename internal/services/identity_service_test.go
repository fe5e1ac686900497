package services

import (
	"context"
	"testing"

	"complaintdesk/internal/config"
	"complaintdesk/internal/observability"
	contextutils "complaintdesk/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdentityService(t *testing.T) *IdentityService {
	t.Helper()
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	svc, err := NewIdentityService(nil, logger, "test-passphrase-not-for-production", nil)
	require.NoError(t, err)
	return svc
}

func TestNewIdentityServiceRequiresPassphrase(t *testing.T) {
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	_, err := NewIdentityService(nil, logger, "", nil)
	require.Error(t, err)
}

func TestAnonymizeRoundTrip(t *testing.T) {
	svc := newTestIdentityService(t)
	ctx := context.Background()

	token, err := svc.Anonymize(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	matches, err := svc.Matches(ctx, token, 42)
	require.NoError(t, err)
	assert.True(t, matches)

	matches, err = svc.Matches(ctx, token, 43)
	require.NoError(t, err)
	assert.False(t, matches)
}

func TestAnonymizeIsUnlinkable(t *testing.T) {
	svc := newTestIdentityService(t)
	ctx := context.Background()

	first, err := svc.Anonymize(ctx, 42)
	require.NoError(t, err)
	second, err := svc.Anonymize(ctx, 42)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "repeated anonymizations of the same student must be unlinkable")

	for _, token := range []string{first, second} {
		matches, merr := svc.Matches(ctx, token, 42)
		require.NoError(t, merr)
		assert.True(t, matches)
	}
}

func TestMatchesCorruptToken(t *testing.T) {
	svc := newTestIdentityService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "!!not-base64!!"},
		{name: "too short", token: "AAAA"},
		{name: "tampered ciphertext", token: func() string {
			token, err := svc.Anonymize(ctx, 42)
			require.NoError(t, err)
			b := []byte(token)
			b[len(b)-1] ^= 1
			return string(b)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Matches(ctx, tt.token, 42)
			require.Error(t, err)
			assert.Equal(t, contextutils.ErrorCodeCorruptToken, contextutils.GetErrorCode(err))
		})
	}
}

func TestTokensFromDifferentKeysDoNotDecrypt(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	first, err := NewIdentityService(nil, logger, "passphrase-one", nil)
	require.NoError(t, err)
	second, err := NewIdentityService(nil, logger, "passphrase-two", nil)
	require.NoError(t, err)

	token, err := first.Anonymize(ctx, 42)
	require.NoError(t, err)

	_, err = second.Matches(ctx, token, 42)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeCorruptToken, contextutils.GetErrorCode(err))
}
