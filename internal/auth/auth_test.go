package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken_RoundTrip(t *testing.T) {
	service := NewService("test-secret")
	service.RegisterAPICredentials("key", "secret", "org-a", "agent-key")

	token, err := service.GenerateToken(Credentials{APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)

	claims, err := service.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "org-a", claims.OrgID)
	assert.Equal(t, "agent-key", claims.Agent)
}

func TestGenerateToken_InvalidCredentials(t *testing.T) {
	service := NewService("test-secret")
	service.RegisterAPICredentials("key", "secret", "org-a", "agent-key")

	_, err := service.GenerateToken(Credentials{APIKey: "key", APISecret: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.GenerateToken(Credentials{APIKey: "unknown", APISecret: "secret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := NewService("secret-one")
	issuer.RegisterAPICredentials("key", "secret", "org-a", "agent-key")

	token, err := issuer.GenerateToken(Credentials{APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)

	verifier := NewService("secret-two")
	_, err = verifier.ValidateToken(token.Token)
	assert.Error(t, err)
}
