package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService(t *testing.T) {
	t.Run("Generated token verifies back to the same user", func(t *testing.T) {
		auth := NewAuthService("test-secret")

		token, err := auth.GenerateToken("alice")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		userID, err := auth.VerifyToken(token)

		require.NoError(t, err)
		assert.Equal(t, "alice", userID)
	})

	t.Run("Token signed with another secret is rejected", func(t *testing.T) {
		token, err := NewAuthService("secret-one").GenerateToken("alice")
		require.NoError(t, err)

		_, err = NewAuthService("secret-two").VerifyToken(token)

		require.Error(t, err)
	})

	t.Run("Garbage token is rejected", func(t *testing.T) {
		auth := NewAuthService("test-secret")

		_, err := auth.VerifyToken("not.a.token")

		require.Error(t, err)
	})
}
