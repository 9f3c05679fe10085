package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_SignVerify(t *testing.T) {
	svc := NewService([]byte("test-secret"))

	tok, err := svc.Sign("u1", "Alice", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.CurrentUserID())
	assert.Equal(t, "Alice", claims.CurrentDisplayName())
	assert.False(t, claims.Guest)
}

func TestService_Verify_Rejects(t *testing.T) {
	svc := NewService([]byte("test-secret"))
	other := NewService([]byte("other-secret"))

	foreign, err := other.Sign("u1", "Alice", time.Hour)
	require.NoError(t, err)

	expired, err := svc.Sign("u1", "Alice", -time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: foreign},
		{name: "expired", token: expired},
		{name: "empty", token: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Verify(tc.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestService_SignGuest(t *testing.T) {
	svc := NewService([]byte("test-secret"))
	tok, err := svc.SignGuest("g1", "Guest", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.True(t, claims.Guest)
}
