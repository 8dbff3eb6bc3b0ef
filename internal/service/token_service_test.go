package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasukras-star/apotikme-api/internal/models"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService("secret")

	token, err := svc.IssueToken("apv-1", models.RoleApprover, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "apv-1", claims.UserID)
	assert.Equal(t, models.RoleApprover, claims.Role)
}

func TestTokenServiceRejectsInvalidTokens(t *testing.T) {
	svc := NewTokenService("secret")

	other, err := NewTokenService("other").IssueToken("apv-1", models.RoleApprover, time.Hour)
	require.NoError(t, err)
	expired, err := svc.IssueToken("apv-1", models.RoleApprover, -time.Minute)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, models.JWTClaims{UserID: "apv-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{"wrong secret": other, "expired": expired, "unsigned": none, "garbage": "abc"} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
		})
	}
}
