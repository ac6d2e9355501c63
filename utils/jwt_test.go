package utils_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"leadintake/utils"
)

func TestServiceTokenRoundTrip(t *testing.T) {
	token, err := utils.GenerateServiceToken("jwt-secret", "sms-gateway", []string{utils.ScopeIssueTokens}, time.Minute)
	require.NoError(t, err)

	claims, err := utils.ParseServiceToken("jwt-secret", token)
	require.NoError(t, err)
	require.Equal(t, "sms-gateway", claims.Subject)
	require.True(t, claims.HasScope(utils.ScopeIssueTokens))
	require.False(t, claims.HasScope(utils.ScopeReadRecords))
}

func TestServiceTokenRejects(t *testing.T) {
	token, err := utils.GenerateServiceToken("jwt-secret", "dashboard", nil, time.Minute)
	require.NoError(t, err)
	_, err = utils.ParseServiceToken("other-secret", token)
	require.Error(t, err)

	expired, err := utils.GenerateServiceToken("jwt-secret", "dashboard", nil, -time.Minute)
	require.NoError(t, err)
	_, err = utils.ParseServiceToken("jwt-secret", expired)
	require.Error(t, err)
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := utils.GenerateSecureToken()
	require.NoError(t, err)
	b, err := utils.GenerateSecureToken()
	require.NoError(t, err)

	require.Len(t, a, utils.SecureTokenBytes*2)
	require.NotEqual(t, a, b)
}
