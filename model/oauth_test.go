package model

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOAuthClientLifecycle(t *testing.T) {
	setupTestDB(t)

	client := &OAuthClient{Secret: "s3cret", Name: "tournament-tool", OwnerId: 1}
	require.NoError(t, CreateOAuthClient(client))
	require.NotZero(t, client.Id)

	clients, err := GetOAuthClientsByOwner(1)
	require.NoError(t, err)
	require.Len(t, clients, 1)

	// Deleting someone else's app is a not-found, not a silent success.
	require.ErrorIs(t, DeleteOAuthClient(2, client.Id), gorm.ErrRecordNotFound)

	require.NoError(t, DeleteOAuthClient(1, client.Id))
	clients, err = GetOAuthClientsByOwner(1)
	require.NoError(t, err)
	require.Empty(t, clients)
}

func TestListTokensByClient(t *testing.T) {
	setupTestDB(t)

	_, err := CreateOAuthToken(1, "api_key", "jti-1", "refresh-1", []string{"public"})
	require.NoError(t, err)
	_, err = CreateOAuthToken(1, "5", "jti-2", "refresh-2", []string{"*"})
	require.NoError(t, err)

	keys, err := ListTokensByClient(1, "api_key")
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, DeleteTokenById(1, keys[0].Id))
	require.ErrorIs(t, DeleteTokenById(1, keys[0].Id), gorm.ErrRecordNotFound)
}
