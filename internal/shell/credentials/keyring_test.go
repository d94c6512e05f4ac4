package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestSetAndGetToken(t *testing.T) {
	keyring.MockInit()

	require.NoError(t, SetToken("secret-token"))

	token, err := GetToken()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)
}

func TestSetToken_Empty(t *testing.T) {
	keyring.MockInit()

	assert.Error(t, SetToken(""))
}

func TestGetToken_NotStored(t *testing.T) {
	keyring.MockInit()

	_, err := GetToken()
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestClearToken(t *testing.T) {
	keyring.MockInit()

	require.NoError(t, SetToken("secret-token"))
	require.NoError(t, ClearToken())

	_, err := GetToken()
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestClearToken_NotStored(t *testing.T) {
	keyring.MockInit()

	assert.NoError(t, ClearToken())
}
