package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullAuthLifecycle(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	username := UniqueID("auth")
	password := "testpass1234"

	// 1. First login → auto-registers, returns token.
	token1, accountID := ts.Login(t, username, password)
	require.NotEmpty(t, token1)
	require.Greater(t, accountID, int64(0))

	// 2. List characters → empty.
	resp := ts.Get(t, "/api/characters", token1)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listResult map[string]interface{}
	ReadJSON(t, resp, &listResult)
	chars := listResult["characters"].([]interface{})
	assert.Empty(t, chars)

	// 3. Create a character.
	charID := ts.CreateCharacter(t, token1, UniqueID("Hero"))
	require.Greater(t, charID, int64(0))

	// 4. List characters → one entry.
	resp = ts.Get(t, "/api/characters", token1)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ReadJSON(t, resp, &listResult)
	chars = listResult["characters"].([]interface{})
	assert.Len(t, chars, 1)

	// 5. Login again with same credentials → same account, new token.
	// Small delay to ensure different JWT timestamps.
	time.Sleep(1100 * time.Millisecond)
	token2, accountID2 := ts.Login(t, username, password)
	assert.Equal(t, accountID, accountID2)
	assert.NotEqual(t, token1, token2)

	// 6. New token works.
	resp = ts.Get(t, "/api/characters", token2)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 7. Logout with token2 → token2 invalidated.
	resp = ts.PostJSON(t, "/api/auth/logout", nil, token2)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/characters", token2)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestWSRejectsBadToken(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ws?token=garbage")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeleteCharacterRequiresPassword(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	username := UniqueID("del")
	token, _ := ts.Login(t, username, "delpass456")
	charID := ts.CreateCharacter(t, token, UniqueID("Doomed"))

	resp := ts.Delete(t, charDeletePath(charID), map[string]string{"password": "wrong"}, token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Delete(t, charDeletePath(charID), map[string]string{"password": "delpass456"}, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
