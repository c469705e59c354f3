package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setAuthTestConfig(t *testing.T) {
	t.Helper()
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 24)
}

func TestPasswordHashing(t *testing.T) {
	setAuthTestConfig(t)

	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotContains(t, hash, "correct horse battery")

	assert.True(t, VerifyPassword("correct horse battery", hash))
	assert.False(t, VerifyPassword("wrong password", hash))
	assert.False(t, VerifyPassword("correct horse battery", "garbage"))

	// a fresh salt produces a different stored form
	again, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestAuthService_Login(t *testing.T) {
	setAuthTestConfig(t)

	hash, err := HashPassword("password123")
	require.NoError(t, err)
	viper.Set("admin.username", "admin")
	viper.Set("admin.password_hash", hash)

	service := NewAuthService(nil)

	doLogin := func(body any) *httptest.ResponseRecorder {
		payload, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		service.Login(rec, req)
		return rec
	}

	t.Run("valid credentials issue a token", func(t *testing.T) {
		rec := doLogin(LoginRequest{Username: "admin", Password: "password123"})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp AuthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		rec := doLogin(LoginRequest{Username: "admin", Password: "password124"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown username is rejected", func(t *testing.T) {
		rec := doLogin(LoginRequest{Username: "root", Password: "password123"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		rec := doLogin(map[string]string{"username": "admin"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
