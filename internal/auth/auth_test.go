package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(sub string) Claims {
	return Claims{
		Email: "owner@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = BearerToken("bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = BearerToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = BearerToken("Basic dXNlcg==")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = BearerToken("Bearer ")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_Valid(t *testing.T) {
	userID := uuid.New()
	v := NewJWTVerifier(testSecret, "authenticated")

	id, err := v.Verify(context.Background(), signToken(t, testSecret, validClaims(userID.String())))
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.Equal(t, "owner@example.com", id.Email)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier(testSecret, "authenticated")
	userID := uuid.New().String()

	expired := validClaims(userID)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongAud := validClaims(userID)
	wrongAud.Audience = jwt.ClaimStrings{"anon"}

	tests := map[string]string{
		"wrong secret":   signToken(t, "other-secret", validClaims(userID)),
		"expired":        signToken(t, testSecret, expired),
		"wrong audience": signToken(t, testSecret, wrongAud),
		"non-uuid sub":   signToken(t, testSecret, validClaims("service_role")),
		"garbage":        "not-a-token",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRemoteVerifier(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"` + userID.String() + `","email":"staff@example.com"}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := NewRemoteVerifier(srv.URL, "anon-key")

	id, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.Equal(t, "staff@example.com", id.Email)

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(context.Background(), "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}
