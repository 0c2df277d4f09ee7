// ABOUTME: Verifier tests: JWT expiry and claims, static token mint and
// ABOUTME: revocation round trips, chaining, and the HTTP middleware.

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))
	token, err := v.Generate("laptop", time.Hour)
	require.NoError(t, err)

	subject, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "laptop", subject)
}

func TestJWTExpired(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))
	token, err := v.Generate("laptop", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.True(t, errors.Is(err, ErrExpiredToken))
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := NewJWTVerifier([]byte("one")).Generate("laptop", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier([]byte("two")).Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestJWTWrongIssuer(t *testing.T) {
	claims := jwt.MapClaims{
		"iss": "someone-else",
		"sub": "laptop",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTVerifier([]byte("secret")).Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestJWTMissingSubject(t *testing.T) {
	claims := jwt.MapClaims{
		"iss": Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTVerifier([]byte("secret")).Verify(token)
	assert.True(t, errors.Is(err, ErrMissingClaim))
}

func TestStaticMintVerifyRevoke(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	s, err := OpenStaticTokenStore(path)
	require.NoError(t, err)

	raw, err := s.Mint("phone", []string{"messages", "contacts"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "grim_"))

	name, err := s.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "phone", name)
	assert.Equal(t, []string{"messages", "contacts"}, s.CapabilitiesFor("phone"))

	require.NoError(t, s.Revoke("phone"))
	_, err = s.Verify(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestStaticPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	s1, err := OpenStaticTokenStore(path)
	require.NoError(t, err)
	raw, err := s1.Mint("phone", nil)
	require.NoError(t, err)

	s2, err := OpenStaticTokenStore(path)
	require.NoError(t, err)
	name, err := s2.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "phone", name)

	infos := s2.List()
	require.Len(t, infos, 1)
	assert.Equal(t, "phone", infos[0].Name)
	assert.False(t, infos[0].CreatedAt.IsZero())
}

func TestStaticDuplicateName(t *testing.T) {
	s, err := OpenStaticTokenStore(filepath.Join(t.TempDir(), "tokens.yaml"))
	require.NoError(t, err)
	_, err = s.Mint("phone", nil)
	require.NoError(t, err)
	_, err = s.Mint("phone", nil)
	assert.True(t, errors.Is(err, ErrTokenExists))
}

func TestStaticRejectsForeignShapes(t *testing.T) {
	s, err := OpenStaticTokenStore(filepath.Join(t.TempDir(), "tokens.yaml"))
	require.NoError(t, err)
	_, err = s.Verify("eyJhbGciOiJIUzI1NiJ9.e30.x")
	assert.True(t, errors.Is(err, ErrInvalidToken), "JWT shapes skip the bcrypt scan")
}

func TestStaticRevokeUnknown(t *testing.T) {
	s, err := OpenStaticTokenStore(filepath.Join(t.TempDir(), "tokens.yaml"))
	require.NoError(t, err)
	assert.True(t, errors.Is(s.Revoke("ghost"), ErrUnknownToken))
}

func TestChainFirstSuccessWins(t *testing.T) {
	jwtV := NewJWTVerifier([]byte("secret"))
	s, err := OpenStaticTokenStore(filepath.Join(t.TempDir(), "tokens.yaml"))
	require.NoError(t, err)
	raw, err := s.Mint("phone", nil)
	require.NoError(t, err)

	chain := Chain{jwtV, s}

	name, err := chain.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "phone", name)

	jwtToken, err := jwtV.Generate("laptop", time.Hour)
	require.NoError(t, err)
	name, err = chain.Verify(jwtToken)
	require.NoError(t, err)
	assert.Equal(t, "laptop", name)

	_, err = chain.Verify("grim_not-a-real-token")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))
	token, err := v.Generate("laptop", time.Hour)
	require.NoError(t, err)

	var gotSubject string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := IdentityFromContext(r.Context()); ok {
			gotSubject = id.Subject
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token passes", func(t *testing.T) {
		gotSubject = ""
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		Middleware(v, true)(inner).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "laptop", gotSubject)
	})

	t.Run("missing token rejected when required", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Middleware(v, true)(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing token anonymous when optional", func(t *testing.T) {
		gotSubject = ""
		rec := httptest.NewRecorder()
		Middleware(v, false)(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, gotSubject)
	})

	t.Run("bad token rejected even when optional", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		Middleware(v, false)(inner).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
