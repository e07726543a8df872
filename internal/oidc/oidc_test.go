package oidc

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "http://keycloak.test/realms/farmtrack"
	testClientID = "farmtrack-api"
)

func signed(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return raw
}

func TestVerifierResolvesSubject(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := FromKeySet(testIssuer, testClientID, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}})

	now := time.Now()
	good := signed(t, key, jwt.MapClaims{
		"iss": testIssuer,
		"aud": testClientID,
		"sub": "farmer-42",
		"iat": now.Unix(),
		"exp": now.Add(time.Minute).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+good)
	uid, err := v.Resolver().Resolve(req)
	require.NoError(t, err)
	require.Equal(t, "farmer-42", uid)
}

func TestVerifierRejects(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := FromKeySet(testIssuer, testClientID, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}})

	now := time.Now()
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss": testIssuer,
			"aud": testClientID,
			"sub": "farmer-42",
			"iat": now.Unix(),
			"exp": now.Add(time.Minute).Unix(),
		}
	}
	expired := base()
	expired["exp"] = now.Add(-time.Minute).Unix()
	wrongAud := base()
	wrongAud["aud"] = "someone-else"

	cases := map[string]string{
		"foreign key":    signed(t, other, base()),
		"expired":        signed(t, key, expired),
		"wrong audience": signed(t, key, wrongAud),
		"garbage":        "not.a.jwt",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+raw)
			_, err := v.Resolver().Resolve(req)
			require.Error(t, err)
		})
	}
}
