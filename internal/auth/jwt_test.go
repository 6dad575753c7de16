package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/holiday-postcards/internal/apperror"
)

// newTestKey generates a throwaway RSA key and returns it with its PEM
// encoding escaped the way it appears in a single-line env var.
func newTestKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	block := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, strings.ReplaceAll(string(block), "\n", `\n`)
}

func TestNormalizePrivateKey(t *testing.T) {
	got := NormalizePrivateKey(`-----BEGIN-----\nabc\n-----END-----\n`)
	assert.Equal(t, "-----BEGIN-----\nabc\n-----END-----\n", got)
}

func TestServiceAccountValidate(t *testing.T) {
	tests := []struct {
		name    string
		account ServiceAccount
		wantMsg string
	}{
		{
			name:    "missing email",
			account: ServiceAccount{PrivateKey: "key"},
			wantMsg: "GOOGLE_SERVICE_ACCOUNT_EMAIL",
		},
		{
			name:    "missing key",
			account: ServiceAccount{Email: "sa@example.iam.gserviceaccount.com"},
			wantMsg: "GOOGLE_SERVICE_ACCOUNT_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSignAssertion_Claims(t *testing.T) {
	key, escaped := newTestKey(t)
	account := ServiceAccount{
		Email:      "sa@example.iam.gserviceaccount.com",
		PrivateKey: escaped,
		TokenURL:   "https://token.example.test/token",
	}
	now := time.Unix(1_700_000_000, 0)

	signed, err := account.SignAssertion(now)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(signed, "."), "assertion must be a compact three-part JWT")

	parsed, err := jwt.Parse(signed,
		func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	require.NoError(t, err)

	assert.Equal(t, "JWT", parsed.Header["typ"])
	assert.Equal(t, "RS256", parsed.Header["alg"])

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, account.Email, claims["iss"])
	assert.Equal(t, SheetsScope, claims["scope"])
	assert.Equal(t, account.TokenURL, claims["aud"])
	assert.EqualValues(t, now.Unix(), claims["iat"])
	assert.EqualValues(t, now.Unix()+3600, claims["exp"])
}

func TestSignAssertion_DefaultAudience(t *testing.T) {
	key, escaped := newTestKey(t)
	account := ServiceAccount{Email: "sa@example.iam.gserviceaccount.com", PrivateKey: escaped}

	signed, err := account.SignAssertion(time.Now())
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(*jwt.Token) (any, error) { return &key.PublicKey, nil })
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenURL, parsed.Claims.(jwt.MapClaims)["aud"])
}

func TestSignAssertion_BadKey(t *testing.T) {
	account := ServiceAccount{Email: "sa@example.iam.gserviceaccount.com", PrivateKey: "not a pem"}

	_, err := account.SignAssertion(time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrAuth))
}
