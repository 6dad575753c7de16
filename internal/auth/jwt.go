// Package auth obtains Google OAuth2 access tokens for a service account
// and guards the admin-only endpoints.
//
// SERVICE-ACCOUNT FLOW (RFC 7523, JWT bearer grant):
//  1. Build a short-lived JWT "assertion" describing who we are (iss), what we
//     want (scope) and who it is for (aud = the token endpoint).
//  2. Sign it with the service account's RSA private key (RS256).
//  3. POST it to the token endpoint with
//     grant_type=urn:ietf:params:oauth:grant-type:jwt-bearer.
//  4. The endpoint answers with a bearer access_token valid for expires_in
//     seconds, which we cache until shortly before it expires.
//
// The assertion is a compact JWT:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"RS256","typ":"JWT"}
//	- Payload: {"iss":"sa@project.iam.gserviceaccount.com","scope":"...","aud":"...","iat":...,"exp":...}
//	- Signature: RSA-SHA256(header+"."+payload, privateKey)
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/holiday-postcards/internal/apperror"
)

const (
	// DefaultTokenURL is Google's OAuth2 token endpoint. It is also the
	// audience of the assertion.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	// SheetsScope grants read/write access to spreadsheets.
	SheetsScope = "https://www.googleapis.com/auth/spreadsheets"

	// assertionLifetime is the validity window requested in the assertion.
	assertionLifetime = time.Hour
)

// ServiceAccount identifies the Google service account used for the
// spreadsheet store.
type ServiceAccount struct {
	Email      string
	PrivateKey string // PEM, PKCS#1 or PKCS#8
	Scope      string
	TokenURL   string
}

// NormalizePrivateKey turns the literal two-character sequence `\n`, as
// found in single-line environment variables, back into newlines.
func NormalizePrivateKey(raw string) string {
	return strings.ReplaceAll(raw, `\n`, "\n")
}

func (a ServiceAccount) tokenURL() string {
	if a.TokenURL == "" {
		return DefaultTokenURL
	}
	return a.TokenURL
}

func (a ServiceAccount) scope() string {
	if a.Scope == "" {
		return SheetsScope
	}
	return a.Scope
}

// Validate reports missing credentials before any network call is made.
func (a ServiceAccount) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return apperror.MissingConfig("Missing GOOGLE_SERVICE_ACCOUNT_EMAIL environment variable.")
	}
	if strings.TrimSpace(a.PrivateKey) == "" {
		return apperror.MissingConfig("Missing GOOGLE_SERVICE_ACCOUNT_KEY environment variable.")
	}
	return nil
}

// SignAssertion builds and signs the JWT bearer assertion, issued at now
// and expiring one hour later.
func (a ServiceAccount) SignAssertion(now time.Time) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(NormalizePrivateKey(a.PrivateKey)))
	if err != nil {
		return "", apperror.AuthFailed("Invalid GOOGLE_SERVICE_ACCOUNT_KEY: "+err.Error(), err)
	}

	iat := now.Unix()
	claims := jwt.MapClaims{
		"iss":   a.Email,
		"scope": a.scope(),
		"aud":   a.tokenURL(),
		"iat":   iat,
		"exp":   iat + int64(assertionLifetime/time.Second),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("auth: signing assertion: %w", err)
	}
	return signed, nil
}
