// Package auth verifies third-party login credentials: Google ID tokens and
// Telegram login widget payloads. Both verifiers are black boxes to the rest
// of the system: they either return a verified identity or reject.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GoogleCertsURL serves Google's current ID-token signing keys (JWKS).
const GoogleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

// ErrInvalidGoogleToken indicates the ID token failed signature, audience,
// issuer, or expiry checks.
var ErrInvalidGoogleToken = errors.New("invalid google id token")

// GoogleIdentity is the verified subset of an ID token's claims the system
// uses.
type GoogleIdentity struct {
	Sub   string
	Email string
	Name  string
}

// GoogleVerifier validates a Google ID token and extracts the identity.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (GoogleIdentity, error)
}

// GoogleTokenVerifier verifies RS256 ID tokens against Google's published
// JWKS, with an in-memory key cache refreshed on unknown key ids.
type GoogleTokenVerifier struct {
	ClientID string
	CertsURL string
	HTTP     *http.Client

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

// NewGoogleVerifier constructs a verifier for the given OAuth web client id.
func NewGoogleVerifier(clientID string) *GoogleTokenVerifier {
	return &GoogleTokenVerifier{
		ClientID: clientID,
		CertsURL: GoogleCertsURL,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
	}
}

type googleClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Verify checks signature, issuer, audience, and expiry, and returns the
// token's identity claims. All failures map to ErrInvalidGoogleToken except
// JWKS fetch errors, which surface as-is so callers can report a 5xx.
func (v *GoogleTokenVerifier) Verify(ctx context.Context, idToken string) (GoogleIdentity, error) {
	claims := &googleClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrInvalidGoogleToken
		}
		return v.keyFor(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.ClientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return GoogleIdentity{}, ErrInvalidGoogleToken
	}
	switch claims.Issuer {
	case "accounts.google.com", "https://accounts.google.com":
	default:
		return GoogleIdentity{}, ErrInvalidGoogleToken
	}
	if claims.Subject == "" {
		return GoogleIdentity{}, ErrInvalidGoogleToken
	}
	return GoogleIdentity{Sub: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// keyFor returns the cached public key for kid, refreshing the JWKS when the
// kid is unknown or the cache is older than an hour.
func (v *GoogleTokenVerifier) keyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if key, ok := v.keys[kid]; ok && time.Since(v.fetched) < time.Hour {
		return key, nil
	}
	if err := v.refreshLocked(ctx); err != nil {
		return nil, err
	}
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, ErrInvalidGoogleToken
}

func (v *GoogleTokenVerifier) refreshLocked(ctx context.Context) error {
	url := v.CertsURL
	if url == "" {
		url = GoogleCertsURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := v.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks fetch: unexpected status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("jwks fetch: no usable keys")
	}
	v.keys = keys
	v.fetched = time.Now()
	return nil
}

func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
