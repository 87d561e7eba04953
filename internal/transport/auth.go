package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrNoCredentials = errors.New("missing credentials")
	ErrBadToken      = errors.New("token signature mismatch")
)

// Authenticator resolves the caller's player identity before the
// websocket upgrade. The gateway treats player ids as opaque; it
// never looks at accounts or profiles.
type Authenticator interface {
	Authenticate(r *http.Request) (playerID string, err error)
}

// TokenAuth verifies tokens of the form "<playerId>.<hex mac>" where
// the mac is HMAC-SHA256 over the player id. Whoever mints tokens
// shares the secret; the gateway only checks signatures.
type TokenAuth struct {
	secret []byte
}

func NewTokenAuth(secret string) *TokenAuth {
	return &TokenAuth{secret: []byte(secret)}
}

// MintToken signs a player id. Used by tests and local tooling.
func (t *TokenAuth) MintToken(playerID string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(playerID))
	return playerID + "." + hex.EncodeToString(mac.Sum(nil))
}

func (t *TokenAuth) Authenticate(r *http.Request) (string, error) {
	tok := bearerToken(r)
	if tok == "" {
		return "", ErrNoCredentials
	}
	i := strings.LastIndexByte(tok, '.')
	if i <= 0 {
		return "", ErrBadToken
	}
	player, sig := tok[:i], tok[i+1:]
	want, err := hex.DecodeString(sig)
	if err != nil {
		return "", ErrBadToken
	}
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(player))
	if !hmac.Equal(want, mac.Sum(nil)) {
		return "", ErrBadToken
	}
	return player, nil
}

// bearerToken reads the Authorization header, falling back to the
// token query parameter for browser websocket clients that cannot set
// headers during the handshake.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// OpenAuth trusts the player query parameter outright. Development
// and local play only.
type OpenAuth struct{}

func (OpenAuth) Authenticate(r *http.Request) (string, error) {
	p := strings.TrimSpace(r.URL.Query().Get("player"))
	if p == "" {
		return "", ErrNoCredentials
	}
	return p, nil
}
