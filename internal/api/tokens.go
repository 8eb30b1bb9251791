package api

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// TokenStore persists the access/refresh pair apart from the session identity.
//
// Load returns (nil, nil) when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
	Clear(ctx context.Context) error
}

// NewToken builds an [oauth2.Token] for the pair, filling Expiry from the access token's exp claim.
func NewToken(access, refresh string) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
	if exp, ok := AccessTokenExpiry(access); ok {
		tok.Expiry = exp
	}
	return tok
}

// AccessTokenExpiry decodes the exp claim without verifying the signature.
//
// Opaque or malformed tokens report ok == false.
func AccessTokenExpiry(access string) (time.Time, bool) {
	if access == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether tok's known expiry is at or before now. Tokens without an expiry never expire locally.
func Expired(tok *oauth2.Token, now time.Time) bool {
	if tok == nil || tok.Expiry.IsZero() {
		return false
	}
	return !now.Before(tok.Expiry)
}

// MemoryTokens is a process-local [TokenStore].
type MemoryTokens struct {
	mu  sync.Mutex
	tok *oauth2.Token
}

func NewMemoryTokens(tok *oauth2.Token) *MemoryTokens {
	return &MemoryTokens{tok: tok}
}

func (m *MemoryTokens) Load(context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return nil, nil
	}
	cp := *m.tok
	return &cp, nil
}

func (m *MemoryTokens) Save(_ context.Context, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok == nil {
		m.tok = nil
		return nil
	}
	cp := *tok
	m.tok = &cp
	return nil
}

func (m *MemoryTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = nil
	return nil
}
