// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

// DefaultScope is the OAuth2 scope requested when none is configured.
const DefaultScope = "cloud-platform"

// ScopeURL expands a short scope name such as "devstorage.read_only" into its URL form. A scope
// that is already a URL is returned unchanged.
func ScopeURL(scope string) string {
	if strings.HasPrefix(scope, "https://") {
		return scope
	}
	return "https://www.googleapis.com/auth/" + scope
}

// TokenSourceAuthorizer implements Authorizer on top of an oauth2.TokenSource.
type TokenSourceAuthorizer struct {
	src oauth2.TokenSource
	now func() time.Time

	mu       sync.Mutex
	tok      *oauth2.Token
	issuedAt time.Time
}

// NewTokenSourceAuthorizer returns an Authorizer over src that already holds its first token.
// Caching sources from oauth2 only renew shortly before expiry, so src is rewrapped to renew
// DefaultMargin ahead, where the Guard starts asking for a new token.
func NewTokenSourceAuthorizer(ctx context.Context, src oauth2.TokenSource) (*TokenSourceAuthorizer, error) {
	src = oauth2.ReuseTokenSourceWithExpiry(nil, src, DefaultMargin)
	a := &TokenSourceAuthorizer{src: src, now: time.Now}
	if err := a.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("could not fetch initial access token: %w", err)
	}
	return a, nil
}

// FromServiceAccountKey returns an Authorizer that signs JWT assertions as the given service
// account with its PEM-encoded private key.
func FromServiceAccountKey(ctx context.Context, email string, privateKey []byte, scope string) (*TokenSourceAuthorizer, error) {
	conf := &jwt.Config{
		Email:      email,
		PrivateKey: privateKey,
		Scopes:     []string{ScopeURL(scope)},
		TokenURL:   google.JWTTokenURL,
	}
	return NewTokenSourceAuthorizer(ctx, conf.TokenSource(ctx))
}

// FromCredentialsFile returns an Authorizer for a JSON credentials file, either a service account
// key or authorized user credentials.
func FromCredentialsFile(ctx context.Context, path string, scope string) (*TokenSourceAuthorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read credentials %q: %w", path, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, ScopeURL(scope))
	if err != nil {
		return nil, fmt.Errorf("could not parse credentials %q: %w", path, err)
	}
	return NewTokenSourceAuthorizer(ctx, creds.TokenSource)
}

// FromDefaultCredentials returns an Authorizer for the application default credentials.
func FromDefaultCredentials(ctx context.Context, scope string) (*TokenSourceAuthorizer, error) {
	src, err := google.DefaultTokenSource(ctx, ScopeURL(scope))
	if err != nil {
		return nil, fmt.Errorf("could not find default credentials: %w", err)
	}
	return NewTokenSourceAuthorizer(ctx, src)
}

// AccessToken returns the current bearer token.
func (a *TokenSourceAuthorizer) AccessToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tok.AccessToken
}

// IssuedAt returns when the current token was first observed.
func (a *TokenSourceAuthorizer) IssuedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.issuedAt
}

// ExpiresIn returns the current token's lifetime measured from IssuedAt.
func (a *TokenSourceAuthorizer) ExpiresIn() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tok.Expiry.IsZero() {
		return neverExpires
	}
	return a.tok.Expiry.Sub(a.issuedAt)
}

// Refresh asks the token source for a token. Token sources that cache may hand back the current
// token until their own refresh window, in which case IssuedAt is left alone.
func (a *TokenSourceAuthorizer) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tok, err := a.src.Token()
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tok != nil && a.tok.AccessToken == tok.AccessToken && a.tok.Expiry.Equal(tok.Expiry) {
		return nil
	}
	a.tok = tok
	a.issuedAt = a.now()
	return nil
}
