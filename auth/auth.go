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

// Package auth provides access tokens for calls that bypass the generated storage client.
package auth

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// DefaultMargin is how long before its nominal expiry a token is already considered stale, to
// absorb clock skew between this host and the token issuer.
const DefaultMargin = 60 * time.Second

// neverExpires is the lifetime reported for tokens without an expiry.
const neverExpires = time.Duration(math.MaxInt64)

// Authorizer holds an OAuth2 access token and knows how to replace it.
type Authorizer interface {
	// AccessToken returns the current bearer token.
	AccessToken() string
	// IssuedAt returns when the current token was obtained.
	IssuedAt() time.Time
	// ExpiresIn returns the lifetime of the current token measured from IssuedAt.
	ExpiresIn() time.Duration
	// Refresh replaces the current token. It is safe to call more than once.
	Refresh(ctx context.Context) error
}

// Guard hands out access tokens from an Authorizer, refreshing them first when they are too close
// to expiry. Refreshes are serialized.
type Guard struct {
	Authorizer Authorizer
	// Margin defaults to DefaultMargin when zero.
	Margin time.Duration
	// Now defaults to time.Now when nil.
	Now func() time.Time

	mu sync.Mutex
}

// NewGuard returns a Guard over a with the default margin and clock.
func NewGuard(a Authorizer) *Guard {
	return &Guard{Authorizer: a}
}

func (g *Guard) margin() time.Duration {
	if g.Margin == 0 {
		return DefaultMargin
	}
	return g.Margin
}

func (g *Guard) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// Stale returns whether the Authorizer's current token must be refreshed before use.
func (g *Guard) Stale() bool {
	age := g.now().Sub(g.Authorizer.IssuedAt())
	return age >= g.Authorizer.ExpiresIn()-g.margin()
}

// AccessToken returns a bearer token that is valid for at least the guard's margin.
func (g *Guard) AccessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Stale() {
		if err := g.Authorizer.Refresh(ctx); err != nil {
			return "", err
		}
	}
	return g.Authorizer.AccessToken(), nil
}

// Token implements oauth2.TokenSource so that the generated API client shares the guarded token.
func (g *Guard) Token() (*oauth2.Token, error) {
	s, err := g.AccessToken(context.Background())
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: s, TokenType: "Bearer"}
	if exp := g.Authorizer.ExpiresIn(); exp != neverExpires {
		tok.Expiry = g.Authorizer.IssuedAt().Add(exp - g.margin())
	}
	return tok, nil
}
