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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/gcsutil/testing/testauth"
	"golang.org/x/oauth2"
)

var epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func TestGuardRefreshBoundary(t *testing.T) {
	const lifetime = time.Hour
	tcs := []struct {
		name        string
		age         time.Duration
		wantRefresh bool
	}{
		{name: "fresh", age: time.Minute},
		{name: "61s before expiry", age: lifetime - 61*time.Second},
		{name: "exactly at margin", age: lifetime - 60*time.Second, wantRefresh: true},
		{name: "59s before expiry", age: lifetime - 59*time.Second, wantRefresh: true},
		{name: "expired", age: 2 * lifetime, wantRefresh: true},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			now := epoch.Add(tc.age)
			a := &testauth.Authorizer{
				Token:    "initial",
				Issued:   epoch,
				Lifetime: lifetime,
				Clock:    func() time.Time { return now },
			}
			g := &Guard{Authorizer: a, Now: func() time.Time { return now }}
			got, err := g.AccessToken(context.Background())
			if err != nil {
				t.Fatalf("AccessToken() = _, %v, want nil", err)
			}
			if refreshed := a.Refreshes == 1; refreshed != tc.wantRefresh {
				t.Fatalf("AccessToken() refreshed = %v, want %v", refreshed, tc.wantRefresh)
			}
			want := "initial"
			if tc.wantRefresh {
				want = "refreshed-1"
			}
			if got != want {
				t.Errorf("AccessToken() = %q, want %q", got, want)
			}
		})
	}
}

func TestGuardRefreshError(t *testing.T) {
	wantErr := errors.New("token endpoint down")
	a := &testauth.Authorizer{Token: "old", Issued: epoch, Lifetime: time.Minute, RefreshErr: wantErr}
	g := &Guard{Authorizer: a, Now: func() time.Time { return epoch.Add(time.Hour) }}
	if _, err := g.AccessToken(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("AccessToken() = _, %v, want %v", err, wantErr)
	}
}

func TestGuardTokenSource(t *testing.T) {
	a := &testauth.Authorizer{Token: "tok", Issued: epoch, Lifetime: time.Hour}
	g := &Guard{Authorizer: a, Now: func() time.Time { return epoch }}
	var src oauth2.TokenSource = g
	tok, err := src.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "tok" || tok.TokenType != "Bearer" {
		t.Errorf("Token() = %+v, want bearer token \"tok\"", tok)
	}
	if want := epoch.Add(time.Hour - DefaultMargin); !tok.Expiry.Equal(want) {
		t.Errorf("Token().Expiry = %v, want %v", tok.Expiry, want)
	}
}

type countingSource struct {
	toks  []*oauth2.Token
	calls int
}

func (s *countingSource) Token() (*oauth2.Token, error) {
	tok := s.toks[s.calls]
	if s.calls < len(s.toks)-1 {
		s.calls++
	}
	return tok, nil
}

func TestTokenSourceAuthorizer(t *testing.T) {
	now := epoch
	first := &oauth2.Token{AccessToken: "a", Expiry: epoch.Add(time.Hour)}
	second := &oauth2.Token{AccessToken: "b", Expiry: epoch.Add(3 * time.Hour)}
	src := &countingSource{toks: []*oauth2.Token{first, first, second}}
	a, err := NewTokenSourceAuthorizer(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	a.now = func() time.Time { return now }
	a.issuedAt = epoch
	if got := a.AccessToken(); got != "a" {
		t.Errorf("AccessToken() = %q, want \"a\"", got)
	}
	if got := a.ExpiresIn(); got != time.Hour {
		t.Errorf("ExpiresIn() = %v, want 1h", got)
	}

	// A cached token keeps its original issue time.
	now = epoch.Add(30 * time.Minute)
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !a.IssuedAt().Equal(epoch) {
		t.Errorf("IssuedAt() = %v, want %v", a.IssuedAt(), epoch)
	}

	now = epoch.Add(time.Hour)
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := a.AccessToken(); got != "b" {
		t.Errorf("AccessToken() = %q, want \"b\"", got)
	}
	if got := a.ExpiresIn(); got != 2*time.Hour {
		t.Errorf("ExpiresIn() = %v, want 2h", got)
	}
}

// expiringSource issues a new token on every call, each valid for the next lifetime in turn.
type expiringSource struct {
	lifetimes []time.Duration
	calls     int
}

func (s *expiringSource) Token() (*oauth2.Token, error) {
	life := s.lifetimes[min(s.calls, len(s.lifetimes)-1)]
	s.calls++
	return &oauth2.Token{AccessToken: fmt.Sprintf("t%d", s.calls), Expiry: time.Now().Add(life)}, nil
}

func TestGuardRenewsCachingSource(t *testing.T) {
	ctx := context.Background()
	base := &expiringSource{lifetimes: []time.Duration{30 * time.Second, time.Hour}}
	// Credentials from oauth2/google come wrapped like this and renew only 10s before expiry.
	a, err := NewTokenSourceAuthorizer(ctx, oauth2.ReuseTokenSource(nil, base))
	if err != nil {
		t.Fatal(err)
	}
	g := NewGuard(a)
	if !g.Stale() {
		t.Fatal("Stale() = false for a token 30s from expiry, want true")
	}
	for i := 0; i < 2; i++ {
		got, err := g.AccessToken(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got != "t2" {
			t.Errorf("AccessToken() #%d = %q, want \"t2\"", i, got)
		}
	}
	if base.calls != 2 {
		t.Errorf("token source called %d times, want 2", base.calls)
	}
	if g.Stale() {
		t.Error("Stale() = true after refresh, want false")
	}
}

func TestScopeURL(t *testing.T) {
	tcs := []struct {
		scope string
		want  string
	}{
		{scope: DefaultScope, want: "https://www.googleapis.com/auth/cloud-platform"},
		{scope: "devstorage.read_only", want: "https://www.googleapis.com/auth/devstorage.read_only"},
		{scope: "https://www.googleapis.com/auth/devstorage.full_control", want: "https://www.googleapis.com/auth/devstorage.full_control"},
	}
	for _, tc := range tcs {
		if got := ScopeURL(tc.scope); got != tc.want {
			t.Errorf("ScopeURL(%q) = %q, want %q", tc.scope, got, tc.want)
		}
	}
}

func TestStaticTokenNeverStale(t *testing.T) {
	a, err := NewTokenSourceAuthorizer(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "s"}))
	if err != nil {
		t.Fatal(err)
	}
	g := &Guard{Authorizer: a, Now: func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }}
	if g.Stale() {
		t.Error("Stale() = true for a token without expiry, want false")
	}
}
