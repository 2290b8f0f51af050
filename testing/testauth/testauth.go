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

// Package testauth provides a fake auth.Authorizer.
package testauth

import (
	"context"
	"fmt"
	"time"
)

// Authorizer is a fake auth.Authorizer whose refreshes mint sequentially numbered tokens.
type Authorizer struct {
	Token    string
	Issued   time.Time
	Lifetime time.Duration
	// Clock supplies the issue time of refreshed tokens. Defaults to time.Now.
	Clock func() time.Time
	// RefreshErr is returned from every Refresh if set.
	RefreshErr error
	// Refreshes counts calls to Refresh.
	Refreshes int
}

// New returns a fake authorizer holding token, issued now with an hour's lifetime.
func New(token string) *Authorizer {
	return &Authorizer{Token: token, Issued: time.Now(), Lifetime: time.Hour}
}

// AccessToken returns the current token.
func (a *Authorizer) AccessToken() string { return a.Token }

// IssuedAt returns the current token's issue time.
func (a *Authorizer) IssuedAt() time.Time { return a.Issued }

// ExpiresIn returns the token lifetime.
func (a *Authorizer) ExpiresIn() time.Duration { return a.Lifetime }

// Refresh replaces the token with "refreshed-<n>".
func (a *Authorizer) Refresh(context.Context) error {
	a.Refreshes++
	if a.RefreshErr != nil {
		return a.RefreshErr
	}
	a.Token = fmt.Sprintf("refreshed-%d", a.Refreshes)
	if a.Clock != nil {
		a.Issued = a.Clock()
	} else {
		a.Issued = time.Now()
	}
	return nil
}
