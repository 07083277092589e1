// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package storage

import (
	"encoding/base64"
	"sort"
	"strings"
	"time"

	"github.com/AzureAD/msal-mobile-go/apps/errors"
	internalTime "github.com/AzureAD/msal-mobile-go/apps/internal/json/types/time"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/accesstokens"
	"github.com/AzureAD/msal-mobile-go/apps/internal/shared"
)

// expiryBuffer is the early-refresh margin: a token within this much of its
// expiry is treated as already expired, absorbing clock skew and request latency.
const expiryBuffer = 300 * time.Second

const scopeSeparator = " "

// base64URL encodes a key component. The encoding has no padding and is URL safe,
// so components can be joined with the separator without ambiguity. This format is
// the persisted lookup key and must stay stable across versions.
func base64URL(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// CanonicalScopes lowercases, de-duplicates and sorts a scope list. Key equality
// is defined on the scope set, not the order or case the caller happened to use.
func CanonicalScopes(scopes []string) []string {
	set := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			set[s] = true
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func scopesToTarget(scopes []string) string {
	return strings.Join(CanonicalScopes(scopes), scopeSeparator)
}

// AccessToken is one stored access token record: the wire fields of a token
// response plus the coordinates it was acquired under. The derived account is
// deliberately not serialized; call Rehydrate after deserialization.
type AccessToken struct {
	Authority     string            `json:"authority"`
	Environment   string            `json:"environment"`
	Realm         string            `json:"realm,omitempty"`
	ClientID      string            `json:"client_id"`
	HomeAccountID string            `json:"home_account_id"`
	Secret        string            `json:"secret"`
	Scopes        string            `json:"target"`
	TokenType     string            `json:"token_type,omitempty"`
	ExpiresOn     internalTime.Unix `json:"expires_on"`
	ExtExpiresOn  internalTime.Unix `json:"extended_expires_on,omitempty"`
	CachedAt      internalTime.Unix `json:"cached_at"`
	RawIDToken    string            `json:"id_token,omitempty"`
	RawClientInfo string            `json:"client_info,omitempty"`

	account shared.Account
}

// NewAccessToken is the constructor for AccessToken.
func NewAccessToken(authority, environment, realm, clientID, homeAccountID string, cachedAt, expiresOn, extExpiresOn time.Time, scopes []string, tokenType, token, rawIDToken, rawClientInfo string) AccessToken {
	return AccessToken{
		Authority:     strings.ToLower(authority),
		Environment:   strings.ToLower(environment),
		Realm:         realm,
		ClientID:      strings.ToLower(clientID),
		HomeAccountID: homeAccountID,
		Secret:        token,
		Scopes:        scopesToTarget(scopes),
		TokenType:     tokenType,
		CachedAt:      internalTime.Unix{T: cachedAt.UTC()},
		ExpiresOn:     internalTime.Unix{T: expiresOn.UTC()},
		ExtExpiresOn:  internalTime.Unix{T: extExpiresOn.UTC()},
		RawIDToken:    rawIDToken,
		RawClientInfo: rawClientInfo,
	}
}

// Key outputs the stable key this entry is stored under:
// base64url(authority)$base64url(clientID)$base64url(sorted scopes)$homeAccountID.
func (a AccessToken) Key() string {
	return strings.Join(
		[]string{base64URL(a.Authority), base64URL(a.ClientID), base64URL(a.Scopes), a.HomeAccountID},
		shared.CacheKeySeparator,
	)
}

// ScopeSet returns the granted scopes as a set.
func (a AccessToken) ScopeSet() map[string]bool {
	set := map[string]bool{}
	for _, s := range strings.Split(a.Scopes, scopeSeparator) {
		if s != "" {
			set[s] = true
		}
	}
	return set
}

// MatchesScopes reports strict scope-set equality against the requested scopes.
// A subset or superset is not a match.
func (a AccessToken) MatchesScopes(scopes []string) bool {
	want := CanonicalScopes(scopes)
	have := a.ScopeSet()
	if len(want) != len(have) {
		return false
	}
	for _, s := range want {
		if !have[s] {
			return false
		}
	}
	return true
}

// IntersectsScopes reports whether any requested scope is in this entry's scope
// set. Write-time eviction uses this, not subset matching.
func (a AccessToken) IntersectsScopes(scopes []string) bool {
	have := a.ScopeSet()
	for _, s := range CanonicalScopes(scopes) {
		if have[s] {
			return true
		}
	}
	return false
}

// Validate validates that this AccessToken can be used: cached in the past and
// not within the expiry buffer of expiring.
func (a AccessToken) Validate() error {
	if a.CachedAt.T.After(time.Now()) {
		return errors.New("access token isn't valid, it was cached at a future time")
	}
	if !time.Now().Add(expiryBuffer).Before(a.ExpiresOn.T) {
		return errors.New("access token is expired")
	}
	if a.CachedAt.T.IsZero() {
		return errors.New("access token does not have CachedAt set")
	}
	return nil
}

// IsZero reports whether this is the zero value.
func (a AccessToken) IsZero() bool {
	return a.Secret == "" && a.HomeAccountID == "" && a.ClientID == ""
}

// Rehydrate derives the account identity from the raw id token and client info
// blobs. It must be called after deserializing a record; the derived fields are
// never stored.
func (a *AccessToken) Rehydrate() error {
	acc, err := accountFromRaw(a.RawIDToken, a.RawClientInfo, a.HomeAccountID, a.Environment, a.Realm)
	if err != nil {
		return err
	}
	a.account = acc
	return nil
}

// Account returns the account this token belongs to. Zero until Rehydrate is called.
func (a AccessToken) Account() shared.Account {
	return a.account
}

// RefreshToken is one stored refresh token record. Refresh tokens are not scope
// bound: the key has no scope component, so one record exists per
// (environment, client, user) and writes overwrite.
type RefreshToken struct {
	Environment      string `json:"environment"`
	ClientID         string `json:"client_id"`
	HomeAccountID    string `json:"home_account_id"`
	Secret           string `json:"secret"`
	DisplayableID    string `json:"username,omitempty"`
	Name             string `json:"name,omitempty"`
	IdentityProvider string `json:"identity_provider,omitempty"`
	RawClientInfo    string `json:"client_info,omitempty"`

	account shared.Account
}

// NewRefreshToken is the constructor for RefreshToken.
func NewRefreshToken(environment, clientID, homeAccountID, refreshToken, displayableID, name, identityProvider, rawClientInfo string) RefreshToken {
	return RefreshToken{
		Environment:      strings.ToLower(environment),
		ClientID:         strings.ToLower(clientID),
		HomeAccountID:    homeAccountID,
		Secret:           refreshToken,
		DisplayableID:    displayableID,
		Name:             name,
		IdentityProvider: identityProvider,
		RawClientInfo:    rawClientInfo,
	}
}

// Key outputs the stable key this entry is stored under:
// base64url(environment)$base64url(clientID)$homeAccountID.
func (rt RefreshToken) Key() string {
	return strings.Join(
		[]string{base64URL(rt.Environment), base64URL(rt.ClientID), rt.HomeAccountID},
		shared.CacheKeySeparator,
	)
}

// IsZero reports whether this is the zero value.
func (rt RefreshToken) IsZero() bool {
	return rt.Secret == "" && rt.HomeAccountID == "" && rt.ClientID == ""
}

// Rehydrate derives the account identity for this record.
func (rt *RefreshToken) Rehydrate() error {
	acc, err := accountFromRaw("", rt.RawClientInfo, rt.HomeAccountID, rt.Environment, "")
	if err != nil {
		return err
	}
	acc.PreferredUsername = rt.DisplayableID
	acc.Name = rt.Name
	acc.IdentityProvider = rt.IdentityProvider
	rt.account = acc
	return nil
}

// Account returns the account this token belongs to. Zero until Rehydrate is called.
func (rt RefreshToken) Account() shared.Account {
	return rt.account
}

// accountFromRaw rebuilds a shared.Account from the raw blobs a record carries.
// Accounts are never stored as first-class records.
func accountFromRaw(rawIDToken, rawClientInfo, homeAccountID, environment, realm string) (shared.Account, error) {
	acc := shared.Account{
		HomeAccountID: homeAccountID,
		Environment:   environment,
		Realm:         realm,
		RawClientInfo: rawClientInfo,
	}
	if rawClientInfo != "" {
		ci, err := accesstokens.NewClientInfo(rawClientInfo)
		if err != nil {
			return shared.Account{}, err
		}
		if id := ci.HomeAccountID(); id != "" {
			acc.HomeAccountID = id
		}
	}
	if rawIDToken != "" {
		idToken, err := accesstokens.NewIDToken(rawIDToken)
		if err != nil {
			return shared.Account{}, err
		}
		acc.LocalAccountID = idToken.LocalAccountID()
		acc.PreferredUsername = idToken.DisplayableID()
		acc.Name = idToken.Name
		acc.IdentityProvider = idToken.Issuer
		if acc.Realm == "" {
			acc.Realm = idToken.TenantID
		}
	}
	return acc, nil
}
