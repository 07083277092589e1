// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package storage holds all cached token information for the client. Records are
// persisted as JSON blobs in two opaque key-value partitions (access tokens and
// refresh tokens) supplied by the embedding application. Key derivation, strict
// scope matching, overlap eviction, expiry filtering and account enumeration
// all live here.
package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/AzureAD/msal-mobile-go/apps/cache"
	"github.com/AzureAD/msal-mobile-go/apps/errors"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/accesstokens"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/authority"
	"github.com/AzureAD/msal-mobile-go/apps/internal/shared"
	log "github.com/sirupsen/logrus"
)

// TokenResponse mimics a token response that was pulled from the cache. Any of
// the fields may be zero: a zero AccessToken means miss (or expired), a zero
// RefreshToken means the user must reauthenticate interactively.
type TokenResponse struct {
	AccessToken  AccessToken
	RefreshToken RefreshToken
	Account      shared.Account
}

// Manager is the token cache engine. It is stateless apart from the partitions:
// the read-evict-write sequence in Write is not transactional, which is tolerated
// because a concurrent reader that observes the gap simply falls through to a
// network refresh.
type Manager struct {
	store cache.Store
}

// New is the constructor for Manager.
func New(store cache.Store) *Manager {
	return &Manager{store: store}
}

// Read reads the cached tokens for the request, if any exist. The access token is
// matched on (authority, client, user, exact scope set) and filtered through the
// expiry buffer; the refresh token on (environment, client, user).
func (m *Manager) Read(ctx context.Context, authParams authority.AuthParams) (TokenResponse, error) {
	homeAccountID := authParams.HomeAccountID
	environment := authParams.AuthorityInfo.Host
	authorityURI := authParams.AuthorityInfo.CanonicalAuthorityURI
	clientID := authParams.ClientID
	scopes := authParams.Scopes

	log.Debugf("cache query: authority %q client %q user %q scopes %v", authorityURI, clientID, homeAccountID, scopes)

	tr := TokenResponse{}
	tr.AccessToken = m.readAccessToken(authorityURI, clientID, homeAccountID, scopes)

	rt, err := m.readRefreshToken(environment, clientID, homeAccountID)
	if err != nil {
		return TokenResponse{}, err
	}
	tr.RefreshToken = rt

	// Accounts are not stored; rebuild one from whichever record we found.
	if !tr.AccessToken.IsZero() {
		tr.Account = tr.AccessToken.Account()
	} else if !tr.RefreshToken.IsZero() {
		tr.Account = tr.RefreshToken.Account()
	}
	return tr, nil
}

// Write writes a token response to the cache and returns the account information
// the tokens are stored with.
func (m *Manager) Write(authParams authority.AuthParams, tokenResponse accesstokens.TokenResponse) (shared.Account, error) {
	homeAccountID := tokenResponse.ClientInfo.HomeAccountID()
	environment := authParams.AuthorityInfo.Host
	authorityURI := authParams.AuthorityInfo.CanonicalAuthorityURI
	realm := authParams.AuthorityInfo.Tenant
	clientID := authParams.ClientID

	idToken := tokenResponse.IDToken
	account := shared.NewAccount(
		homeAccountID,
		environment,
		realm,
		idToken.LocalAccountID(),
		authParams.AuthorityInfo.AuthorityType,
		idToken.DisplayableID(),
	)
	account.Name = idToken.Name
	account.IdentityProvider = idToken.Issuer
	account.RawClientInfo = tokenResponse.RawClientInfo

	if tokenResponse.HasRefreshToken() {
		rt := NewRefreshToken(environment, clientID, homeAccountID, tokenResponse.RefreshToken,
			idToken.DisplayableID(), idToken.Name, idToken.Issuer, tokenResponse.RawClientInfo)
		if err := m.writeRefreshToken(rt); err != nil {
			return account, err
		}
	}

	if tokenResponse.HasAccessToken() {
		at := NewAccessToken(
			authorityURI,
			environment,
			realm,
			clientID,
			homeAccountID,
			time.Now(),
			tokenResponse.ExpiresOn,
			tokenResponse.ExtExpiresOn,
			tokenResponse.GrantedScopes,
			tokenResponse.TokenType,
			tokenResponse.AccessToken,
			idToken.RawToken,
			tokenResponse.RawClientInfo,
		)
		// Only cache tokens that are still usable after the expiry buffer.
		if err := at.Validate(); err == nil {
			if err := m.writeAccessToken(at); err != nil {
				return account, err
			}
		}
	}
	return account, nil
}

// readAccessToken scans the partition for records matching the request's
// coordinates with an exactly equal scope set. Zero matches is a miss. More than
// one match should be unreachable given write-time eviction; it is treated as a
// miss rather than risking the wrong token, and logged so the invariant
// violation is diagnosable.
func (m *Manager) readAccessToken(authorityURI, clientID, homeAccountID string, scopes []string) AccessToken {
	authorityURI = strings.ToLower(authorityURI)
	clientID = strings.ToLower(clientID)

	var matches []AccessToken
	part := m.store.AccessTokens()
	for _, key := range part.Keys() {
		raw, ok := part.Get(key)
		if !ok {
			continue
		}
		var at AccessToken
		if err := json.Unmarshal([]byte(raw), &at); err != nil {
			log.Warnf("undecodable access token record at key %q: %v", key, err)
			continue
		}
		if at.Authority == authorityURI && at.ClientID == clientID &&
			at.HomeAccountID == homeAccountID && at.MatchesScopes(scopes) {
			matches = append(matches, at)
		}
	}

	switch len(matches) {
	case 0:
		return AccessToken{}
	case 1:
	default:
		log.Warnf("multiple access tokens matched authority %q client %q user %q scopes %v; treating as a cache miss",
			authorityURI, clientID, homeAccountID, scopes)
		return AccessToken{}
	}

	at := matches[0]
	if err := at.Validate(); err != nil {
		return AccessToken{}
	}
	if err := at.Rehydrate(); err != nil {
		log.Warnf("could not rehydrate account from access token record: %v", err)
		return AccessToken{}
	}
	return at
}

// writeAccessToken enforces the cache's principal invariant: at most one stored
// access token per (authority, client, user) may cover any given scope. Every
// record for the same coordinates whose scope set intersects the new record's is
// deleted, then the new record is inserted. Eviction by overlap, not merge.
func (m *Manager) writeAccessToken(accessToken AccessToken) error {
	part := m.store.AccessTokens()
	newScopes := strings.Split(accessToken.Scopes, scopeSeparator)

	for _, key := range part.Keys() {
		raw, ok := part.Get(key)
		if !ok {
			continue
		}
		var at AccessToken
		if err := json.Unmarshal([]byte(raw), &at); err != nil {
			continue
		}
		if at.Authority == accessToken.Authority &&
			at.ClientID == accessToken.ClientID &&
			at.HomeAccountID == accessToken.HomeAccountID &&
			at.IntersectsScopes(newScopes) {
			part.Delete(key)
		}
	}

	b, err := json.Marshal(accessToken)
	if err != nil {
		return err
	}
	part.Set(accessToken.Key(), string(b))
	return nil
}

// readRefreshToken returns the refresh token for (environment, client, user).
// The key has no scope dimension, so more than one match is a genuine cache
// anomaly and is an error, unlike the access token ambiguity above.
func (m *Manager) readRefreshToken(environment, clientID, homeAccountID string) (RefreshToken, error) {
	want := NewRefreshToken(environment, clientID, homeAccountID, "", "", "", "", "").Key()

	var matches []RefreshToken
	part := m.store.RefreshTokens()
	for _, key := range part.Keys() {
		raw, ok := part.Get(key)
		if !ok {
			continue
		}
		var rt RefreshToken
		if err := json.Unmarshal([]byte(raw), &rt); err != nil {
			log.Warnf("undecodable refresh token record at key %q: %v", key, err)
			continue
		}
		if rt.Key() == want {
			matches = append(matches, rt)
		}
	}

	switch len(matches) {
	case 0:
		return RefreshToken{}, nil
	case 1:
	default:
		return RefreshToken{}, errors.NewAuthError(errors.MultipleMatchingTokens, "multiple refresh tokens matched one cache key")
	}

	rt := matches[0]
	if err := rt.Rehydrate(); err != nil {
		return RefreshToken{}, err
	}
	return rt, nil
}

func (m *Manager) writeRefreshToken(refreshToken RefreshToken) error {
	b, err := json.Marshal(refreshToken)
	if err != nil {
		return err
	}
	m.store.RefreshTokens().Set(refreshToken.Key(), string(b))
	return nil
}

// AllAccounts returns the accounts known for a client and environment. Accounts
// are a derived view built by grouping live refresh tokens by user identifier: a
// user with only access tokens is not discoverable.
func (m *Manager) AllAccounts(environment, clientID string) []shared.Account {
	// Records store these lowercased; match however the caller cased them.
	environment = strings.ToLower(environment)
	clientID = strings.ToLower(clientID)

	seen := map[string]bool{}
	var accounts []shared.Account

	part := m.store.RefreshTokens()
	for _, key := range part.Keys() {
		raw, ok := part.Get(key)
		if !ok {
			continue
		}
		var rt RefreshToken
		if err := json.Unmarshal([]byte(raw), &rt); err != nil {
			continue
		}
		if rt.Environment != environment || rt.ClientID != clientID || seen[rt.HomeAccountID] {
			continue
		}
		if err := rt.Rehydrate(); err != nil {
			log.Warnf("could not rehydrate account from refresh token record: %v", err)
			continue
		}
		seen[rt.HomeAccountID] = true
		accounts = append(accounts, rt.Account())
	}
	return accounts
}

// RemovalResult reports how many records of each category an account removal
// deleted. The counts are diagnostic.
type RemovalResult struct {
	AccessTokens  int
	RefreshTokens int
}

// RemoveAccount removes every record belonging to (homeAccountID, environment).
// Accounts are derived from refresh tokens, so removal succeeded only if at least
// one refresh token record went away.
func (m *Manager) RemoveAccount(account shared.Account) (RemovalResult, error) {
	res := RemovalResult{}
	environment := strings.ToLower(account.Environment)

	atPart := m.store.AccessTokens()
	for _, key := range atPart.Keys() {
		raw, ok := atPart.Get(key)
		if !ok {
			continue
		}
		var at AccessToken
		if err := json.Unmarshal([]byte(raw), &at); err != nil {
			continue
		}
		if at.HomeAccountID == account.HomeAccountID && at.Environment == environment {
			atPart.Delete(key)
			res.AccessTokens++
		}
	}

	rtPart := m.store.RefreshTokens()
	for _, key := range rtPart.Keys() {
		raw, ok := rtPart.Get(key)
		if !ok {
			continue
		}
		var rt RefreshToken
		if err := json.Unmarshal([]byte(raw), &rt); err != nil {
			continue
		}
		if rt.HomeAccountID == account.HomeAccountID && rt.Environment == environment {
			rtPart.Delete(key)
			res.RefreshTokens++
		}
	}

	if res.RefreshTokens == 0 {
		return res, errors.NewAuthError(errors.NoTokensFound, "no account record found to remove")
	}
	return res, nil
}
