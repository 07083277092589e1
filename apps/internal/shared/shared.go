// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package shared

import (
	"net/http"
	"time"
)

const (
	// CacheKeySeparator is used in creating the keys of the cache.
	CacheKeySeparator = "$"
)

// Account represents the identity a token was issued to. Accounts are never
// persisted as first-class records; they are rehydrated from whichever token
// cache item is read.
type Account struct {
	HomeAccountID     string `json:"home_account_id,omitempty"`
	Environment       string `json:"environment,omitempty"`
	Realm             string `json:"realm,omitempty"`
	LocalAccountID    string `json:"local_account_id,omitempty"`
	AuthorityType     string `json:"authority_type,omitempty"`
	PreferredUsername string `json:"username,omitempty"`
	Name              string `json:"name,omitempty"`
	IdentityProvider  string `json:"identity_provider,omitempty"`
	RawClientInfo     string `json:"client_info,omitempty"`
}

// NewAccount creates an account.
func NewAccount(homeAccountID, env, realm, localAccountID, authorityType, username string) Account {
	return Account{
		HomeAccountID:     homeAccountID,
		Environment:       env,
		Realm:             realm,
		LocalAccountID:    localAccountID,
		AuthorityType:     authorityType,
		PreferredUsername: username,
	}
}

// IsZero checks the zero value of account.
func (acc Account) IsZero() bool {
	return acc == Account{}
}

// DefaultClient is our default shared HTTP client. The 30 second timeout covers
// both connect and read on every discovery and token call.
var DefaultClient = &http.Client{Timeout: 30 * time.Second}
