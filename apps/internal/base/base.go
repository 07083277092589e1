// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package base contains the client shared by the exported surface: token
// acquisition flows stitched onto the cache engine. Methods here take value
// receivers and copy AuthParams per call so concurrent acquisitions never
// observe each other's request state.
package base

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/AzureAD/msal-mobile-go/apps/errors"
	"github.com/AzureAD/msal-mobile-go/apps/internal/base/storage"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/accesstokens"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/authority"
	"github.com/AzureAD/msal-mobile-go/apps/internal/shared"
)

const (
	// AuthorityPublicCloud is the default AAD authority.
	AuthorityPublicCloud = "https://login.microsoftonline.com/common"

	scopeSeparator = " "
)

// manager provides the token cache. It is defined to allow faking the cache in
// tests. In all production use it is a *storage.Manager.
type manager interface {
	Read(ctx context.Context, authParams authority.AuthParams) (storage.TokenResponse, error)
	Write(authParams authority.AuthParams, tokenResponse accesstokens.TokenResponse) (shared.Account, error)
	AllAccounts(environment, clientID string) []shared.Account
	RemoveAccount(account shared.Account) (storage.RemovalResult, error)
}

// AcquireTokenSilentParameters contains the parameters to acquire a token
// silently (from cache, falling back to the refresh token).
type AcquireTokenSilentParameters struct {
	Scopes  []string
	Account shared.Account

	// UserPrincipalName feeds ADFS authority validation. Ignored for AAD and B2C.
	UserPrincipalName string
}

// AcquireTokenAuthCodeParameters contains the parameters required to acquire an
// access token using the auth code flow. CodeVerifier carries the PKCE verifier
// matching the challenge sent in the authorization request; see
// https://tools.ietf.org/html/rfc7636.
type AcquireTokenAuthCodeParameters struct {
	Scopes       []string
	Code         string
	CodeVerifier string
	RedirectURI  string
}

// AuthResult contains the results of one token acquisition operation.
type AuthResult struct {
	Account        shared.Account
	IDToken        accesstokens.IDToken
	AccessToken    string
	ExpiresOn      time.Time
	GrantedScopes  []string
	DeclinedScopes []string
}

// AuthResultFromStorage creates an AuthResult from tokens pulled from the cache.
func AuthResultFromStorage(storageTokenResponse storage.TokenResponse) (AuthResult, error) {
	if err := storageTokenResponse.AccessToken.Validate(); err != nil {
		return AuthResult{}, fmt.Errorf("problem with access token in cached response: %w", err)
	}

	account := storageTokenResponse.Account
	accessToken := storageTokenResponse.AccessToken.Secret
	grantedScopes := strings.Split(storageTokenResponse.AccessToken.Scopes, scopeSeparator)

	var idToken accesstokens.IDToken
	if raw := storageTokenResponse.AccessToken.RawIDToken; raw != "" {
		var err error
		idToken, err = accesstokens.NewIDToken(raw)
		if err != nil {
			return AuthResult{}, fmt.Errorf("problem decoding cached ID token: %w", err)
		}
	}
	return AuthResult{account, idToken, accessToken, storageTokenResponse.AccessToken.ExpiresOn.T, grantedScopes, nil}, nil
}

// NewAuthResult creates an AuthResult from a live token response. A response in
// which the server declined any requested scope is an error, not a partial
// success.
func NewAuthResult(tokenResponse accesstokens.TokenResponse, account shared.Account) (AuthResult, error) {
	if len(tokenResponse.DeclinedScopes) > 0 {
		return AuthResult{}, fmt.Errorf("token response failed because declined scopes are present: %s", strings.Join(tokenResponse.DeclinedScopes, ","))
	}
	return AuthResult{
		Account:       account,
		IDToken:       tokenResponse.IDToken,
		AccessToken:   tokenResponse.AccessToken,
		ExpiresOn:     tokenResponse.ExpiresOn,
		GrantedScopes: tokenResponse.GrantedScopes,
	}, nil
}

// Client is a base client that provides access to common methods and primitives
// used by the exported client.
type Client struct {
	Token   *oauth.Client
	manager manager // *storage.Manager or a fake in tests

	AuthParams authority.AuthParams // Value type; copied into every request.
}

// New is the constructor for Client.
func New(clientID, authorityURI string, validateAuthority bool, store *storage.Manager, token *oauth.Client) (Client, error) {
	authInfo, err := authority.NewInfoFromAuthorityURI(authorityURI, validateAuthority)
	if err != nil {
		return Client{}, err
	}
	authParams := authority.NewAuthParams(clientID, authInfo)
	return Client{
		Token:      token,
		AuthParams: authParams,
		manager:    store,
	}, nil
}

// AuthCodeURL creates a URL used to acquire an authorization code.
func (b Client) AuthCodeURL(ctx context.Context, clientID, redirectURI string, scopes []string, authParams authority.AuthParams) (string, error) {
	endpoints, err := b.Token.ResolveEndpoints(ctx, authParams.AuthorityInfo, authParams.Username)
	if err != nil {
		return "", err
	}

	baseURL, err := url.Parse(endpoints.AuthorizationEndpoint)
	if err != nil {
		return "", err
	}

	v := url.Values{}
	v.Add("client_id", clientID)
	v.Add("response_type", "code")
	v.Add("redirect_uri", redirectURI)
	v.Add("scope", strings.Join(scopes, scopeSeparator))
	baseURL.RawQuery = v.Encode()
	return baseURL.String(), nil
}

// AcquireTokenSilent returns a token for the account without user interaction:
// from the access token cache when a live exact-scope match exists, otherwise by
// redeeming the cached refresh token and writing the new tokens back.
func (b Client) AcquireTokenSilent(ctx context.Context, silent AcquireTokenSilentParameters) (AuthResult, error) {
	authParams := b.AuthParams // copy
	authParams.Scopes = toLower(silent.Scopes)
	authParams.HomeAccountID = silent.Account.HomeAccountID
	authParams.Username = silent.UserPrincipalName

	storageTokenResponse, err := b.manager.Read(ctx, authParams)
	if err != nil {
		return AuthResult{}, err
	}

	result, err := AuthResultFromStorage(storageTokenResponse)
	if err == nil {
		return result, nil
	}

	if storageTokenResponse.RefreshToken.IsZero() {
		return AuthResult{}, errors.NewAuthError(errors.NoTokensFound, "no cached token satisfied the request and no refresh token was found")
	}

	token, err := b.Token.RefreshToken(ctx, authParams, storageTokenResponse.RefreshToken.Secret)
	if err != nil {
		return AuthResult{}, err
	}
	return b.AuthResultFromToken(ctx, authParams, token)
}

// AcquireTokenByAuthCode redeems an authorization code for tokens and caches
// them.
func (b Client) AcquireTokenByAuthCode(ctx context.Context, authCodeParams AcquireTokenAuthCodeParameters) (AuthResult, error) {
	authParams := b.AuthParams // copy
	authParams.Scopes = toLower(authCodeParams.Scopes)
	authParams.Redirecturi = authCodeParams.RedirectURI

	token, err := b.Token.AuthCode(ctx, authParams, authCodeParams.Code, authCodeParams.CodeVerifier)
	if err != nil {
		return AuthResult{}, err
	}
	return b.AuthResultFromToken(ctx, authParams, token)
}

// AuthResultFromToken writes a live token response through the cache and shapes
// it into an AuthResult.
func (b Client) AuthResultFromToken(ctx context.Context, authParams authority.AuthParams, token accesstokens.TokenResponse) (AuthResult, error) {
	account, err := b.manager.Write(authParams, token)
	if err != nil {
		return AuthResult{}, err
	}
	return NewAuthResult(token, account)
}

// Accounts lists the signed-in accounts known to the cache for this client.
func (b Client) Accounts() []shared.Account {
	return b.manager.AllAccounts(b.AuthParams.AuthorityInfo.Host, b.AuthParams.ClientID)
}

// RemoveAccount deletes all cached tokens for the account.
func (b Client) RemoveAccount(account shared.Account) error {
	_, err := b.manager.RemoveAccount(account)
	return err
}

// toLower makes all slice entries lowercase in-place. Returns the same slice
// that was put in.
func toLower(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = strings.ToLower(s[i])
	}
	return s
}
