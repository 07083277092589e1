// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package public provides a client for authentication of "public" applications. A "public"
application is defined as an app that runs on client devices (android, ios, windows, linux, ...).
These devices are "untrusted" and access resources via web APIs that must authenticate.
*/
package public

/*
Design note:

public.Client uses base.Client as an embedded type. base.Client statically assigns its
attributes during creation. As it doesn't have any pointers in it, anything borrowed from
it, such as Base.AuthParams, is a copy that is free to be manipulated here.
*/

import (
	"context"
	"fmt"
	"net/url"

	"github.com/AzureAD/msal-mobile-go/apps/cache"
	"github.com/AzureAD/msal-mobile-go/apps/internal/base"
	"github.com/AzureAD/msal-mobile-go/apps/internal/base/storage"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops"
	"github.com/AzureAD/msal-mobile-go/apps/internal/shared"
)

// AuthResult contains the results of one token acquisition operation.
type AuthResult = base.AuthResult

// Account represents a signed-in user.
type Account = shared.Account

// Options configures the Client's behavior.
type Options struct {
	// Accessor is the token store. The default is an in-memory store that lives
	// and dies with the Client. This can be set with the WithCache() option.
	Accessor cache.Store

	// Authority is the URL of the token authority. The default is
	// https://login.microsoftonline.com/common. This can be changed with the
	// WithAuthority() option.
	Authority string

	// ValidateAuthority controls whether the authority is checked against the
	// trusted host list (AAD) or DRS/WebFinger federation metadata (ADFS) before
	// tokens are requested from it. Defaults to true.
	ValidateAuthority bool

	// HTTPClient sets the transport for making HTTP calls.
	HTTPClient ops.HTTPClient
}

func (o *Options) validate() error {
	u, err := url.Parse(o.Authority)
	if err != nil {
		return fmt.Errorf("the Authority option could not be URL parsed: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("the Authority option(%s) did not start with https://", u.String())
	}
	return nil
}

// Option is an optional argument to the New constructor.
type Option func(o *Options)

// WithAuthority allows for a custom authority to be set. This must be a valid
// https url.
func WithAuthority(authority string) Option {
	return func(o *Options) {
		o.Authority = authority
	}
}

// WithCache provides the token store the client reads and writes.
func WithCache(accessor cache.Store) Option {
	return func(o *Options) {
		o.Accessor = accessor
	}
}

// WithValidateAuthority toggles authority validation. Turning it off is only
// appropriate for test authorities.
func WithValidateAuthority(validate bool) Option {
	return func(o *Options) {
		o.ValidateAuthority = validate
	}
}

// WithHTTPClient allows for a custom HTTP client to be set.
func WithHTTPClient(httpClient ops.HTTPClient) Option {
	return func(o *Options) {
		o.HTTPClient = httpClient
	}
}

// Client is a representation of an authentication client for public
// applications as defined in the package doc.
type Client struct {
	base.Client
}

// New is the constructor for Client.
func New(clientID string, options ...Option) (Client, error) {
	opts := Options{
		Authority:         base.AuthorityPublicCloud,
		ValidateAuthority: true,
		Accessor:          cache.NewInMemory(),
		HTTPClient:        shared.DefaultClient,
	}
	for _, o := range options {
		o(&opts)
	}
	if err := opts.validate(); err != nil {
		return Client{}, err
	}

	token := oauth.New(opts.HTTPClient)
	b, err := base.New(clientID, opts.Authority, opts.ValidateAuthority, storage.New(opts.Accessor), token)
	if err != nil {
		return Client{}, err
	}
	return Client{b}, nil
}

// CreateAuthCodeURL creates a URL used to acquire an authorization code.
func (pca Client) CreateAuthCodeURL(ctx context.Context, clientID, redirectURI string, scopes []string) (string, error) {
	return pca.Client.AuthCodeURL(ctx, clientID, redirectURI, scopes, pca.AuthParams)
}

// AcquireTokenSilentOptions are all the optional settings to an
// AcquireTokenSilent() call. These are set by using various
// AcquireTokenSilentOption functions.
type AcquireTokenSilentOptions struct {
	// Account represents the account to use. To set, use the WithSilentAccount()
	// option.
	Account Account

	// UserPrincipalName supplies the user's UPN for ADFS authority validation.
	// To set, use the WithUserPrincipalName() option.
	UserPrincipalName string
}

// AcquireTokenSilentOption changes options inside AcquireTokenSilentOptions used
// in .AcquireTokenSilent().
type AcquireTokenSilentOption func(a *AcquireTokenSilentOptions)

// WithSilentAccount uses the passed account during an AcquireTokenSilent() call.
func WithSilentAccount(account Account) AcquireTokenSilentOption {
	return func(a *AcquireTokenSilentOptions) {
		a.Account = account
	}
}

// WithUserPrincipalName supplies the UPN that anchors ADFS authority validation.
func WithUserPrincipalName(upn string) AcquireTokenSilentOption {
	return func(a *AcquireTokenSilentOptions) {
		a.UserPrincipalName = upn
	}
}

// AcquireTokenSilent acquires a token from either the cache or using a refresh
// token.
func (pca Client) AcquireTokenSilent(ctx context.Context, scopes []string, options ...AcquireTokenSilentOption) (AuthResult, error) {
	opts := AcquireTokenSilentOptions{}
	for _, o := range options {
		o(&opts)
	}

	silentParameters := base.AcquireTokenSilentParameters{
		Scopes:            scopes,
		Account:           opts.Account,
		UserPrincipalName: opts.UserPrincipalName,
	}
	return pca.Client.AcquireTokenSilent(ctx, silentParameters)
}

// AcquireTokenByAuthCode is a request to acquire a security token from the
// authority, using an authorization code. The specified redirect URI must be the
// same URI that was used when the authorization code was requested.
func (pca Client) AcquireTokenByAuthCode(ctx context.Context, code, redirectURI string, scopes []string, options ...AcquireTokenByAuthCodeOption) (AuthResult, error) {
	opts := AcquireTokenByAuthCodeOptions{}
	for _, o := range options {
		o(&opts)
	}

	params := base.AcquireTokenAuthCodeParameters{
		Scopes:       scopes,
		Code:         code,
		CodeVerifier: opts.CodeVerifier,
		RedirectURI:  redirectURI,
	}
	return pca.Client.AcquireTokenByAuthCode(ctx, params)
}

// AcquireTokenByAuthCodeOptions contains the optional parameters used to acquire
// an access token using the authorization code flow.
type AcquireTokenByAuthCodeOptions struct {
	CodeVerifier string
}

// AcquireTokenByAuthCodeOption changes options inside
// AcquireTokenByAuthCodeOptions used in .AcquireTokenByAuthCode().
type AcquireTokenByAuthCodeOption func(a *AcquireTokenByAuthCodeOptions)

// WithCodeVerifier sets the PKCE code verifier matching the challenge that was
// sent in the authorization request.
func WithCodeVerifier(verifier string) AcquireTokenByAuthCodeOption {
	return func(a *AcquireTokenByAuthCodeOptions) {
		a.CodeVerifier = verifier
	}
}

// Accounts gets all the accounts in the token cache. If there are no accounts in
// the cache the returned slice is empty.
func (pca Client) Accounts() []Account {
	return pca.Client.Accounts()
}

// RemoveAccount signs the account out and forgets account from token cache.
func (pca Client) RemoveAccount(account Account) error {
	return pca.Client.RemoveAccount(account)
}
