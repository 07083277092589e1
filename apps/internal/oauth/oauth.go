// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package oauth ties together the authority resolution machinery and the token
// endpoint clients. Upper layers speak to this package, not to ops directly.
package oauth

import (
	"context"

	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/accesstokens"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/authority"
)

// Client provides tokens for various types of token requests. It owns the
// validated-authority cache; its lifetime is the lifetime of the top-level
// application client that created it.
type Client struct {
	accessTokens accesstokens.Client
	resolver     *authorityEndpoint
}

// New is the constructor for Client.
func New(httpClient ops.HTTPClient) *Client {
	r := ops.New(httpClient)
	return &Client{
		accessTokens: r.AccessTokens(),
		resolver:     newAuthorityEndpoint(r.Authority()),
	}
}

// ResolveEndpoints resolves the authority in authParams into concrete
// authorize/token endpoints, from the cache when possible.
func (t *Client) ResolveEndpoints(ctx context.Context, authorityInfo authority.Info, userPrincipalName string) (authority.Endpoints, error) {
	return t.resolver.ResolveEndpoints(ctx, authorityInfo, userPrincipalName)
}

// AuthCode acquires a token from the token endpoint using an authorization code.
func (t *Client) AuthCode(ctx context.Context, authParams authority.AuthParams, code, codeVerifier string) (accesstokens.TokenResponse, error) {
	if err := t.resolveEndpoints(ctx, &authParams); err != nil {
		return accesstokens.TokenResponse{}, err
	}
	return t.accessTokens.FromAuthCode(ctx, authParams, code, codeVerifier)
}

// RefreshToken exchanges a refresh token for a new access token.
func (t *Client) RefreshToken(ctx context.Context, authParams authority.AuthParams, refreshToken string) (accesstokens.TokenResponse, error) {
	if err := t.resolveEndpoints(ctx, &authParams); err != nil {
		return accesstokens.TokenResponse{}, err
	}
	return t.accessTokens.FromRefreshToken(ctx, authParams, refreshToken)
}

func (t *Client) resolveEndpoints(ctx context.Context, authParams *authority.AuthParams) error {
	if !authParams.Endpoints.IsZero() {
		return nil
	}
	endpoints, err := t.resolver.ResolveEndpoints(ctx, authParams.AuthorityInfo, authParams.Username)
	if err != nil {
		return err
	}
	authParams.Endpoints = endpoints
	return nil
}
