// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package accesstokens exposes a REST client for querying backend systems to get various
types of access tokens (oauth) for use in authentication.

These calls are of type "application/x-www-form-urlencoded". This means we use url.Values
to represent arguments and then encode them into the POST body message. We receive JSON in
return for the requests.
*/
package accesstokens

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/authority"
)

const (
	grantType     = "grant_type"
	clientID      = "client_id"
	clientInfo    = "client_info"
	clientInfoVal = "1"

	authCodeGrant     = "authorization_code"
	refreshTokenGrant = "refresh_token"

	correlationIDHeader = "client-request-id"
)

// defaultScopes are added to every token request: openid for an id token,
// offline_access for a refresh token, profile for the client_info claims.
var defaultScopes = []string{"openid", "offline_access", "profile"}

type urlFormCaller interface {
	URLFormCall(ctx context.Context, endpoint string, headers http.Header, qv url.Values, resp interface{}) error
}

// Client represents the REST calls to token endpoints.
type Client struct {
	// Comm provides the HTTP transport client.
	Comm urlFormCaller // *comm.Client
}

// FromAuthCode uses an authorization code to get an access token.
func (c Client) FromAuthCode(ctx context.Context, authParams authority.AuthParams, code, codeVerifier string) (TokenResponse, error) {
	qv := url.Values{}
	qv.Set(grantType, authCodeGrant)
	qv.Set("code", code)
	if codeVerifier != "" {
		qv.Set("code_verifier", codeVerifier)
	}
	qv.Set("redirect_uri", authParams.Redirecturi)
	qv.Set(clientID, authParams.ClientID)
	qv.Set(clientInfo, clientInfoVal)
	addScopeQueryParam(qv, authParams)

	return c.doTokenResp(ctx, authParams, qv)
}

// FromRefreshToken uses a refresh token (for refreshing credentials) to get a new access token.
func (c Client) FromRefreshToken(ctx context.Context, authParams authority.AuthParams, refreshToken string) (TokenResponse, error) {
	qv := url.Values{}
	qv.Set(grantType, refreshTokenGrant)
	qv.Set("refresh_token", refreshToken)
	qv.Set(clientID, authParams.ClientID)
	qv.Set(clientInfo, clientInfoVal)
	addScopeQueryParam(qv, authParams)

	return c.doTokenResp(ctx, authParams, qv)
}

func (c Client) doTokenResp(ctx context.Context, authParams authority.AuthParams, qv url.Values) (TokenResponse, error) {
	headers := http.Header{}
	if authParams.CorrelationID != "" {
		// The id minted with the request parameters ties the token call to the
		// rest of the acquisition in server-side diagnostics.
		headers.Set(correlationIDHeader, authParams.CorrelationID)
	}

	payload := TokenResponseJSONPayload{}
	err := c.Comm.URLFormCall(ctx, authParams.Endpoints.TokenEndpoint, headers, qv, &payload)
	if err != nil {
		return TokenResponse{}, err
	}
	return NewTokenResponse(authParams, payload)
}

func addScopeQueryParam(qv url.Values, authParams authority.AuthParams) {
	scopes := make([]string, 0, len(authParams.Scopes)+len(defaultScopes))
	scopes = append(scopes, authParams.Scopes...)
	scopes = append(scopes, defaultScopes...)
	qv.Set("scope", strings.Join(scopes, " "))
}
