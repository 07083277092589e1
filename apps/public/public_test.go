// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package public

import (
	"context"
	"net/http"
	"testing"

	"github.com/AzureAD/msal-mobile-go/apps/errors"
	"github.com/AzureAD/msal-mobile-go/apps/internal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID  = "client-id"
	testAuthority = "https://login.microsoftonline.com/contoso.com"
)

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(testClientID, WithAuthority("http://insecure.example.com/common"))
	require.Error(t, err, "an http authority must be rejected")

	_, err = New(testClientID, WithAuthority("https://contoso.b2clogin.com/tfp/tenant"))
	require.Error(t, err, "a B2C authority without a policy segment must be rejected")

	client, err := New(testClientID)
	require.NoError(t, err)
	assert.Empty(t, client.Accounts())
}

func TestTokenLifecycle(t *testing.T) {
	mockHTTP := mock.NewClient()
	client, err := New(testClientID,
		WithAuthority(testAuthority),
		WithHTTPClient(mockHTTP),
	)
	require.NoError(t, err)

	idToken := mock.GetIDToken("contoso.com", "https://sts", "oid-1", "user@contoso.com", "A User")
	clientInfo := mock.GetClientInfo("uid-1", "utid-1")

	// Redeeming the auth code resolves endpoints once, then hits the token endpoint.
	mockHTTP.AppendResponse(mock.WithBody(mock.GetTenantDiscoveryBody("login.microsoftonline.com", "contoso.com")))
	mockHTTP.AppendResponse(mock.WithBody(mock.GetAccessTokenBody("at-1", idToken, "rt-1", clientInfo, "a b", 3600)))

	ctx := context.Background()
	result, err := client.AcquireTokenByAuthCode(ctx, "auth-code", "https://redirect", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "at-1", result.AccessToken)
	assert.Equal(t, "uid-1.utid-1", result.Account.HomeAccountID)
	require.Zero(t, mockHTTP.Remaining())

	// The same scope set is served from the cache; no responses are queued, so any
	// network call would panic.
	silent, err := client.AcquireTokenSilent(ctx, []string{"B", "a"}, WithSilentAccount(result.Account))
	require.NoError(t, err)
	assert.Equal(t, "at-1", silent.AccessToken)

	// A different scope set misses the access token cache and redeems the refresh
	// token. Endpoints are already cached, so only the token call goes out.
	mockHTTP.AppendResponse(mock.WithBody(mock.GetAccessTokenBody("at-2", idToken, "rt-2", clientInfo, "c", 3600)))
	refreshed, err := client.AcquireTokenSilent(ctx, []string{"c"}, WithSilentAccount(result.Account))
	require.NoError(t, err)
	assert.Equal(t, "at-2", refreshed.AccessToken)
	require.Zero(t, mockHTTP.Remaining())

	// Both scope sets are now cached independently.
	silent, err = client.AcquireTokenSilent(ctx, []string{"a", "b"}, WithSilentAccount(result.Account))
	require.NoError(t, err)
	assert.Equal(t, "at-1", silent.AccessToken)

	accounts := client.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "user@contoso.com", accounts[0].PreferredUsername)

	require.NoError(t, client.RemoveAccount(accounts[0]))
	assert.Empty(t, client.Accounts())

	_, err = client.AcquireTokenSilent(ctx, []string{"a", "b"}, WithSilentAccount(result.Account))
	require.Error(t, err, "a removed account must not satisfy silent requests")
	var authErr errors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, errors.NoTokensFound, authErr.Code)
}

func TestUntrustedAuthorityIsValidatedByInstanceDiscovery(t *testing.T) {
	mockHTTP := mock.NewClient()
	client, err := New(testClientID,
		WithAuthority("https://login.contoso.example/tenant"),
		WithHTTPClient(mockHTTP),
	)
	require.NoError(t, err)

	// A host outside the trusted list goes through instance discovery before
	// tenant discovery.
	var discoveryURL string
	mockHTTP.AppendResponse(
		mock.WithBody(mock.GetInstanceDiscoveryBody("login.contoso.example", "tenant")),
		mock.WithCallback(func(r *http.Request) { discoveryURL = r.URL.String() }),
	)
	mockHTTP.AppendResponse(mock.WithBody(mock.GetTenantDiscoveryBody("login.contoso.example", "tenant")))
	mockHTTP.AppendResponse(mock.WithBody(mock.GetAccessTokenBody(
		"at-1",
		mock.GetIDToken("tenant", "https://sts", "oid-1", "user@contoso.example", "A User"),
		"rt-1",
		mock.GetClientInfo("uid-1", "utid-1"),
		"a", 3600)))

	result, err := client.AcquireTokenByAuthCode(context.Background(), "auth-code", "https://redirect", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "at-1", result.AccessToken)
	require.Zero(t, mockHTTP.Remaining())

	assert.Contains(t, discoveryURL, "https://login.microsoftonline.com/common/discovery/instance")
	assert.Contains(t, discoveryURL, "api-version=1.0")
}

func TestAcquireTokenByAuthCodeServerError(t *testing.T) {
	mockHTTP := mock.NewClient()
	client, err := New(testClientID, WithAuthority(testAuthority), WithHTTPClient(mockHTTP))
	require.NoError(t, err)

	mockHTTP.AppendResponse(mock.WithBody(mock.GetTenantDiscoveryBody("login.microsoftonline.com", "contoso.com")))
	mockHTTP.AppendResponse(
		mock.WithHTTPStatusCode(400),
		mock.WithBody([]byte(`{"error": "invalid_grant", "error_description": "the code is expired"}`)),
	)

	_, err = client.AcquireTokenByAuthCode(context.Background(), "stale-code", "https://redirect", []string{"a"})
	var authErr errors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid_grant", authErr.Code)
	assert.Equal(t, "the code is expired", authErr.Desc)
}

func TestCreateAuthCodeURL(t *testing.T) {
	mockHTTP := mock.NewClient()
	client, err := New(testClientID, WithAuthority(testAuthority), WithHTTPClient(mockHTTP))
	require.NoError(t, err)

	mockHTTP.AppendResponse(mock.WithBody(mock.GetTenantDiscoveryBody("login.microsoftonline.com", "contoso.com")))

	got, err := client.CreateAuthCodeURL(context.Background(), testClientID, "https://redirect", []string{"a"})
	require.NoError(t, err)
	assert.Contains(t, got, "https://login.microsoftonline.com/contoso.com/oauth2/v2.0/authorize")
	assert.Contains(t, got, "client_id="+testClientID)
}
