// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package ops provides REST clients for all the remote services we speak to:
// authority discovery backends and token endpoints.
package ops

import (
	"net/http"

	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/accesstokens"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/authority"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/internal/comm"
)

// HTTPClient represents an HTTP client.
// It's usually an *http.Client from the standard library.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// REST provides REST clients for communicating with various backends used by MSAL.
type REST struct {
	client *comm.Client
}

// New is the constructor for REST.
func New(httpClient HTTPClient) *REST {
	return &REST{client: comm.New(httpClient)}
}

// Authority returns a client for querying information about various authorities.
func (r *REST) Authority() authority.Client {
	return authority.Client{Comm: r.client}
}

// AccessTokens returns a client that can be used to get various access tokens for
// authorization purposes.
func (r *REST) AccessTokens() accesstokens.Client {
	return accesstokens.Client{Comm: r.client}
}
