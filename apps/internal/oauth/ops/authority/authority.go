// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package authority provides the authority value type and the REST calls used to
// resolve an authority into concrete authorize/token endpoints: AAD instance
// discovery, OpenID tenant discovery and the DRS/WebFinger federation trust
// checks used by ADFS.
package authority

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/AzureAD/msal-mobile-go/apps/errors"
	"github.com/google/uuid"
)

// AuthorityType values. An authority is exactly one of these, decided from the
// shape of its URL at construction time.
const (
	AAD  = "AAD"
	ADFS = "ADFS"
	B2C  = "B2C"
)

const (
	authorizationEndpoint     = "https://%v/%v/oauth2/v2.0/authorize"
	instanceDiscoveryEndpoint = "https://%v/common/discovery/instance"
	defaultHost               = "login.microsoftonline.com"

	tenantPathSegmentADFS = "adfs"
	tenantPathSegmentB2C  = "tfp"
)

type jsonCaller interface {
	JSONCall(ctx context.Context, endpoint string, headers http.Header, qv url.Values, body, resp interface{}) error
}

var aadTrustedHostList = map[string]bool{
	"login.windows.net":            true, // Microsoft Azure Worldwide - Used in validation scenarios where host is not this list
	"login.chinacloudapi.cn":       true, // Microsoft Azure China
	"login.microsoftonline.de":     true, // Microsoft Azure Blackforest
	"login-us.microsoftonline.com": true, // Microsoft Azure US Government - Legacy
	"login.microsoftonline.us":     true, // Microsoft Azure US Government
	"login.microsoftonline.com":    true, // Microsoft Azure Worldwide
	"login.cloudgovapi.us":         true, // Microsoft Azure US Government
}

// TrustedHost checks if an AAD host is trusted/valid.
func TrustedHost(host string) bool {
	return aadTrustedHostList[host]
}

// OAuthResponseBase holds the claims common to every OAuth2 response body. A
// non-empty Error means the server explained why the call failed.
type OAuthResponseBase struct {
	Error            string `json:"error"`
	SubError         string `json:"suberror"`
	ErrorDescription string `json:"error_description"`
	ErrorCodes       []int  `json:"error_codes"`
	CorrelationID    string `json:"correlation_id"`
}

// TenantDiscoveryResponse is the tenant endpoints from the OpenID configuration endpoint.
type TenantDiscoveryResponse struct {
	OAuthResponseBase

	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	Issuer                string `json:"issuer"`
}

// Validate validates that the response had the correct values required.
func (r *TenantDiscoveryResponse) Validate() error {
	if r.Error != "" {
		return errors.NewAuthError(r.Error, r.ErrorDescription)
	}
	switch "" {
	case r.AuthorizationEndpoint:
		return errors.NewAuthError(errors.UnknownResponse, "authorize endpoint was not found in the openid configuration")
	case r.TokenEndpoint:
		return errors.NewAuthError(errors.UnknownResponse, "token endpoint was not found in the openid configuration")
	}
	return nil
}

// InstanceDiscoveryResponse is the response from the instance discovery endpoint.
// On success TenantDiscoveryEndpoint points at the tenant's openid configuration.
type InstanceDiscoveryResponse struct {
	OAuthResponseBase

	TenantDiscoveryEndpoint string `json:"tenant_discovery_endpoint"`
}

// Validate validates the instance discovery response. A non-empty error claim is a
// terminal authority validation failure.
func (r *InstanceDiscoveryResponse) Validate() error {
	if r.Error != "" {
		return errors.NewAuthError(errors.AuthorityValidationFailed, fmt.Sprintf("%s: %s", r.Error, r.ErrorDescription))
	}
	if r.TenantDiscoveryEndpoint == "" {
		return errors.NewAuthError(errors.UnknownResponse, "instance discovery response did not include a tenant discovery endpoint")
	}
	return nil
}

// Info consists of information about the authority, derived from the configured
// authority URL at construction time.
type Info struct {
	Host                  string
	CanonicalAuthorityURI string
	AuthorityType         string
	Tenant                string
	// Policy is the B2C policy segment. Empty for AAD and ADFS.
	Policy            string
	ValidateAuthority bool
}

// NewInfoFromAuthorityURI creates an Info instance from the authority URL provided.
// The URL is normalized: the scheme must be https, AAD and ADFS authorities retain
// only the first path segment (the tenant), B2C authorities retain exactly three
// (tfp/tenant/policy). Extra path segments and query are dropped. Normalization is
// idempotent: feeding CanonicalAuthorityURI back in yields the same Info.
func NewInfoFromAuthorityURI(authorityURI string, validateAuthority bool) (Info, error) {
	canonical := strings.ToLower(strings.TrimSpace(authorityURI))

	u, err := url.Parse(canonical)
	if err != nil {
		return Info{}, errors.NewAuthError(errors.InvalidRequest, fmt.Sprintf("couldn't parse authority url %q: %v", authorityURI, err))
	}
	if u.Scheme != "https" {
		return Info{}, errors.NewAuthError(errors.InvalidRequest, fmt.Sprintf("authority(%s) must use the https scheme", authorityURI))
	}
	host := u.Hostname()
	if host == "" {
		return Info{}, errors.NewAuthError(errors.InvalidRequest, "authority url is missing a host")
	}

	segments := splitPath(u.EscapedPath())
	if len(segments) == 0 {
		return Info{}, errors.NewAuthError(errors.InvalidRequest, fmt.Sprintf("authority(%s) does not include a tenant segment", authorityURI))
	}

	info := Info{Host: host, ValidateAuthority: validateAuthority}
	switch segments[0] {
	case tenantPathSegmentB2C:
		// tfp/<tenant>/<policy> is the minimum shape for a B2C authority.
		if len(segments) < 3 {
			return Info{}, errors.NewAuthError(errors.InvalidRequest, fmt.Sprintf("B2C authority(%s) must include tfp, tenant and policy path segments", authorityURI))
		}
		info.AuthorityType = B2C
		info.Tenant = segments[1]
		info.Policy = segments[2]
		info.CanonicalAuthorityURI = fmt.Sprintf("https://%v/%v/%v/%v/", host, tenantPathSegmentB2C, segments[1], segments[2])
	case tenantPathSegmentADFS:
		info.AuthorityType = ADFS
		info.Tenant = segments[0]
		info.CanonicalAuthorityURI = fmt.Sprintf("https://%v/%v/", host, segments[0])
	default:
		info.AuthorityType = AAD
		info.Tenant = segments[0]
		info.CanonicalAuthorityURI = fmt.Sprintf("https://%v/%v/", host, segments[0])
	}
	return info, nil
}

func splitPath(escapedPath string) []string {
	var segments []string
	for _, s := range strings.Split(escapedPath, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// DomainFromUPN extracts the federation domain from a user principal name: the
// substring after the last "@". An empty or @-less UPN is an error.
func DomainFromUPN(userPrincipalName string) (string, error) {
	i := strings.LastIndex(userPrincipalName, "@")
	if i < 0 || i == len(userPrincipalName)-1 {
		return "", errors.NewAuthError(errors.InvalidRequest, fmt.Sprintf("user principal name(%s) has no domain suffix", userPrincipalName))
	}
	return userPrincipalName[i+1:], nil
}

// Endpoints consists of the endpoints from the tenant discovery response.
type Endpoints struct {
	AuthorizationEndpoint string
	TokenEndpoint         string

	authorityHost string
}

// NewEndpoints creates an Endpoints object.
func NewEndpoints(authorizationEndpoint, tokenEndpoint, authorityHost string) Endpoints {
	return Endpoints{AuthorizationEndpoint: authorizationEndpoint, TokenEndpoint: tokenEndpoint, authorityHost: authorityHost}
}

// IsZero reports whether the endpoints have not been resolved.
func (e Endpoints) IsZero() bool {
	return e == Endpoints{}
}

// AuthParams represents the parameters used for authorization for token acquisition.
// One is created per request and threaded through the whole pipeline.
type AuthParams struct {
	AuthorityInfo Info
	CorrelationID string
	Endpoints     Endpoints
	ClientID      string
	Redirecturi   string
	HomeAccountID string
	// Username is the UPN, used to derive the ADFS federation domain.
	Username string
	Scopes   []string
}

// NewAuthParams creates an authorization parameters object.
func NewAuthParams(clientID string, authorityInfo Info) AuthParams {
	return AuthParams{
		ClientID:      clientID,
		AuthorityInfo: authorityInfo,
		CorrelationID: uuid.New().String(),
	}
}

// Client represents the REST calls to authority backends.
type Client struct {
	// Comm provides the HTTP transport client.
	Comm jsonCaller // *comm.Client
}

// GetTenantDiscoveryResponse fetches the openid configuration document holding the
// tenant's authorize/token endpoints.
func (c Client) GetTenantDiscoveryResponse(ctx context.Context, openIDConfigurationEndpoint string) (TenantDiscoveryResponse, error) {
	resp := TenantDiscoveryResponse{}
	err := c.Comm.JSONCall(ctx, openIDConfigurationEndpoint, http.Header{}, nil, nil, &resp)
	return resp, err
}

// AADInstanceDiscovery validates an AAD authority host against the fixed discovery
// endpoint. The candidate authorize endpoint is passed for the server to verify.
func (c Client) AADInstanceDiscovery(ctx context.Context, authorityInfo Info) (InstanceDiscoveryResponse, error) {
	qv := url.Values{}
	qv.Set("api-version", "1.0")
	qv.Set("authorization_endpoint", fmt.Sprintf(authorizationEndpoint, authorityInfo.Host, authorityInfo.Tenant))

	endpoint := fmt.Sprintf(instanceDiscoveryEndpoint, defaultHost)

	resp := InstanceDiscoveryResponse{}
	err := c.Comm.JSONCall(ctx, endpoint, http.Header{}, qv, nil, &resp)
	return resp, err
}
