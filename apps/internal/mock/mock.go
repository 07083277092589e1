// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package mock

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

type response struct {
	body     []byte
	callback func(*http.Request)
	code     int
	headers  http.Header
}

type responseOption interface {
	apply(*response)
}

type respOpt func(*response)

func (fn respOpt) apply(r *response) {
	fn(r)
}

// WithBody sets the HTTP response's body to the specified value.
func WithBody(b []byte) responseOption {
	return respOpt(func(r *response) {
		r.body = b
	})
}

// WithCallback sets a callback to invoke before returning the response.
func WithCallback(callback func(*http.Request)) responseOption {
	return respOpt(func(r *response) {
		r.callback = callback
	})
}

// WithHTTPHeader sets the HTTP headers of the response to the specified value.
func WithHTTPHeader(header http.Header) responseOption {
	return respOpt(func(r *response) {
		r.headers = header
	})
}

// WithHTTPStatusCode sets the HTTP statusCode of response to the specified value.
func WithHTTPStatusCode(statusCode int) responseOption {
	return respOpt(func(r *response) {
		r.code = statusCode
	})
}

// Client is a mock HTTP client that returns a sequence of responses. Use
// AppendResponse to specify the sequence.
type Client struct {
	mu   *sync.Mutex
	resp []response
}

func NewClient() *Client {
	return &Client{mu: &sync.Mutex{}}
}

func (c *Client) AppendResponse(opts ...responseOption) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := response{code: http.StatusOK, headers: http.Header{}}
	for _, o := range opts {
		o.apply(&r)
	}
	c.resp = append(c.resp, r)
}

// Remaining reports how many queued responses were not consumed. Tests use it to
// assert exact call counts.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resp)
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.resp) == 0 {
		panic(fmt.Sprintf(`no response for "%s"`, req.URL.String()))
	}
	resp := c.resp[0]
	c.resp = c.resp[1:]
	if resp.callback != nil {
		resp.callback(req)
	}
	res := http.Response{Header: resp.headers, StatusCode: resp.code}
	res.Body = io.NopCloser(bytes.NewReader(resp.body))
	return &res, nil
}

// GetAccessTokenBody builds a token endpoint success body. Empty optional fields
// are omitted, matching server behavior.
func GetAccessTokenBody(accessToken, idToken, refreshToken, clientInfo, scope string, expiresIn int) []byte {
	body := fmt.Sprintf(`{"access_token": "%s","expires_in": %d,"token_type": "Bearer"`, accessToken, expiresIn)
	if clientInfo != "" {
		body += fmt.Sprintf(`, "client_info": "%s"`, clientInfo)
	}
	if idToken != "" {
		body += fmt.Sprintf(`, "id_token": "%s"`, idToken)
	}
	if refreshToken != "" {
		body += fmt.Sprintf(`, "refresh_token": "%s"`, refreshToken)
	}
	if scope != "" {
		body += fmt.Sprintf(`, "scope": "%s"`, scope)
	}
	body += "}"
	return []byte(body)
}

// GetIDToken builds a signed-looking but unverifiable JWT whose claims identify
// the given user in the given tenant.
func GetIDToken(tenant, issuer, oid, preferredUsername, name string) string {
	now := time.Now().Unix()
	payload := []byte(fmt.Sprintf(
		`{"aud": "%s","exp": %d,"iat": %d,"iss": "%s","tid": "%s","oid": "%s","sub": "%s","preferred_username": "%s","name": "%s"}`,
		tenant, now+3600, now, issuer, tenant, oid, oid, preferredUsername, name,
	))
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	return fmt.Sprintf("%s.%s.signature", header, base64.RawURLEncoding.EncodeToString(payload))
}

// GetClientInfo builds a raw client_info blob for the given user and tenant ids.
func GetClientInfo(uid, utid string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"uid": "%s", "utid": "%s"}`, uid, utid)))
}

// GetInstanceDiscoveryBody builds a minimal successful instance discovery
// response for the given authority host and tenant.
func GetInstanceDiscoveryBody(host, tenant string) []byte {
	authority := fmt.Sprintf("https://%s/%s", host, tenant)
	body := fmt.Sprintf(`{"tenant_discovery_endpoint": "%s/v2.0/.well-known/openid-configuration","api-version": "1.0","metadata": [{"preferred_network": "%s","preferred_cache": "%s","aliases": ["%s"]}]}`,
		authority, host, host, host,
	)
	return []byte(body)
}

// GetTenantDiscoveryBody builds a minimal OpenID configuration document for the
// given authority host and tenant.
func GetTenantDiscoveryBody(host, tenant string) []byte {
	authority := fmt.Sprintf("https://%s/%s", host, tenant)
	body := fmt.Sprintf(
		`{"token_endpoint": "%[1]s/oauth2/v2.0/token","authorization_endpoint": "%[1]s/oauth2/v2.0/authorize","issuer": "%[1]s/v2.0"}`,
		authority,
	)
	return []byte(body)
}

// GetDRSMetadataBody builds a device registration service document pointing
// passive auth at the given host.
func GetDRSMetadataBody(passiveAuthHost string) []byte {
	return []byte(fmt.Sprintf(
		`{"IdentityProviderService": {"PassiveAuthEndpoint": "https://%s/adfs/ls"}}`, passiveAuthHost,
	))
}

// GetWebFingerBody builds a WebFinger document that trusts the given realm.
func GetWebFingerBody(resource, realm string) []byte {
	return []byte(fmt.Sprintf(
		`{"subject": "%s","links": [{"rel": "http://schemas.microsoft.com/rel/trusted-realm","href": "%s"}]}`,
		resource, realm,
	))
}
