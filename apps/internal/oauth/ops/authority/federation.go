// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package authority

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/AzureAD/msal-mobile-go/apps/errors"
	log "github.com/sirupsen/logrus"
)

// DRS and WebFinger are the federation discovery documents used to establish that
// an ADFS authority is trusted for a UPN domain. Both are transient: they exist
// only during resolution and are never persisted.

const (
	drsOnPremEndpoint = "https://enterpriseregistration.%v/enrollmentserver/contract"
	drsCloudEndpoint  = "https://enterpriseregistration.windows.net/%v/enrollmentserver/contract"

	// trustedRealmRel is the link relation a WebFinger document asserts for realms
	// the identity provider trusts.
	trustedRealmRel = "http://schemas.microsoft.com/rel/trusted-realm"
)

// DRSMetadata is the device registration service document for a federation domain.
type DRSMetadata struct {
	IdentityProviderService struct {
		PassiveAuthEndpoint string `json:"PassiveAuthEndpoint"`
	} `json:"IdentityProviderService"`
}

// WebFingerLink is one link assertion in a WebFinger document.
type WebFingerLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// WebFingerMetadata is the WebFinger document fetched from a DRS passive auth host.
type WebFingerMetadata struct {
	Subject string          `json:"subject"`
	Links   []WebFingerLink `json:"links"`
}

// TrustsRealm reports whether the document asserts the given realm as trusted.
func (w WebFingerMetadata) TrustsRealm(realm string) bool {
	want := strings.ToLower(strings.TrimSuffix(realm, "/"))
	for _, link := range w.Links {
		if link.Rel == trustedRealmRel && strings.ToLower(strings.TrimSuffix(link.Href, "/")) == want {
			return true
		}
	}
	return false
}

// GetDRSMetadata fetches the DRS document for a federation domain. On-prem
// resolution is tried first; an unresolvable host there falls back to cloud
// resolution. An unresolvable host on the cloud endpoint is terminal.
func (c Client) GetDRSMetadata(ctx context.Context, domain string) (DRSMetadata, error) {
	resp, err := c.drsCall(ctx, fmt.Sprintf(drsOnPremEndpoint, domain))
	if err == nil {
		return resp, nil
	}
	if !errors.IsUnresolvableHost(err) {
		return DRSMetadata{}, err
	}
	log.Infof("DRS on-prem endpoint for domain %q did not resolve, falling back to cloud", domain)
	return c.drsCall(ctx, fmt.Sprintf(drsCloudEndpoint, url.PathEscape(domain)))
}

func (c Client) drsCall(ctx context.Context, endpoint string) (DRSMetadata, error) {
	qv := url.Values{}
	qv.Set("api-version", "1.0")

	resp := DRSMetadata{}
	err := c.Comm.JSONCall(ctx, endpoint, http.Header{}, qv, nil, &resp)
	if err != nil {
		return DRSMetadata{}, err
	}
	if resp.IdentityProviderService.PassiveAuthEndpoint == "" {
		return DRSMetadata{}, errors.NewAuthError(errors.UnknownResponse, "DRS metadata did not include a passive auth endpoint")
	}
	return resp, nil
}

// GetWebFingerMetadata fetches the WebFinger document from the host of the DRS
// passive auth endpoint, asking about the authority as the resource.
func (c Client) GetWebFingerMetadata(ctx context.Context, passiveAuthEndpoint string, authorityInfo Info) (WebFingerMetadata, error) {
	u, err := url.Parse(passiveAuthEndpoint)
	if err != nil {
		return WebFingerMetadata{}, errors.NewAuthError(errors.UnknownResponse, fmt.Sprintf("DRS passive auth endpoint(%s) is not a valid url: %v", passiveAuthEndpoint, err))
	}

	endpoint := fmt.Sprintf("https://%v/.well-known/webfinger", u.Host)
	qv := url.Values{}
	qv.Set("resource", authorityInfo.CanonicalAuthorityURI)

	resp := WebFingerMetadata{}
	err = c.Comm.JSONCall(ctx, endpoint, http.Header{}, qv, nil, &resp)
	return resp, err
}
