// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package oauth

import (
	"context"
	"strings"
	"sync"

	"github.com/AzureAD/msal-mobile-go/apps/errors"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/authority"
	log "github.com/sirupsen/logrus"
)

// authorityClient is the slice of authority.Client the resolver needs. It is an
// interface to allow faking the discovery backends in tests.
type authorityClient interface {
	GetTenantDiscoveryResponse(ctx context.Context, openIDConfigurationEndpoint string) (authority.TenantDiscoveryResponse, error)
	AADInstanceDiscovery(ctx context.Context, authorityInfo authority.Info) (authority.InstanceDiscoveryResponse, error)
	GetDRSMetadata(ctx context.Context, domain string) (authority.DRSMetadata, error)
	GetWebFingerMetadata(ctx context.Context, passiveAuthEndpoint string, authorityInfo authority.Info) (authority.WebFingerMetadata, error)
}

// cacheEntry is one validated authority. Endpoints holds the resolved
// authorize/token endpoints; ValidForDomainsInList holds the UPN domains trust
// was established for (ADFS only; AAD/B2C trust is per authority URL).
type cacheEntry struct {
	Endpoints             authority.Endpoints
	ValidForDomainsInList map[string]bool
}

func newCacheEntry(endpoints authority.Endpoints) cacheEntry {
	return cacheEntry{Endpoints: endpoints, ValidForDomainsInList: map[string]bool{}}
}

// authorityEndpoint resolves authorities into authorize/token endpoints and caches
// the results for the life of the owning client. Entries are only ever added, never
// evicted: authority configuration is static per app. Two concurrent requests for a
// never-before-seen authority may both perform network discovery; the second write
// wins and the duplication is harmless.
type authorityEndpoint struct {
	rest authorityClient

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// newAuthorityEndpoint is the constructor for authorityEndpoint.
func newAuthorityEndpoint(rest authorityClient) *authorityEndpoint {
	return &authorityEndpoint{rest: rest, cache: map[string]cacheEntry{}}
}

// ResolveEndpoints gets the authorization and token endpoints and creates an
// authority.Endpoints instance. userPrincipalName is required only for validated
// ADFS authorities, where trust is established per UPN domain.
func (m *authorityEndpoint) ResolveEndpoints(ctx context.Context, authorityInfo authority.Info, userPrincipalName string) (authority.Endpoints, error) {
	var domain string
	if authorityInfo.AuthorityType == authority.ADFS && authorityInfo.ValidateAuthority {
		var err error
		if domain, err = authority.DomainFromUPN(userPrincipalName); err != nil {
			return authority.Endpoints{}, err
		}
	}

	if endpoints, found := m.cachedEndpoints(authorityInfo, domain); found {
		return endpoints, nil
	}

	endpoint, err := m.openIDConfigurationEndpoint(ctx, authorityInfo, domain)
	if err != nil {
		return authority.Endpoints{}, err
	}

	resp, err := m.rest.GetTenantDiscoveryResponse(ctx, endpoint)
	if err != nil {
		return authority.Endpoints{}, err
	}
	if err := resp.Validate(); err != nil {
		return authority.Endpoints{}, err
	}

	tenant := authorityInfo.Tenant
	endpoints := authority.NewEndpoints(
		strings.Replace(resp.AuthorizationEndpoint, "{tenant}", tenant, -1),
		strings.Replace(resp.TokenEndpoint, "{tenant}", tenant, -1),
		authorityInfo.Host)

	m.addCachedEndpoints(authorityInfo, domain, endpoints)

	return endpoints, nil
}

// cachedEndpoints returns the cached endpoints if they exist. For a validated ADFS
// authority, a cache entry only counts if trust was established for the domain.
func (m *authorityEndpoint) cachedEndpoints(authorityInfo authority.Info, domain string) (authority.Endpoints, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache[authorityInfo.CanonicalAuthorityURI]
	if !ok {
		return authority.Endpoints{}, false
	}
	if authorityInfo.AuthorityType == authority.ADFS && authorityInfo.ValidateAuthority {
		if !entry.ValidForDomainsInList[domain] {
			return authority.Endpoints{}, false
		}
	}
	return entry.Endpoints, true
}

func (m *authorityEndpoint) addCachedEndpoints(authorityInfo authority.Info, domain string, endpoints authority.Endpoints) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := newCacheEntry(endpoints)
	if authorityInfo.AuthorityType == authority.ADFS {
		// Carry forward domains already validated against this authority.
		if entry, ok := m.cache[authorityInfo.CanonicalAuthorityURI]; ok {
			for k := range entry.ValidForDomainsInList {
				updated.ValidForDomainsInList[k] = true
			}
		}
		if domain != "" {
			updated.ValidForDomainsInList[domain] = true
		}
	}
	m.cache[authorityInfo.CanonicalAuthorityURI] = updated
}

// openIDConfigurationEndpoint performs the type-specific instance discovery step
// and returns the openid configuration endpoint to fetch tenant endpoints from.
func (m *authorityEndpoint) openIDConfigurationEndpoint(ctx context.Context, authorityInfo authority.Info, domain string) (string, error) {
	switch authorityInfo.AuthorityType {
	case authority.B2C:
		if authorityInfo.ValidateAuthority {
			return "", errors.NewAuthError(errors.B2CValidationNotSupported, "authority validation is not supported for B2C authorities")
		}

	case authority.ADFS:
		if authorityInfo.ValidateAuthority {
			if err := m.validateADFSDomain(ctx, authorityInfo, domain); err != nil {
				return "", err
			}
		}
		// ADFS openid configuration is not tenant versioned.
		return authorityInfo.CanonicalAuthorityURI + ".well-known/openid-configuration", nil

	case authority.AAD:
		if authorityInfo.ValidateAuthority && !authority.TrustedHost(authorityInfo.Host) {
			resp, err := m.rest.AADInstanceDiscovery(ctx, authorityInfo)
			if err != nil {
				return "", err
			}
			if err := resp.Validate(); err != nil {
				return "", err
			}
			return resp.TenantDiscoveryEndpoint, nil
		}
	}

	return authorityInfo.CanonicalAuthorityURI + "v2.0/.well-known/openid-configuration", nil
}

// validateADFSDomain establishes federation trust for an (authority, domain) pair:
// DRS metadata for the domain, then the WebFinger document from the DRS passive
// auth host, which must assert the authority as a trusted realm.
func (m *authorityEndpoint) validateADFSDomain(ctx context.Context, authorityInfo authority.Info, domain string) error {
	drs, err := m.rest.GetDRSMetadata(ctx, domain)
	if err != nil {
		return err
	}

	webFinger, err := m.rest.GetWebFingerMetadata(ctx, drs.IdentityProviderService.PassiveAuthEndpoint, authorityInfo)
	if err != nil {
		return err
	}

	if !webFinger.TrustsRealm(authorityInfo.CanonicalAuthorityURI) {
		return errors.NewAuthError(errors.AuthorityValidationFailed,
			"WebFinger document does not assert the authority as a trusted realm for domain "+domain)
	}
	log.Infof("established federation trust for authority %q, domain %q", authorityInfo.CanonicalAuthorityURI, domain)
	return nil
}
