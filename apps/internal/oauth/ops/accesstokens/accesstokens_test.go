// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package accesstokens

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/authority"
)

type fakeURLFormCaller struct {
	err bool

	gotEndpoint string
	gotHeaders  http.Header
	gotQV       url.Values
}

func (f *fakeURLFormCaller) URLFormCall(ctx context.Context, endpoint string, headers http.Header, qv url.Values, resp interface{}) error {
	if f.err {
		return context.DeadlineExceeded
	}
	f.gotEndpoint = endpoint
	f.gotHeaders = headers
	f.gotQV = qv

	payload, ok := resp.(*TokenResponseJSONPayload)
	if !ok {
		panic("resp was not a *TokenResponseJSONPayload")
	}
	payload.AccessToken = "access-token"
	return nil
}

func testAuthParams() authority.AuthParams {
	return authority.AuthParams{
		ClientID:    "client-id",
		Redirecturi: "https://redirect",
		Scopes:      []string{"user.read"},
		Endpoints: authority.NewEndpoints(
			"https://login.microsoftonline.com/contoso.com/oauth2/v2.0/authorize",
			"https://login.microsoftonline.com/contoso.com/oauth2/v2.0/token",
			"login.microsoftonline.com"),
	}
}

func TestFromAuthCode(t *testing.T) {
	fake := &fakeURLFormCaller{}
	client := Client{Comm: fake}

	resp, err := client.FromAuthCode(context.Background(), testAuthParams(), "the-code", "the-verifier")
	if err != nil {
		t.Fatalf("TestFromAuthCode: got err == %s, want err == nil", err)
	}
	if resp.AccessToken != "access-token" {
		t.Errorf("TestFromAuthCode: access token was %q", resp.AccessToken)
	}
	if fake.gotEndpoint != "https://login.microsoftonline.com/contoso.com/oauth2/v2.0/token" {
		t.Errorf("TestFromAuthCode: call went to %s, want the token endpoint", fake.gotEndpoint)
	}

	want := map[string]string{
		"grant_type":    "authorization_code",
		"code":          "the-code",
		"code_verifier": "the-verifier",
		"redirect_uri":  "https://redirect",
		"client_id":     "client-id",
		"client_info":   "1",
		"scope":         "user.read openid offline_access profile",
	}
	for k, v := range want {
		if got := fake.gotQV.Get(k); got != v {
			t.Errorf("TestFromAuthCode: form field %s was %q, want %q", k, got, v)
		}
	}
}

func TestFromAuthCodeOmitsEmptyVerifier(t *testing.T) {
	fake := &fakeURLFormCaller{}
	client := Client{Comm: fake}

	if _, err := client.FromAuthCode(context.Background(), testAuthParams(), "the-code", ""); err != nil {
		t.Fatalf("TestFromAuthCodeOmitsEmptyVerifier: got err == %s, want err == nil", err)
	}
	if _, ok := fake.gotQV["code_verifier"]; ok {
		t.Errorf("TestFromAuthCodeOmitsEmptyVerifier: code_verifier was sent for a request without PKCE")
	}
}

func TestFromRefreshToken(t *testing.T) {
	fake := &fakeURLFormCaller{}
	client := Client{Comm: fake}

	resp, err := client.FromRefreshToken(context.Background(), testAuthParams(), "the-refresh-token")
	if err != nil {
		t.Fatalf("TestFromRefreshToken: got err == %s, want err == nil", err)
	}
	if resp.AccessToken != "access-token" {
		t.Errorf("TestFromRefreshToken: access token was %q", resp.AccessToken)
	}

	want := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": "the-refresh-token",
		"client_id":     "client-id",
		"client_info":   "1",
		"scope":         "user.read openid offline_access profile",
	}
	for k, v := range want {
		if got := fake.gotQV.Get(k); got != v {
			t.Errorf("TestFromRefreshToken: form field %s was %q, want %q", k, got, v)
		}
	}
}

func TestTokenCallCarriesCorrelationID(t *testing.T) {
	fake := &fakeURLFormCaller{}
	client := Client{Comm: fake}

	params := testAuthParams()
	params.CorrelationID = "request-correlation-id"
	if _, err := client.FromRefreshToken(context.Background(), params, "rt"); err != nil {
		t.Fatalf("TestTokenCallCarriesCorrelationID: got err == %s, want err == nil", err)
	}
	if got := fake.gotHeaders.Get("client-request-id"); got != "request-correlation-id" {
		t.Errorf("TestTokenCallCarriesCorrelationID: client-request-id was %q, want the request's id", got)
	}
}

func TestTokenCallTransportError(t *testing.T) {
	client := Client{Comm: &fakeURLFormCaller{err: true}}
	if _, err := client.FromRefreshToken(context.Background(), testAuthParams(), "rt"); err == nil {
		t.Errorf("TestTokenCallTransportError: got err == nil, want err != nil")
	}
}
