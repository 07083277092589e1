// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package storage

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
)

func rawB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func testClientInfo() string {
	return rawB64(`{"uid": "uid-1", "utid": "utid-1"}`)
}

func testRawIDToken() string {
	claims := rawB64(`{"preferred_username": "user@contoso.com", "name": "A User", "oid": "oid-1", "tid": "tid-1", "iss": "https://sts"}`)
	return rawB64(`{"alg":"none"}`) + "." + claims + ".signature"
}

func TestCanonicalScopes(t *testing.T) {
	tests := []struct {
		desc   string
		scopes []string
		want   []string
	}{
		{desc: "sorted and lowered", scopes: []string{"User.Read", "openid"}, want: []string{"openid", "user.read"}},
		{desc: "duplicates collapse", scopes: []string{"a", "A", " a "}, want: []string{"a"}},
		{desc: "empty entries dropped", scopes: []string{"", " ", "b"}, want: []string{"b"}},
		{desc: "nil", scopes: nil, want: []string{}},
	}

	for _, test := range tests {
		got := CanonicalScopes(test.scopes)
		if diff := pretty.Compare(test.want, got); diff != "" {
			t.Errorf("TestCanonicalScopes(%s): -want/+got:\n%s", test.desc, diff)
		}
	}
}

func TestAccessTokenKey(t *testing.T) {
	at := NewAccessToken(
		"https://login.microsoftonline.com/contoso.com/",
		"login.microsoftonline.com",
		"contoso.com",
		"client-id",
		"uid-1.utid-1",
		time.Now(), time.Now().Add(time.Hour), time.Now().Add(2*time.Hour),
		[]string{"User.Read", "openid"},
		"Bearer", "secret", "", "",
	)

	want := strings.Join([]string{
		rawB64("https://login.microsoftonline.com/contoso.com/"),
		rawB64("client-id"),
		rawB64("openid user.read"),
		"uid-1.utid-1",
	}, "$")
	if got := at.Key(); got != want {
		t.Errorf("TestAccessTokenKey: got %q, want %q", got, want)
	}
}

func TestAccessTokenKeyCanonicalization(t *testing.T) {
	build := func(authority, clientID string, scopes []string) string {
		return NewAccessToken(authority, "env", "realm", clientID, "home", time.Now(), time.Now(), time.Now(), scopes, "Bearer", "secret", "", "").Key()
	}

	base := build("https://login.microsoftonline.com/contoso.com/", "client-id", []string{"user.read", "openid"})

	same := []struct {
		desc string
		key  string
	}{
		{desc: "scope order", key: build("https://login.microsoftonline.com/contoso.com/", "client-id", []string{"openid", "user.read"})},
		{desc: "scope case", key: build("https://login.microsoftonline.com/contoso.com/", "client-id", []string{"User.Read", "OPENID"})},
		{desc: "authority case", key: build("https://LOGIN.microsoftonline.com/contoso.com/", "client-id", []string{"user.read", "openid"})},
		{desc: "client id case", key: build("https://login.microsoftonline.com/contoso.com/", "CLIENT-ID", []string{"user.read", "openid"})},
	}
	for _, s := range same {
		if s.key != base {
			t.Errorf("TestAccessTokenKeyCanonicalization(%s): keys differ:\n%s\n%s", s.desc, s.key, base)
		}
	}

	different := []struct {
		desc string
		key  string
	}{
		{desc: "extra scope", key: build("https://login.microsoftonline.com/contoso.com/", "client-id", []string{"user.read", "openid", "mail.read"})},
		{desc: "other authority", key: build("https://login.microsoftonline.com/other.com/", "client-id", []string{"user.read", "openid"})},
		{desc: "other client", key: build("https://login.microsoftonline.com/contoso.com/", "other-client", []string{"user.read", "openid"})},
	}
	for _, d := range different {
		if d.key == base {
			t.Errorf("TestAccessTokenKeyCanonicalization(%s): keys did not differ", d.desc)
		}
	}
}

func TestRefreshTokenKey(t *testing.T) {
	rt := NewRefreshToken("Login.Microsoftonline.com", "Client-ID", "uid-1.utid-1", "secret", "", "", "", "")

	want := strings.Join([]string{
		rawB64("login.microsoftonline.com"),
		rawB64("client-id"),
		"uid-1.utid-1",
	}, "$")
	if got := rt.Key(); got != want {
		t.Errorf("TestRefreshTokenKey: got %q, want %q", got, want)
	}
}

func TestAccessTokenScopeMatching(t *testing.T) {
	at := NewAccessToken("a", "e", "r", "c", "h", time.Now(), time.Now(), time.Now(), []string{"user.read", "openid"}, "Bearer", "s", "", "")

	tests := []struct {
		desc       string
		scopes     []string
		matches    bool
		intersects bool
	}{
		{desc: "exact set", scopes: []string{"openid", "user.read"}, matches: true, intersects: true},
		{desc: "case insensitive", scopes: []string{"OPENID", "User.Read"}, matches: true, intersects: true},
		{desc: "subset", scopes: []string{"user.read"}, matches: false, intersects: true},
		{desc: "superset", scopes: []string{"user.read", "openid", "mail.read"}, matches: false, intersects: true},
		{desc: "overlap", scopes: []string{"mail.read", "openid"}, matches: false, intersects: true},
		{desc: "disjoint", scopes: []string{"mail.read"}, matches: false, intersects: false},
		{desc: "empty", scopes: nil, matches: false, intersects: false},
	}

	for _, test := range tests {
		if got := at.MatchesScopes(test.scopes); got != test.matches {
			t.Errorf("TestAccessTokenScopeMatching(%s): MatchesScopes got %v, want %v", test.desc, got, test.matches)
		}
		if got := at.IntersectsScopes(test.scopes); got != test.intersects {
			t.Errorf("TestAccessTokenScopeMatching(%s): IntersectsScopes got %v, want %v", test.desc, got, test.intersects)
		}
	}
}

func TestAccessTokenValidate(t *testing.T) {
	now := time.Now()
	build := func(cachedAt, expiresOn time.Time) AccessToken {
		return NewAccessToken("a", "e", "r", "c", "h", cachedAt, expiresOn, expiresOn, []string{"s"}, "Bearer", "secret", "", "")
	}

	tests := []struct {
		desc  string
		token AccessToken
		err   bool
	}{
		{desc: "well within lifetime", token: build(now.Add(-time.Minute), now.Add(time.Hour))},
		{desc: "just past the early refresh buffer", token: build(now.Add(-time.Minute), now.Add(301*time.Second))},
		{desc: "inside the early refresh buffer", token: build(now.Add(-time.Minute), now.Add(299*time.Second)), err: true},
		{desc: "already expired", token: build(now.Add(-2*time.Hour), now.Add(-time.Hour)), err: true},
		{desc: "cached in the future", token: build(now.Add(time.Hour), now.Add(2*time.Hour)), err: true},
		{desc: "cached at zero", token: build(time.Time{}, now.Add(time.Hour)), err: true},
	}

	for _, test := range tests {
		err := test.token.Validate()
		switch {
		case err == nil && test.err:
			t.Errorf("TestAccessTokenValidate(%s): got err == nil, want err != nil", test.desc)
		case err != nil && !test.err:
			t.Errorf("TestAccessTokenValidate(%s): got err == %s, want err == nil", test.desc, err)
		}
	}
}

func TestAccessTokenSerializationRoundTrip(t *testing.T) {
	at := NewAccessToken(
		"https://login.microsoftonline.com/contoso.com/",
		"login.microsoftonline.com", "contoso.com", "client-id", "uid-1.utid-1",
		time.Now(), time.Now().Add(time.Hour), time.Now().Add(2*time.Hour),
		[]string{"user.read"}, "Bearer", "secret", testRawIDToken(), testClientInfo(),
	)

	b, err := json.Marshal(at)
	if err != nil {
		t.Fatalf("TestAccessTokenSerializationRoundTrip: marshal: %s", err)
	}
	got := AccessToken{}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("TestAccessTokenSerializationRoundTrip: unmarshal: %s", err)
	}

	if got.Key() != at.Key() {
		t.Errorf("TestAccessTokenSerializationRoundTrip: key changed across serialization")
	}
	if !got.Account().IsZero() {
		t.Errorf("TestAccessTokenSerializationRoundTrip: account was populated before Rehydrate")
	}

	if err := got.Rehydrate(); err != nil {
		t.Fatalf("TestAccessTokenSerializationRoundTrip: Rehydrate: %s", err)
	}
	acc := got.Account()
	if acc.HomeAccountID != "uid-1.utid-1" {
		t.Errorf("TestAccessTokenSerializationRoundTrip: home account id was %q", acc.HomeAccountID)
	}
	if acc.PreferredUsername != "user@contoso.com" {
		t.Errorf("TestAccessTokenSerializationRoundTrip: username was %q", acc.PreferredUsername)
	}
	if acc.LocalAccountID != "oid-1" {
		t.Errorf("TestAccessTokenSerializationRoundTrip: local account id was %q", acc.LocalAccountID)
	}
}

func TestRefreshTokenRehydrate(t *testing.T) {
	rt := NewRefreshToken("login.microsoftonline.com", "client-id", "uid-1.utid-1", "secret", "user@contoso.com", "A User", "https://sts", testClientInfo())

	b, err := json.Marshal(rt)
	if err != nil {
		t.Fatalf("TestRefreshTokenRehydrate: marshal: %s", err)
	}
	got := RefreshToken{}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("TestRefreshTokenRehydrate: unmarshal: %s", err)
	}
	if err := got.Rehydrate(); err != nil {
		t.Fatalf("TestRefreshTokenRehydrate: Rehydrate: %s", err)
	}

	acc := got.Account()
	if acc.HomeAccountID != "uid-1.utid-1" {
		t.Errorf("TestRefreshTokenRehydrate: home account id was %q", acc.HomeAccountID)
	}
	if acc.PreferredUsername != "user@contoso.com" {
		t.Errorf("TestRefreshTokenRehydrate: username was %q", acc.PreferredUsername)
	}
	if acc.Environment != "login.microsoftonline.com" {
		t.Errorf("TestRefreshTokenRehydrate: environment was %q", acc.Environment)
	}
}
