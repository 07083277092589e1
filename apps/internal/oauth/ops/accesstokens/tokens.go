// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package accesstokens

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/AzureAD/msal-mobile-go/apps/errors"
	internalTime "github.com/AzureAD/msal-mobile-go/apps/internal/json/types/time"
	"github.com/AzureAD/msal-mobile-go/apps/internal/oauth/ops/authority"
	"github.com/golang-jwt/jwt/v5"
)

// TokenResponseJSONPayload is the raw wire shape of a token endpoint response.
// It is converted to a TokenResponse by NewTokenResponse, which resolves the
// seconds-from-now lifetimes against the local clock and decodes the embedded
// ID token and client info.
type TokenResponseJSONPayload struct {
	authority.OAuthResponseBase

	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// The server reports lifetimes as seconds-from-now deltas, sometimes quoted.
	// DurationTime resolves them against the local clock at parse time.
	ExpiresIn    internalTime.DurationTime `json:"expires_in"`
	ExtExpiresIn internalTime.DurationTime `json:"ext_expires_in"`
	Scope        string                    `json:"scope"`
	TokenType    string                    `json:"token_type"`
	IDToken      string                    `json:"id_token"`
	ClientInfo   string                    `json:"client_info"`
}

// ClientInfo identifies the user a token was issued to. The server sends it as a
// base64url encoded JSON blob in the client_info field.
type ClientInfo struct {
	UID  string `json:"uid"`
	UTID string `json:"utid"`
}

// HomeAccountID derives the stable user identifier from the client info. Empty if
// either component is missing.
func (c ClientInfo) HomeAccountID() string {
	if c.UID == "" || c.UTID == "" {
		return ""
	}
	return fmt.Sprintf("%s.%s", c.UID, c.UTID)
}

// NewClientInfo decodes a raw client_info blob.
func NewClientInfo(rawClientInfo string) (ClientInfo, error) {
	ci := ClientInfo{}
	if rawClientInfo == "" {
		return ci, nil
	}
	decoded, err := decodeSegment(rawClientInfo)
	if err != nil {
		return ClientInfo{}, errors.NewAuthError(errors.InvalidJWT, fmt.Sprintf("client_info was not base64url decodable: %v", err))
	}
	if err := json.Unmarshal(decoded, &ci); err != nil {
		return ClientInfo{}, errors.NewAuthError(errors.InvalidJWT, fmt.Sprintf("client_info was not valid JSON: %v", err))
	}
	return ci, nil
}

// IDToken consists of the claims used to identify a user, parsed from the body
// segment of the JWT the server returned. The signature is not verified here;
// signature trust is delegated to the issuing server and transport channel.
type IDToken struct {
	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
	Oid               string `json:"oid,omitempty"`
	TenantID          string `json:"tid,omitempty"`
	Subject           string `json:"sub,omitempty"`
	UPN               string `json:"upn,omitempty"`
	Email             string `json:"email,omitempty"`
	Issuer            string `json:"iss,omitempty"`
	Audience          string `json:"aud,omitempty"`
	ExpirationTime    int64  `json:"exp,omitempty"`
	IssuedAt          int64  `json:"iat,omitempty"`
	RawToken          string `json:"-"`
}

// NewIDToken creates an ID token instance from a JWT. The token must have the
// standard three dot-delimited segments or it is rejected as malformed.
func NewIDToken(raw string) (IDToken, error) {
	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return IDToken{}, errors.NewAuthError(errors.InvalidJWT, "id token returned from server does not have three segments")
	}
	body, err := decodeSegment(segments[1])
	if err != nil {
		return IDToken{}, errors.NewAuthError(errors.InvalidJWT, fmt.Sprintf("id token body segment could not be decoded: %v", err))
	}
	idToken := IDToken{}
	if err := json.Unmarshal(body, &idToken); err != nil {
		return IDToken{}, errors.NewAuthError(errors.InvalidJWT, fmt.Sprintf("id token body was not valid JSON: %v", err))
	}
	idToken.RawToken = raw
	return idToken, nil
}

// IsZero indicates if the IDToken is the zero value.
func (i IDToken) IsZero() bool {
	v := reflect.ValueOf(i)
	for j := 0; j < v.NumField(); j++ {
		if !v.Field(j).IsZero() {
			return false
		}
	}
	return true
}

// LocalAccountID extracts an account's local account ID from an ID token.
func (i IDToken) LocalAccountID() string {
	if i.Oid != "" {
		return i.Oid
	}
	return i.Subject
}

// DisplayableID is the email-shaped username for the user.
func (i IDToken) DisplayableID() string {
	if i.PreferredUsername != "" {
		return i.PreferredUsername
	}
	return i.UPN
}

// decodeSegment decodes a base64url segment, tolerating missing padding, using
// the JWT library's segment decoder so our handling matches standard JWT parsing.
func decodeSegment(seg string) ([]byte, error) {
	return jwt.NewParser().DecodeSegment(seg)
}

// TokenResponse is the information that is returned from a token endpoint during
// a token acquisition flow.
type TokenResponse struct {
	authority.OAuthResponseBase

	AccessToken    string
	RefreshToken   string
	IDToken        IDToken
	TokenType      string
	GrantedScopes  []string
	DeclinedScopes []string
	ExpiresOn      time.Time
	ExtExpiresOn   time.Time
	RawClientInfo  string
	ClientInfo     ClientInfo
}

// HasAccessToken checks if the TokenResponse has an access token.
func (tr TokenResponse) HasAccessToken() bool {
	return len(tr.AccessToken) > 0
}

// HasRefreshToken checks if the TokenResponse has a refresh token.
func (tr TokenResponse) HasRefreshToken() bool {
	return len(tr.RefreshToken) > 0
}

// NewTokenResponse creates a TokenResponse instance from the response from the token endpoint.
func NewTokenResponse(authParams authority.AuthParams, payload TokenResponseJSONPayload) (TokenResponse, error) {
	if payload.Error != "" {
		return TokenResponse{}, errors.NewAuthError(payload.Error, payload.ErrorDescription)
	}
	if payload.AccessToken == "" {
		// Access token is required in a token response.
		return TokenResponse{}, errors.NewAuthError(errors.UnknownResponse, "response is missing access_token")
	}

	clientInfo, err := NewClientInfo(payload.ClientInfo)
	if err != nil {
		return TokenResponse{}, err
	}

	expiresOn := payload.ExpiresIn.T
	extExpiresOn := payload.ExtExpiresIn.T

	var grantedScopes, declinedScopes []string
	if len(payload.Scope) == 0 {
		// Per OAuth spec, if no scopes are returned, the response should be treated
		// as if all requested scopes were granted.
		// https://tools.ietf.org/html/rfc6749#section-3.3
		grantedScopes = authParams.Scopes
	} else {
		grantedScopes = strings.Split(strings.ToLower(payload.Scope), " ")
		declinedScopes = findDeclinedScopes(authParams.Scopes, grantedScopes)
	}

	// ID tokens aren't returned in every flow, which is not a reportable error.
	idToken, _ := NewIDToken(payload.IDToken)

	return TokenResponse{
		OAuthResponseBase: payload.OAuthResponseBase,
		AccessToken:       payload.AccessToken,
		RefreshToken:      payload.RefreshToken,
		IDToken:           idToken,
		TokenType:         payload.TokenType,
		ExpiresOn:         expiresOn,
		ExtExpiresOn:      extExpiresOn,
		GrantedScopes:     grantedScopes,
		DeclinedScopes:    declinedScopes,
		RawClientInfo:     payload.ClientInfo,
		ClientInfo:        clientInfo,
	}, nil
}

func findDeclinedScopes(requestedScopes, grantedScopes []string) []string {
	granted := map[string]bool{}
	for _, s := range grantedScopes {
		granted[s] = true
	}
	var declined []string
	for _, r := range requestedScopes {
		if !granted[strings.ToLower(r)] {
			declined = append(declined, r)
		}
	}
	return declined
}
