// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package errors defines the error types surfaced by this module. AuthError carries
// the stable error code strings callers branch on. CallErr wraps HTTP transport
// failures and keeps the request/response around for verbose diagnostics.
package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kylelemons/godebug/pretty"
)

var prettyConf = &pretty.Config{IncludeUnexported: false, SkipZeroFields: true, TrackCycles: true}

type verboser interface {
	Verbose() string
}

// Verbose prints the most verbose error that the error message has.
func Verbose(err error) string {
	if v, ok := err.(verboser); ok {
		return v.Verbose()
	}
	return err.Error()
}

// New is equivalent to errors.New().
func New(text string) error {
	return errors.New(text)
}

// Is is equivalent to errors.Is().
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is equivalent to errors.As().
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Error codes carried by AuthError. These are stable strings for programmatic
// branching; the Desc field carries the human readable detail.
const (
	// InvalidRequest indicates a client-side configuration problem (bad authority
	// URL, missing required argument). Never retryable.
	InvalidRequest = "invalid_request"
	// AuthorityValidationFailed indicates instance discovery or federation trust
	// validation rejected the configured authority.
	AuthorityValidationFailed = "authority_validation_failed"
	// B2CValidationNotSupported indicates authority validation was requested for a
	// B2C authority, which has no validation protocol.
	B2CValidationNotSupported = "b2c_authority_validation_not_supported"
	// UnknownResponse indicates the server returned a payload missing required
	// claims and no error claim explaining why.
	UnknownResponse = "unknown_response"
	// InvalidJWT indicates a token that could not be parsed.
	InvalidJWT = "invalid_jwt"
	// MultipleMatchingTokens indicates more than one refresh token matched a cache
	// key that admits only one entry. This is a cache consistency bug, not a
	// normal failure path.
	MultipleMatchingTokens = "multiple_matching_tokens"
	// NoTokensFound indicates the cache had no usable token for a silent request.
	NoTokensFound = "no_tokens_found"
)

// AuthError is an error from the authentication pipeline: either a server-reported
// OAuth2 protocol error (Code/Desc preserved verbatim from the response body) or a
// client-side condition using one of the code constants above.
type AuthError struct {
	// Code is a stable error code string.
	Code string
	// Desc is the human readable description.
	Desc string
}

// Error implements error.Error().
func (e AuthError) Error() string {
	if e.Desc == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Desc)
}

// NewAuthError creates an AuthError.
func NewAuthError(code, desc string) AuthError {
	return AuthError{Code: code, Desc: desc}
}

// CallErr represents an HTTP call error. Has a Verbose() method that allows getting the
// http.Request and Response objects. Implements error.
type CallErr struct {
	Req  *http.Request
	Resp *http.Response
	Err  error
}

// Error implements error.Error().
func (e CallErr) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e CallErr) Unwrap() error {
	return e.Err
}

// Verbose prints a verbose error message with the request or response.
func (e CallErr) Verbose() string {
	return fmt.Sprintf("%s:\n\tRequest:\n%s\n\tResponse:\n%s", e.Err, prettyConf.Sprint(e.Req), prettyConf.Sprint(e.Resp))
}

// IsUnresolvableHost reports whether err is a transport failure caused by a
// hostname that could not be resolved. The ADFS DRS requestor uses this to
// distinguish "on-prem endpoint does not exist, try the cloud endpoint" from
// every other transport failure, which is terminal.
func IsUnresolvableHost(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
