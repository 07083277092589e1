// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package comm provides helpers for communicating with HTTP backends. It owns the
// correlation id header on every outbound request, endpoint-typed JSON decoding
// and the translation of non-200 responses into server-explained OAuth errors.
package comm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"runtime"
	"strings"

	"github.com/AzureAD/msal-mobile-go/apps/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	productHeaderName       = "x-client-SKU"
	productHeaderValue      = "MSAL.Go.Mobile"
	osHeaderName            = "x-client-OS"
	correlationIDHeaderName = "client-request-id"
	echoHeaderName          = "return-client-request-id"
)

// testID is set by tests to make correlation ids deterministic.
var testID string

func id() string {
	if testID != "" {
		return testID
	}
	return uuid.New().String()
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides JSON and URL-form calls against HTTP backends.
type Client struct {
	client httpClient
}

// New returns a new Client object.
func New(httpClient httpClient) *Client {
	return &Client{client: httpClient}
}

// errorResponse is the error body shape every OAuth2 endpoint shares.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCodes       []int  `json:"error_codes"`
}

// JSONCall connects to the REST endpoint passing the HTTP query values and headers,
// and unmarshals the returned JSON into resp. If body is non-nil it is marshaled to
// JSON and sent as a POST, otherwise the call is a GET. resp must be a pointer to a
// struct matching the endpoint's response shape.
func (c *Client) JSONCall(ctx context.Context, endpoint string, headers http.Header, qv url.Values, body, resp interface{}) error {
	if err := checkResp(resp); err != nil {
		return err
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("could not parse endpoint(%s): %w", endpoint, err)
	}
	if qv != nil {
		u.RawQuery = qv.Encode()
	}

	method := http.MethodGet
	var reader io.Reader
	if body != nil {
		method = http.MethodPost
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("bug: conn.JSONCall(): could not marshal the body object: %w", err)
		}
		reader = bytes.NewReader(b)
		headers.Set("Content-Type", "application/json; charset=utf-8")
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	addStdHeaders(headers)
	req.Header = headers

	data, err := c.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, resp); err != nil {
		return errors.NewAuthError(errors.UnknownResponse, fmt.Sprintf("json decode error on call to %s: %v", endpoint, err))
	}
	return nil
}

// URLFormCall sends a POST to the endpoint with qv encoded as the
// application/x-www-form-urlencoded body. url.Values encoding sorts the
// parameters by key, which keeps the body deterministic. A client-request-id
// already present in headers is kept; otherwise one is generated.
func (c *Client) URLFormCall(ctx context.Context, endpoint string, headers http.Header, qv url.Values, resp interface{}) error {
	if len(qv) == 0 {
		return fmt.Errorf("URLFormCall() requires qv to have non-zero length")
	}
	if err := checkResp(resp); err != nil {
		return err
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("could not parse endpoint(%s): %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(qv.Encode()))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}

	if headers == nil {
		headers = http.Header{}
	}
	addStdHeaders(headers)
	headers.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Header = headers

	data, err := c.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, resp); err != nil {
		return errors.NewAuthError(errors.UnknownResponse, fmt.Sprintf("json decode error on call to %s: %v", endpoint, err))
	}
	return nil
}

// do performs the request, verifies the correlation id echo and maps non-200
// responses to either a server-explained AuthError or a CallErr.
func (c *Client) do(req *http.Request) ([]byte, error) {
	reply, err := c.client.Do(req)
	if err != nil {
		return nil, errors.CallErr{Req: req, Err: fmt.Errorf("server response error:\n %w", err)}
	}
	defer reply.Body.Close()

	data, err := io.ReadAll(reply.Body)
	if err != nil {
		return nil, errors.CallErr{Req: req, Resp: reply, Err: fmt.Errorf("could not read the body of an HTTP Response: %w", err)}
	}

	// The echo is purely diagnostic: a mismatch is logged, never fatal.
	if sent := req.Header.Get(correlationIDHeaderName); sent != "" {
		if echoed := reply.Header.Get(echoHeaderName); echoed != "" && echoed != sent {
			log.Warnf("correlation id echo mismatch on %s: sent %q, got %q", req.URL, sent, echoed)
		}
	}

	if reply.StatusCode != http.StatusOK {
		// A server that explains why it failed beats a generic transport error.
		errResp := errorResponse{}
		if jsonErr := json.Unmarshal(data, &errResp); jsonErr == nil && errResp.Error != "" {
			return nil, errors.NewAuthError(errResp.Error, errResp.ErrorDescription)
		}
		return nil, errors.CallErr{Req: req, Resp: reply, Err: fmt.Errorf("http call(%s)(%s) error: reply status code was %d", req.URL.String(), req.Method, reply.StatusCode)}
	}
	return data, nil
}

func addStdHeaders(headers http.Header) {
	headers.Set(productHeaderName, productHeaderValue)
	headers.Set(osHeaderName, runtime.GOOS)
	if headers.Get(correlationIDHeaderName) == "" {
		headers.Set(correlationIDHeaderName, id())
	}
	headers.Set(echoHeaderName, "true")
}

func checkResp(resp interface{}) error {
	v := reflect.ValueOf(resp)
	if v.Kind() != reflect.Ptr {
		return fmt.Errorf("bug: resp argument must be a pointer to a struct, was %T", resp)
	}
	if v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bug: resp argument must be a pointer to a struct, was %T", resp)
	}
	return nil
}
