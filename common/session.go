// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT

package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pvarki/rmcli/auth"
)

// Session holds the configuration and authentication state associated
// with one HTTP(s) connection to a RASENMAEHER API instance. A Session
// starts out anonymous over a CA-trust-only transport; it becomes
// authenticated either by exchanging a one-time login code for a bearer
// token (ExchangeLoginCode) or by rebinding the transport to present a
// client certificate (BindIdentity). The zero value is not usable, use
// NewSession.
type Session struct {
	baseURL string
	timeout time.Duration

	hc        *http.Client
	authn     auth.IAuthenticator
	userAgent string
}

// NewSession instantiates a Session for the given API base URL. The
// transport trusts the system cert pool plus any extra CA bundle named
// by the LOCAL_CA_CERTS_PATH environment variable. A trailing slash on
// baseURL is stripped so paths can always be joined verbatim.
func NewSession(baseURL string, timeout time.Duration) (*Session, error) {
	transport, err := NewCATransport()
	if err != nil {
		return nil, fmt.Errorf("could not set up CA trust: %w", err)
	}

	return &Session{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		authn: &auth.NullAuthenticator{},
	}, nil
}

// BaseURL returns the normalized API base URL.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// BindIdentity replaces the transport with one that presents the given
// client certificate on every connection, under the same CA trust
// policy. The previous transport is closed first and any bearer token
// tied to it is dropped.
func (s *Session) BindIdentity(certFile, keyFile string) error {
	transport, err := NewMTLSTransport(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("could not bind identity: %w", err)
	}

	s.closeTransport()
	s.hc = &http.Client{
		Timeout:   s.timeout,
		Transport: transport,
	}
	s.authn = &auth.NullAuthenticator{}

	return nil
}

// SetUserAgent sets the User-Agent reported on all subsequent
// requests. When empty, the net/http default is used.
func (s *Session) SetUserAgent(ua string) {
	s.userAgent = ua
}

// SetBearer attaches the given token as a Bearer Authorization header
// to all subsequent requests, replacing any previous token. An empty
// token is rejected.
func (s *Session) SetBearer(token string) error {
	authn := &auth.BearerAuthenticator{}
	if err := authn.Configure(map[string]interface{}{"token": token}); err != nil {
		return fmt.Errorf("could not configure bearer authentication: %w", err)
	}
	s.authn = authn

	return nil
}

// tokenResponse models the token/code/exchange response body
type tokenResponse struct {
	JWT string `json:"jwt"`
}

// ExchangeLoginCode posts the one-time login code to the token exchange
// endpoint and, on success, attaches the returned token to the Session.
func (s *Session) ExchangeLoginCode(ctx context.Context, code string) error {
	res, err := s.Post(ctx, "/api/v1/token/code/exchange", map[string]string{"code": code})
	if err != nil {
		return &AuthExchangeError{Err: err}
	}

	if err := CheckResponse(res, http.StatusOK); err != nil {
		return &AuthExchangeError{Err: err}
	}

	var payload tokenResponse
	if err := DecodeJSONBody(res, &payload); err != nil {
		return &AuthExchangeError{Err: fmt.Errorf("failure decoding token response: %w", err)}
	}

	if payload.JWT == "" {
		return &AuthExchangeError{Err: errors.New("token response did not contain a jwt")}
	}

	if err := s.SetBearer(payload.JWT); err != nil {
		return &AuthExchangeError{Err: err}
	}

	return nil
}

// Get issues a GET for the given API path using the current transport
// and authentication state.
func (s *Session) Get(ctx context.Context, path string) (*http.Response, error) {
	return s.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST for the given API path. A non-nil body is
// marshaled to JSON.
func (s *Session) Post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return s.do(ctx, http.MethodPost, path, body)
}

// Delete issues a DELETE for the given API path.
func (s *Session) Delete(ctx context.Context, path string) (*http.Response, error) {
	return s.do(ctx, http.MethodDelete, path, nil)
}

// do is the shared request primitive: it applies the base URL, the
// default Accept header, the current Authorization state and a
// per-request correlation ID. Response status is not inspected here,
// callers run CheckResponse with the statuses they expect.
func (s *Session) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	if s.hc == nil {
		return nil, errors.New("session is closed")
	}

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %q, could not marshal request body: %w", method, path, err)
		}
		payload = bytes.NewBuffer(raw)
	}

	uri := s.baseURL + path

	var req *http.Request
	var err error
	if payload != nil {
		req, err = http.NewRequestWithContext(ctx, method, uri, payload)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, uri, http.NoBody)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %q, request creation failed: %w", method, path, err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	authHeader, err := s.authn.EncodeHeader()
	if err != nil {
		return nil, fmt.Errorf("%s %q, could not encode auth header: %w", method, path, err)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", res.StatusCode).
		Msg("request complete")

	return res, nil
}

// Close releases the transport owned by the Session. It is safe to call
// more than once; the transport is closed exactly once.
func (s *Session) Close() {
	s.closeTransport()
}

func (s *Session) closeTransport() {
	if s.hc == nil {
		return
	}
	s.hc.CloseIdleConnections()
	s.hc = nil
}
