// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT

// Package identity resolves the caller's own callsign and fetches the
// matching certificate bundle over an authenticated Session.
package identity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pvarki/rmcli/common"
	"github.com/pvarki/rmcli/credential"
)

// checkAuthResponse models the check-auth/mtls_or_jwt response body
type checkAuthResponse struct {
	UserID string `json:"userid"`
}

// Whoami returns the callsign the server resolves for the Session's
// current credential (bound client certificate or bearer token). An
// unauthenticated Session surfaces the underlying *common.HTTPError.
func Whoami(ctx context.Context, s *common.Session) (string, error) {
	res, err := s.Get(ctx, "/api/v1/check-auth/mtls_or_jwt")
	if err != nil {
		return "", fmt.Errorf("auth check request failed: %w", err)
	}

	if err := common.CheckResponse(res, http.StatusOK); err != nil {
		return "", err
	}

	var payload checkAuthResponse
	if err := common.DecodeJSONBody(res, &payload); err != nil {
		return "", fmt.Errorf("failure decoding auth check response: %w", err)
	}

	return payload.UserID, nil
}

// FetchOwnCertificate downloads the PKCS#12 bundle for the given
// callsign and returns it decoded as PEM certificate and key. An empty
// callsign is resolved via Whoami first. The bundle passphrase is
// always the callsign itself.
func FetchOwnCertificate(ctx context.Context, s *common.Session, callsign string) (certPEM, keyPEM []byte, err error) {
	if callsign == "" {
		callsign, err = Whoami(ctx, s)
		if err != nil {
			return nil, nil, err
		}
	}

	res, err := s.Get(ctx, fmt.Sprintf("/api/v1/enduserpfx/%s.pfx", callsign))
	if err != nil {
		return nil, nil, fmt.Errorf("bundle fetch request failed: %w", err)
	}

	if err := common.CheckResponse(res, http.StatusOK); err != nil {
		return nil, nil, err
	}

	pfx, err := common.ReadBody(res)
	if err != nil {
		return nil, nil, err
	}

	return credential.Decode(pfx, callsign)
}
