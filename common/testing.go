// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT

package common

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/pvarki/rmcli/auth"
)

// NewTestingSession creates an HTTP test server (with a configurable
// request handler) and a Session whose transport dials it regardless of
// the requested host. The Session and the server's shutdown switch are
// returned.
func NewTestingSession(handler http.Handler) (s *Session, closerFn func()) {
	srv := httptest.NewServer(handler)

	s = &Session{
		baseURL: "http://rasenmaeher.example",
		timeout: 5 * time.Second,
		hc: &http.Client{
			Transport: &http.Transport{
				DialContext: func(_ context.Context, network, _ string) (net.Conn, error) {
					return net.Dial(network, srv.Listener.Addr().String())
				},
			},
		},
		authn: &auth.NullAuthenticator{},
	}

	closerFn = srv.Close

	return
}
