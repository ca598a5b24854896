// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT
package commands

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pvarki/rmcli/common"
)

// Globals carries the root-level CLI options into command Run methods.
type Globals struct {
	URL     string
	Timeout time.Duration
	Version string
}

// UserAgent reports this build for the User-Agent header.
func (g *Globals) UserAgent() string {
	return "rmcli/" + g.Version
}

// newSession opens a Session configured from the root-level options.
func newSession(globals *Globals) (*common.Session, error) {
	s, err := common.NewSession(globals.URL, globals.Timeout)
	if err != nil {
		return nil, err
	}
	s.SetUserAgent(globals.UserAgent())

	return s, nil
}

// newBoundSession opens a Session and rebinds it to the given mTLS
// identity. On failure nothing is left open.
func newBoundSession(globals *Globals, certFile, keyFile string) (*common.Session, error) {
	warnIfNotMTLS(globals.URL)

	s, err := newSession(globals)
	if err != nil {
		return nil, err
	}

	if err := s.BindIdentity(certFile, keyFile); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// The mTLS endpoints live on a dedicated hostname; a URL without "mtls"
// in it is usually a typo for these commands.
func warnIfNotMTLS(url string) {
	if !strings.Contains(url, "mtls") {
		log.Warn().Msg("URL does not contain 'mtls', are you sure it is correct?")
	}
}
