// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT
package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pvarki/rmcli/common"
	"github.com/pvarki/rmcli/enroll"
)

// EnrollCmd runs the admin or user enrollment flow and writes the
// issued credential as <callsign>.crt and <callsign>.key.
type EnrollCmd struct {
	Admin    bool          `short:"a" help:"Do admin enrollment."`
	Wait     time.Duration `help:"Initial wait and poll interval for approval." default:"10s"`
	Code     string        `arg:"" help:"Login code (admin) or invite code (user)."`
	Callsign string        `arg:"" help:"Callsign to enroll."`
}

func (c *EnrollCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := newSession(globals)
	if err != nil {
		return err
	}
	defer s.Close()

	var certPEM, keyPEM []byte
	if c.Admin {
		certPEM, keyPEM, err = enroll.Admin(ctx, s, c.Callsign, c.Code)
		if err != nil {
			return err
		}
	} else {
		certPEM, keyPEM, err = c.enrollUser(ctx, s)
		if err != nil {
			return err
		}
	}

	return writeCredential(c.Callsign, certPEM, keyPEM)
}

func (c *EnrollCmd) enrollUser(ctx context.Context, s *common.Session) ([]byte, []byte, error) {
	approveCode, scopedToken, err := enroll.UserInit(ctx, s, c.Callsign, c.Code)
	if err != nil {
		return nil, nil, err
	}

	// The approve code has to reach an admin out-of-band.
	fmt.Printf("Approvecode: %s\n", approveCode)
	log.Info().Str("callsign", c.Callsign).Msg("waiting for approval")

	if err := enroll.WaitApproved(ctx, s, scopedToken, c.Wait); err != nil {
		return nil, nil, err
	}

	return enroll.UserFinish(ctx, s, c.Callsign, scopedToken)
}

// writeCredential persists the decoded PEM pair. Only called after the
// whole flow has succeeded, partial results are never written.
func writeCredential(callsign string, certPEM, keyPEM []byte) error {
	certPath := callsign + ".crt"
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", certPath, err)
	}
	log.Info().Str("path", certPath).Msg("wrote certificate")

	keyPath := callsign + ".key"
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("could not write %s: %w", keyPath, err)
	}
	log.Info().Str("path", keyPath).Msg("wrote key")

	return nil
}
