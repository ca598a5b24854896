// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/pvarki/rmcli/directory"
	"github.com/pvarki/rmcli/enroll"
)

// AdminCmd groups the operations that need an admin mTLS identity.
type AdminCmd struct {
	CertFile string `arg:"" type:"existingfile" help:"Client certificate (PEM)."`
	KeyFile  string `arg:"" type:"existingfile" help:"Client key (PEM)."`

	Invite  InviteCmd  `cmd:"" help:"Create invite code for users."`
	Approve ApproveCmd `cmd:"" help:"Approve given enrollment."`
	List    ListCmd    `cmd:"" help:"List known callsigns."`
	Revoke  RevokeCmd  `cmd:"" help:"Revoke the identity of the given callsign."`
}

// InviteCmd creates a new reusable invite code.
type InviteCmd struct {
	Admin bool `short:"a" help:"Create single-use admin logincode."`
}

func (c *InviteCmd) Run(ctx context.Context, globals *Globals, admin *AdminCmd) error {
	if c.Admin {
		// TODO(rambo): implement once the API grows an endpoint for
		// single-use admin logincodes.
		return errors.New("single-use admin logincodes are not implemented")
	}

	s, err := newBoundSession(globals, admin.CertFile, admin.KeyFile)
	if err != nil {
		return err
	}
	defer s.Close()

	code, err := enroll.CreatePool(ctx, s)
	if err != nil {
		return err
	}

	fmt.Println(code)

	return nil
}

// ApproveCmd accepts one pending enrollment.
type ApproveCmd struct {
	Code     string `arg:"" help:"Approve code relayed by the enrollee."`
	Callsign string `arg:"" help:"Callsign of the pending enrollment."`
}

func (c *ApproveCmd) Run(ctx context.Context, globals *Globals, admin *AdminCmd) error {
	s, err := newBoundSession(globals, admin.CertFile, admin.KeyFile)
	if err != nil {
		return err
	}
	defer s.Close()

	return enroll.Approve(ctx, s, c.Callsign, c.Code)
}

// ListCmd prints the known callsigns, one per line, with role
// annotations when present.
type ListCmd struct{}

func (c *ListCmd) Run(ctx context.Context, globals *Globals, admin *AdminCmd) error {
	s, err := newBoundSession(globals, admin.CertFile, admin.KeyFile)
	if err != nil {
		return err
	}
	defer s.Close()

	lines, err := directory.ListIdentities(ctx, s)
	if err != nil {
		return err
	}

	for _, line := range lines {
		fmt.Println(line)
	}

	return nil
}

// RevokeCmd deletes an identity.
type RevokeCmd struct {
	Callsign string `arg:"" help:"Callsign to revoke."`
}

func (c *RevokeCmd) Run(ctx context.Context, globals *Globals, admin *AdminCmd) error {
	s, err := newBoundSession(globals, admin.CertFile, admin.KeyFile)
	if err != nil {
		return err
	}
	defer s.Close()

	ok, err := directory.Revoke(ctx, s, c.Callsign)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("server did not revoke %s", c.Callsign)
	}

	fmt.Printf("Revoked %s\n", c.Callsign)

	return nil
}
