// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/pvarki/rmcli/directory"
	"github.com/pvarki/rmcli/identity"
)

// UserCmd groups the operations available to any enrolled identity.
type UserCmd struct {
	CertFile string `arg:"" type:"existingfile" help:"Client certificate (PEM)."`
	KeyFile  string `arg:"" type:"existingfile" help:"Client key (PEM)."`

	Whoami   WhoamiCmd   `cmd:"" help:"Print the callsign this identity resolves to."`
	GetFiles GetFilesCmd `cmd:"" name:"get-files" help:"Download product files as <product>_<filename>."`
}

// WhoamiCmd resolves and prints the caller's callsign.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals, user *UserCmd) error {
	s, err := newBoundSession(globals, user.CertFile, user.KeyFile)
	if err != nil {
		return err
	}
	defer s.Close()

	callsign, err := identity.Whoami(ctx, s)
	if err != nil {
		return err
	}

	fmt.Println(callsign)

	return nil
}

// GetFilesCmd downloads every product file available to this identity.
type GetFilesCmd struct{}

func (c *GetFilesCmd) Run(ctx context.Context, globals *Globals, user *UserCmd) error {
	s, err := newBoundSession(globals, user.CertFile, user.KeyFile)
	if err != nil {
		return err
	}
	defer s.Close()

	files, err := directory.GetFiles(ctx, s)
	if err != nil {
		return err
	}

	for product, productFiles := range files {
		for _, file := range productFiles {
			path := fmt.Sprintf("%s_%s", product, file.Filename)
			if err := os.WriteFile(path, file.Content, 0o644); err != nil {
				return fmt.Errorf("could not write %s: %w", path, err)
			}
			log.Info().Str("path", path).Str("title", file.Title).Msg("wrote file")
		}
	}

	return nil
}
