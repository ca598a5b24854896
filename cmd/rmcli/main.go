// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pvarki/rmcli/cmd/rmcli/internal/commands"
	"github.com/pvarki/rmcli/common"
)

var (
	version = "dev"
	cli     struct {
		URL     string        `arg:"" help:"RASENMAEHER API base URL."`
		Timeout time.Duration `help:"Per-request timeout." default:"5s"`
		CAPath  string        `help:"Path to extra CA certs to accept." type:"existingfile"`
		Verbose int           `short:"v" type:"counter" help:"Shorthand for info/debug log level (-v/-vv)."`

		Enroll commands.EnrollCmd `cmd:"" help:"Do enrollment, write callsign.crt and callsign.key."`
		Admin  commands.AdminCmd  `cmd:"" help:"Admin commands, require an mTLS identity."`
		User   commands.UserCmd   `cmd:"" help:"User commands, require an mTLS identity."`

		Version kong.VersionFlag `help:"Print version and exit."`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)))

	setupLogging(cli.Verbose)

	if cli.CAPath != "" {
		log.Info().Str("capath", cli.CAPath).Msg("accepting extra CA certs")
		os.Setenv(common.LocalCACertsEnvVar, cli.CAPath)
	}

	err := cmd.Run(&commands.Globals{
		URL:     cli.URL,
		Timeout: cli.Timeout,
		Version: version,
	})
	cmd.FatalIfErrorf(err)
}

func setupLogging(verbose int) {
	level := zerolog.WarnLevel
	switch {
	case verbose == 1:
		level = zerolog.InfoLevel
	case verbose >= 2:
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger().Level(level)
}
