package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for playlist conversion.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	source, err := r.service(cmd.String("from"))
	if err != nil {
		return err
	}

	// Logs go to a file so they don't tear the rendered screen.
	fileLogger, closer, err := shared.NewFileLogger(cmd.String("log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()

	previous := r.logger
	r.SetLogger(fileLogger)
	defer r.SetLogger(previous)

	if err := ui.Run(ctx, source, r.engine); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
