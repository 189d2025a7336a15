package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/dynsyn/internal/config"
	"github.com/at-ishikawa/dynsyn/internal/refresh"
	"github.com/at-ishikawa/dynsyn/internal/source"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <name>",
		Short: "Check whether a configured synonym source has changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loadConfig() > %w", err)
			}
			return check(cmd.Context(), cmd.OutOrStdout(), cfg, args[0])
		},
	}
}

func check(ctx context.Context, out io.Writer, cfg *config.Config, name string) error {
	sc, ok := cfg.Synonym(name)
	if !ok {
		return fmt.Errorf("unknown synonym source %q", name)
	}

	repository, closeRepository, err := openStateStore(cfg)
	if err != nil {
		return fmt.Errorf("openStateStore() > %w", err)
	}
	defer func() {
		_ = closeStateStore(closeRepository)
	}()

	worker, err := refresh.NewWorkerFromConfig(sc, cfg.HTTP, nil, nil)
	if err != nil {
		return fmt.Errorf("refresh.NewWorkerFromConfig() > %w", err)
	}
	src := worker.Source()
	if closer, ok := src.(io.Closer); ok {
		defer func() {
			_ = closer.Close()
		}()
	}

	var state source.State
	if repository != nil {
		record, err := repository.Load(ctx, name)
		if err != nil {
			return fmt.Errorf("repository.Load() > %w", err)
		}
		if record != nil && record.Location == src.Location() {
			state = record.State
		}
	}

	decision := src.CheckFreshness(ctx, state)
	printDecision(out, name, src.Location(), decision)
	if decision.Err != nil {
		return decision.Err
	}
	return nil
}

func printDecision(out io.Writer, name, location string, d source.ReloadDecision) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(out, "%s (%s)\n", name, location)

	switch {
	case d.Err != nil:
		_, _ = color.New(color.FgRed).Fprintf(out, "error: %v\n", d.Err)
		return
	case d.Resync:
		_, _ = color.New(color.FgYellow).Fprintln(out, "reload: yes, offset regressed, full resync")
	case d.Reload:
		_, _ = color.New(color.FgGreen).Fprintln(out, "reload: yes")
	default:
		_, _ = fmt.Fprintln(out, "reload: no")
	}
	_, _ = fmt.Fprintf(out, "  status:        %d\n", d.StatusCode)
	if d.LastModified != "" {
		_, _ = fmt.Fprintf(out, "  last-modified: %s\n", d.LastModified)
	}
	if d.ETag != "" {
		_, _ = fmt.Fprintf(out, "  etag:          %s\n", d.ETag)
	}
	if d.Incremental {
		_, _ = fmt.Fprintln(out, "  incremental:   true")
	}
	if d.HasOffset {
		_, _ = fmt.Fprintf(out, "  offset:        %d\n", d.Offset)
	}
}
