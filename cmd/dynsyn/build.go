package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/dynsyn/internal/source"
	"github.com/at-ishikawa/dynsyn/internal/synonym"
)

type buildOptions struct {
	format     synonym.Format
	expand     bool
	lenient    bool
	ignoreCase bool
	terms      []string
}

func newBuildCommand() *cobra.Command {
	opts := buildOptions{format: synonym.FormatSolr}

	command := &cobra.Command{
		Use:   "build <file>",
		Short: "Parse a local synonym file and print the resulting dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	command.Flags().Var(&opts.format, "format", fmt.Sprintf("rule format, one of %v", synonym.AllFormats))
	command.Flags().BoolVar(&opts.expand, "expand", true, "map every term of an equivalence rule to every other term")
	command.Flags().BoolVar(&opts.lenient, "lenient", false, "skip malformed rules instead of failing")
	command.Flags().BoolVar(&opts.ignoreCase, "ignore-case", false, "lower-case terms before matching")
	command.Flags().StringSliceVar(&opts.terms, "term", nil, "only print the synonyms of these terms")

	return command
}

func build(ctx context.Context, out io.Writer, path string, opts buildOptions) error {
	local, err := source.NewLocal(path, opts.format)
	if err != nil {
		return fmt.Errorf("source.NewLocal() > %w", err)
	}
	fetched, err := local.Fetch(ctx, source.State{})
	if err != nil {
		return fmt.Errorf("local.Fetch() > %w", err)
	}

	dict, err := synonym.Build(fetched.Rules, synonym.Options{
		Expand:     opts.expand,
		Lenient:    opts.lenient,
		IgnoreCase: opts.ignoreCase,
	})
	if err != nil {
		return fmt.Errorf("synonym.Build() > %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(out, "%s: %d rules, %d relations, max context width %d\n",
		path, fetched.Rules.Len(), dict.Len(), dict.MaxContextWidth())

	if len(opts.terms) == 0 {
		return dict.WriteRules(out)
	}
	for _, term := range opts.terms {
		synonyms := dict.Lookup(term)
		if len(synonyms) == 0 {
			_, _ = color.New(color.FgYellow).Fprintf(out, "%s: no synonyms\n", term)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s: %v\n", term, synonyms)
	}
	return nil
}
