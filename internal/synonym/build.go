package synonym

import (
	"fmt"
	"log/slog"
)

type term struct {
	text  string
	width int
}

// Build parses rules and returns an immutable dictionary.
// Malformed rules fail the build with a *ParseError unless opts.Lenient is set,
// in which case they are logged and skipped.
func Build(rules RuleSet, opts Options) (*Dictionary, error) {
	parsed, errs := rules.Format().parser().parse(rules.lines)
	if len(errs) > 0 {
		if !opts.Lenient {
			return nil, errs[0]
		}
		for _, err := range errs {
			slog.Default().Warn("skip synonym rule", "format", rules.Format(), "line", err.Line, "reason", err.Reason)
		}
	}

	analyzer := Analyzer{IgnoreCase: opts.IgnoreCase}
	b := newBuilder(opts)
	for _, r := range parsed {
		if err := b.addRule(analyzer, r); err != nil {
			if !opts.Lenient {
				return nil, err
			}
			slog.Default().Warn("skip synonym rule", "format", rules.Format(), "line", err.Line, "reason", err.Reason)
		}
	}
	return b.build(), nil
}

func (b *builder) addRule(analyzer Analyzer, r rule) *ParseError {
	analyze := func(raw []string) ([]term, *ParseError) {
		terms := make([]term, 0, len(raw))
		for _, s := range raw {
			text, width, err := analyzer.Normalize(s)
			if err != nil {
				return nil, &ParseError{Line: r.line, Text: r.text, Reason: fmt.Sprintf("term %q analyzed to no tokens", s)}
			}
			terms = append(terms, term{text: text, width: width})
		}
		return terms, nil
	}

	if r.explicit {
		inputs, err := analyze(r.inputs)
		if err != nil {
			return err
		}
		outputs, err := analyze(r.outputs)
		if err != nil {
			return err
		}
		for _, in := range inputs {
			for _, out := range outputs {
				b.add(in.text, out.text, in.width)
			}
		}
		return nil
	}

	terms, err := analyze(r.terms)
	if err != nil {
		return err
	}
	if b.options.Expand {
		for _, in := range terms {
			for _, out := range terms {
				b.add(in.text, out.text, in.width)
			}
		}
		return nil
	}
	for _, in := range terms {
		b.add(in.text, terms[0].text, in.width)
	}
	return nil
}
