package synonym

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Format selects the grammar a RuleSet is written in.
type Format string

const (
	// FormatSolr is the flat "a, b => c" / "a, b, c" grammar.
	FormatSolr Format = "solr"
	// FormatWordnet is the prolog synset grammar, e.g. s(100000001,1,'fast',adj,1,0).
	FormatWordnet Format = "wordnet"
	// FormatInflection is the "head | form, form" grammar.
	FormatInflection Format = "inflection"
)

var (
	_          pflag.Value = (*Format)(nil)
	AllFormats             = []Format{FormatSolr, FormatWordnet, FormatInflection}
)

// ParseFormat resolves a configured format name. An empty name selects FormatSolr.
func ParseFormat(name string) (Format, error) {
	if strings.TrimSpace(name) == "" {
		return FormatSolr, nil
	}
	for _, f := range AllFormats {
		if strings.EqualFold(name, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid format %q, valid values are %v", name, AllFormats)
}

// Set implements pflag.Value.
func (f *Format) Set(v string) error {
	parsed, err := ParseFormat(v)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// String implements pflag.Value.
func (f *Format) String() string {
	if f == nil {
		return ""
	}
	return string(*f)
}

// Type implements pflag.Value.
func (f *Format) Type() string {
	return "Format"
}

func (f Format) parser() parser {
	switch f {
	case FormatWordnet:
		return wordnetParser{}
	case FormatInflection:
		return inflectionParser{}
	default:
		return solrParser{}
	}
}
