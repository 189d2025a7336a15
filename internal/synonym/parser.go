package synonym

import (
	"strings"
)

// rule is one parsed line (or synset) before analysis.
//
// An explicit rule maps every input to every output. An equivalence rule
// groups terms; the first term is the one the group collapses to when
// expansion is disabled.
type rule struct {
	line     int
	text     string
	explicit bool
	inputs   []string
	outputs  []string
	terms    []string
}

type parser interface {
	parse(lines []string) ([]rule, []*ParseError)
}

type solrParser struct{}

func (solrParser) parse(lines []string) ([]rule, []*ParseError) {
	var (
		rules []rule
		errs  []*ParseError
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		invalid := func(reason string) {
			errs = append(errs, &ParseError{Line: i + 1, Text: raw, Reason: reason})
		}

		sides := splitUnescaped(line, "=>")
		switch len(sides) {
		case 1:
			terms, reason := splitTerms(sides[0])
			if reason != "" {
				invalid(reason)
				continue
			}
			rules = append(rules, rule{line: i + 1, text: raw, terms: terms})
		case 2:
			inputs, reason := splitTerms(sides[0])
			if reason != "" {
				invalid("left side: " + reason)
				continue
			}
			outputs, reason := splitTerms(sides[1])
			if reason != "" {
				invalid("right side: " + reason)
				continue
			}
			rules = append(rules, rule{line: i + 1, text: raw, explicit: true, inputs: inputs, outputs: outputs})
		default:
			invalid("more than one explicit mapping specified on the same line")
		}
	}
	return rules, errs
}

type wordnetParser struct{}

func (wordnetParser) parse(lines []string) ([]rule, []*ParseError) {
	var (
		rules   []rule
		errs    []*ParseError
		synset  string
		members []string
		first   int
		text    string
	)
	flush := func() {
		if len(members) > 1 {
			rules = append(rules, rule{line: first, text: text, terms: members})
		}
		members = nil
	}
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		id, word, reason := parseWordnetLine(line)
		if reason != "" {
			errs = append(errs, &ParseError{Line: i + 1, Text: raw, Reason: reason})
			continue
		}
		if id != synset || len(members) == 0 {
			flush()
			synset, first, text = id, i+1, raw
		}
		members = append(members, word)
	}
	flush()
	return rules, errs
}

func parseWordnetLine(line string) (synset, word, reason string) {
	if !strings.HasPrefix(line, "s(") {
		return "", "", "expected a line starting with s("
	}
	comma := strings.IndexByte(line, ',')
	if comma <= 2 {
		return "", "", "missing synset id"
	}
	start := strings.IndexByte(line, '\'')
	end := strings.LastIndexByte(line, '\'')
	if start < 0 || end <= start {
		return "", "", "missing quoted word"
	}
	word = strings.TrimSpace(strings.ReplaceAll(line[start+1:end], "''", "'"))
	if word == "" {
		return "", "", "empty word"
	}
	return line[2:comma], word, ""
}

type inflectionParser struct{}

func (inflectionParser) parse(lines []string) ([]rule, []*ParseError) {
	var (
		rules []rule
		errs  []*ParseError
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sides := splitUnescaped(line, "|")
		if len(sides) != 2 {
			errs = append(errs, &ParseError{Line: i + 1, Text: raw, Reason: "expected exactly one '|' between head and inflected forms"})
			continue
		}
		head := unescape(strings.TrimSpace(sides[0]))
		if head == "" {
			errs = append(errs, &ParseError{Line: i + 1, Text: raw, Reason: "empty head term"})
			continue
		}
		forms, reason := splitTerms(sides[1])
		if reason != "" {
			errs = append(errs, &ParseError{Line: i + 1, Text: raw, Reason: "inflected forms: " + reason})
			continue
		}
		rules = append(rules, rule{line: i + 1, text: raw, terms: append([]string{head}, forms...)})
	}
	return rules, errs
}

func splitTerms(s string) ([]string, string) {
	parts := splitUnescaped(s, ",")
	terms := make([]string, 0, len(parts))
	for _, part := range parts {
		term := unescape(strings.TrimSpace(part))
		if term == "" {
			return nil, "empty term"
		}
		terms = append(terms, term)
	}
	return terms, ""
}

// splitUnescaped splits s around sep, ignoring separators preceded by a backslash.
// Escape sequences are kept in the returned parts.
func splitUnescaped(s, sep string) []string {
	var (
		parts []string
		cur   strings.Builder
	)
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			cur.WriteByte(s[i])
			cur.WriteByte(s[i+1])
			i++
		case strings.HasPrefix(s[i:], sep):
			parts = append(parts, cur.String())
			cur.Reset()
			i += len(sep) - 1
		default:
			cur.WriteByte(s[i])
		}
	}
	return append(parts, cur.String())
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

var ruleEscaper = strings.NewReplacer(`\`, `\\`, `,`, `\,`, `=>`, `\=>`, `#`, `\#`)

func escape(term string) string {
	return ruleEscaper.Replace(term)
}
