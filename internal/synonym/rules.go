package synonym

import (
	"bufio"
	"strings"
)

// RuleSet is an ordered sequence of raw rule lines in one grammar.
type RuleSet struct {
	format Format
	lines  []string
}

// NewRuleSet splits text into rule lines. Carriage returns at line ends are dropped.
func NewRuleSet(format Format, text string) RuleSet {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	return RuleSet{format: format, lines: lines}
}

// EmptyRuleSet returns a rule set without lines.
func EmptyRuleSet(format Format) RuleSet {
	return RuleSet{format: format}
}

// Format returns the grammar of the rule set.
func (r RuleSet) Format() Format {
	if r.format == "" {
		return FormatSolr
	}
	return r.format
}

// Lines returns a copy of the raw lines.
func (r RuleSet) Lines() []string {
	return append([]string(nil), r.lines...)
}

// Len returns the number of raw lines, including comments and blanks.
func (r RuleSet) Len() int {
	return len(r.lines)
}
