package synonym

import "fmt"

// ParseError reports a malformed rule line.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid synonym rule at line %d (%q): %s", e.Line, e.Text, e.Reason)
}

// MergeError reports a structural failure while reconciling two dictionaries.
type MergeError struct {
	Reason string
	Err    error
}

func (e *MergeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("merge dictionaries: %s: %v", e.Reason, e.Err)
	}
	return "merge dictionaries: " + e.Reason
}

func (e *MergeError) Unwrap() error {
	return e.Err
}
