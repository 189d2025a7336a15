package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/at-ishikawa/dynsyn/internal/synonym"
)

// Local is a synonym file on the local filesystem. Its validators are derived from the file metadata.
type Local struct {
	path   string
	format synonym.Format
}

var _ Source = (*Local)(nil)

// NewLocal returns a source reading path. A file:// prefix is accepted.
func NewLocal(path string, format synonym.Format) (*Local, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "file://")
	if path == "" {
		return nil, ErrMissingLocation
	}
	return &Local{path: path, format: format}, nil
}

// Location returns the file path.
func (l *Local) Location() string {
	return l.path
}

// CheckFreshness reloads when the modification time or size of the file changed.
func (l *Local) CheckFreshness(_ context.Context, state State) ReloadDecision {
	info, err := os.Stat(l.path)
	if err != nil {
		return ReloadDecision{Err: fmt.Errorf("os.Stat > %w", err)}
	}
	decision := ReloadDecision{
		StatusCode:   http.StatusOK,
		LastModified: info.ModTime().UTC().Format(http.TimeFormat),
		ETag:         fmt.Sprintf(`"%x-%x"`, info.ModTime().UnixNano(), info.Size()),
	}
	decision.Reload, _ = reloadNeeded(state, decision)
	return decision
}

// Fetch reads the whole file.
func (l *Local) Fetch(_ context.Context, _ State) (FetchResult, error) {
	body, err := os.ReadFile(l.path)
	if err != nil {
		return FetchResult{Rules: synonym.EmptyRuleSet(l.format)}, fmt.Errorf("os.ReadFile > %w", err)
	}
	text, charsetName := decodeBody(body, "")
	return FetchResult{
		Rules:   synonym.NewRuleSet(l.format, text),
		Charset: charsetName,
	}, nil
}
