package source

// Action is the outcome of the last published refresh, reported back to the source.
type Action string

const (
	// ActionUpdate means the dictionary was replaced by a full fetch.
	ActionUpdate Action = "update"
	// ActionIncrease means fetched rules were merged into the previous dictionary.
	ActionIncrease Action = "increase"
)

// State is the freshness metadata of one source.
// It is owned by a single refresh worker; everyone else receives copies.
type State struct {
	LastModified string `yaml:"last_modified" db:"last_modified"`
	ETag         string `yaml:"etag" db:"etag"`
	Offset       int64  `yaml:"offset" db:"offset_cursor"`
	Incremental  bool   `yaml:"incremental" db:"incremental"`
	LastAction   Action `yaml:"last_action" db:"last_action"`
}

// ReloadDecision is the result of a freshness check.
// It carries what the source reported so the worker can commit it.
type ReloadDecision struct {
	Reload bool
	// Resync is set when an incremental source reported an offset lower than the stored one.
	Resync bool

	StatusCode   int
	Incremental  bool
	LastModified string
	ETag         string
	Offset       int64
	HasOffset    bool

	Err error
}

// Observed reports whether the source answered the check with metadata.
func (d ReloadDecision) Observed() bool {
	return d.Err == nil && d.StatusCode == 200
}

// WithProbe records the incremental flag reported by a successful check.
func (s State) WithProbe(d ReloadDecision) State {
	if d.Observed() {
		s.Incremental = d.Incremental
	}
	return s
}

// WithPublished records the validators and offset that produced a published dictionary.
func (s State) WithPublished(d ReloadDecision, fetched FetchResult, action Action) State {
	if d.Observed() {
		s.LastModified = d.LastModified
		s.ETag = d.ETag
	}
	switch {
	case fetched.HasOffset:
		s.Offset = fetched.Offset
	case d.HasOffset:
		s.Offset = d.Offset
	}
	s.LastAction = action
	return s
}

// ForFullFetch returns a copy that requests the whole content from the source.
func (s State) ForFullFetch() State {
	s.Incremental = false
	s.Offset = 0
	return s
}
