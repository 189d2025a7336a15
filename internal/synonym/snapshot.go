package synonym

import "time"

// Snapshot is a published dictionary. It is never modified after publication.
type Snapshot struct {
	Dictionary *Dictionary
	CreatedAt  time.Time
	Version    uint64
}

// NewSnapshot wraps dict. A nil dict is replaced by an empty dictionary.
func NewSnapshot(dict *Dictionary, version uint64, createdAt time.Time) *Snapshot {
	if dict == nil {
		dict = EmptyDictionary(Options{})
	}
	return &Snapshot{Dictionary: dict, CreatedAt: createdAt, Version: version}
}

// Empty reports whether the snapshot carries no rules.
func (s *Snapshot) Empty() bool {
	return s == nil || s.Dictionary.Empty()
}
