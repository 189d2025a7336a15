// Package statestore persists the freshness state and accumulated rules of each
// synonym source, so a restarted service resumes where it stopped.
package statestore

import (
	"fmt"
	"time"

	"github.com/at-ishikawa/dynsyn/internal/source"
	"github.com/at-ishikawa/dynsyn/internal/synonym"
)

// Record is the persisted state of one source.
type Record struct {
	Source       string `db:"source" yaml:"source"`
	Location     string `db:"location" yaml:"location"`
	source.State `yaml:",inline"`

	// Rules is the published dictionary written as explicit solr rules.
	Rules     string    `db:"rules" yaml:"rules"`
	Relations int       `db:"relations" yaml:"relations"`
	Version   uint64    `db:"version" yaml:"version"`
	CreatedAt time.Time `db:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `db:"updated_at" yaml:"updated_at"`
}

// NewRecord captures a published snapshot together with the state that produced it.
func NewRecord(name, location string, state source.State, snapshot *synonym.Snapshot) *Record {
	record := &Record{
		Source:    name,
		Location:  location,
		State:     state,
		UpdatedAt: time.Now().UTC(),
	}
	if snapshot != nil {
		record.Rules = snapshot.Dictionary.Rules()
		record.Relations = snapshot.Dictionary.Len()
		record.Version = snapshot.Version
		record.CreatedAt = snapshot.CreatedAt.UTC()
	}
	return record
}

// Snapshot rebuilds the persisted dictionary with opts.
func (r *Record) Snapshot(opts synonym.Options) (*synonym.Snapshot, error) {
	dict, err := synonym.Build(synonym.NewRuleSet(synonym.FormatSolr, r.Rules), opts)
	if err != nil {
		return nil, fmt.Errorf("synonym.Build(%s) > %w", r.Source, err)
	}
	return synonym.NewSnapshot(dict, r.Version, r.CreatedAt), nil
}
