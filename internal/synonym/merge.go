package synonym

import (
	"fmt"
)

// Merge combines previous and incoming into a new dictionary.
//
// Previous relations are applied first, then incoming ones. When both define
// outputs for the same input, the outputs are unioned with the previous ones
// first. The merged dictionary carries the options of incoming.
func Merge(previous, incoming *Dictionary) (*Dictionary, error) {
	if previous == nil {
		return nil, &MergeError{Reason: "previous dictionary is nil"}
	}
	if incoming == nil {
		return nil, &MergeError{Reason: "incoming dictionary is nil"}
	}
	if previous.IgnoreCase() != incoming.IgnoreCase() {
		return nil, &MergeError{Reason: fmt.Sprintf("incompatible analyzers: ignore_case %t and %t", previous.IgnoreCase(), incoming.IgnoreCase())}
	}

	b := newBuilder(incoming.options)
	for _, d := range []*Dictionary{previous, incoming} {
		for _, word := range d.words {
			b.intern(word)
		}
	}

	for _, d := range []*Dictionary{previous, incoming} {
		if err := b.apply(d); err != nil {
			return nil, err
		}
	}
	return b.build(), nil
}

// MergeOrIncoming merges the two dictionaries and falls back to incoming when
// the merge fails. The merge error is returned for logging.
func MergeOrIncoming(previous, incoming *Dictionary) (*Dictionary, error) {
	merged, err := Merge(previous, incoming)
	if err != nil {
		if incoming == nil {
			incoming = EmptyDictionary(Options{})
		}
		return incoming, err
	}
	return merged, nil
}

// apply re-derives every input of d through d's analyzer and inserts its outputs.
func (b *builder) apply(d *Dictionary) error {
	analyzer := d.Analyzer()
	for _, id := range d.inputs {
		input, width, err := analyzer.Normalize(d.words[id])
		if err != nil {
			return &MergeError{Reason: fmt.Sprintf("re-insert %q", d.words[id]), Err: err}
		}
		for _, out := range d.outputs[id] {
			output, _, err := analyzer.Normalize(d.words[out])
			if err != nil {
				return &MergeError{Reason: fmt.Sprintf("re-insert %q", d.words[out]), Err: err}
			}
			b.add(input, output, width)
		}
	}
	return nil
}
