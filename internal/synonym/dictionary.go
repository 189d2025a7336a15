package synonym

import (
	"fmt"
	"io"
	"strings"
)

// Options controls how a Dictionary is built.
type Options struct {
	Expand     bool
	Lenient    bool
	IgnoreCase bool
}

// Relation is one directed input -> output mapping.
type Relation struct {
	Input  string
	Output string
}

// Dictionary is an immutable mapping from input terms to output terms.
// Terms are interned: every distinct input or output is stored once in the vocabulary.
// A Dictionary is never modified after it is built.
type Dictionary struct {
	options         Options
	maxContextWidth int

	words   []string
	ids     map[string]int
	inputs  []int
	outputs map[int][]int
}

// EmptyDictionary returns a valid dictionary without rules.
func EmptyDictionary(opts Options) *Dictionary {
	return newBuilder(opts).build()
}

// Options returns the options the dictionary was built with.
func (d *Dictionary) Options() Options {
	return d.options
}

// Expand reports whether equivalence groups were expanded into all pairs.
func (d *Dictionary) Expand() bool { return d.options.Expand }

// Lenient reports whether malformed rules were skipped.
func (d *Dictionary) Lenient() bool { return d.options.Lenient }

// IgnoreCase reports whether terms were lower-cased during analysis.
func (d *Dictionary) IgnoreCase() bool { return d.options.IgnoreCase }

// MaxContextWidth returns the length, in tokens, of the longest input term.
func (d *Dictionary) MaxContextWidth() int {
	if d == nil {
		return 0
	}
	return d.maxContextWidth
}

// Empty reports whether the dictionary contains no rules.
func (d *Dictionary) Empty() bool {
	return d == nil || len(d.inputs) == 0
}

// Len returns the number of directed relations.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, id := range d.inputs {
		n += len(d.outputs[id])
	}
	return n
}

// Analyzer returns the analyzer the dictionary normalizes terms with.
func (d *Dictionary) Analyzer() Analyzer {
	return Analyzer{IgnoreCase: d.options.IgnoreCase}
}

// Lookup returns the outputs for term, in insertion order. The term is
// analyzed the same way rules were. Unknown terms return nil.
func (d *Dictionary) Lookup(term string) []string {
	if d.Empty() {
		return nil
	}
	key, _, err := d.Analyzer().Normalize(term)
	if err != nil {
		return nil
	}
	id, ok := d.ids[key]
	if !ok {
		return nil
	}
	outs := d.outputs[id]
	if len(outs) == 0 {
		return nil
	}
	result := make([]string, len(outs))
	for i, out := range outs {
		result[i] = d.words[out]
	}
	return result
}

// Vocabulary returns every distinct interned term, inputs and outputs alike.
func (d *Dictionary) Vocabulary() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.words...)
}

// Relations returns all directed relations in insertion order.
func (d *Dictionary) Relations() []Relation {
	if d == nil {
		return nil
	}
	relations := make([]Relation, 0, d.Len())
	for _, id := range d.inputs {
		for _, out := range d.outputs[id] {
			relations = append(relations, Relation{Input: d.words[id], Output: d.words[out]})
		}
	}
	return relations
}

// WriteRules writes the dictionary as explicit solr rules, one input per line.
// Building the output again yields the same relations.
func (d *Dictionary) WriteRules(w io.Writer) error {
	if d == nil {
		return nil
	}
	for _, id := range d.inputs {
		outs := make([]string, 0, len(d.outputs[id]))
		for _, out := range d.outputs[id] {
			outs = append(outs, escape(d.words[out]))
		}
		if _, err := fmt.Fprintf(w, "%s => %s\n", escape(d.words[id]), strings.Join(outs, ", ")); err != nil {
			return fmt.Errorf("fmt.Fprintf > %w", err)
		}
	}
	return nil
}

// Rules returns the dictionary serialized by WriteRules.
func (d *Dictionary) Rules() string {
	var b strings.Builder
	_ = d.WriteRules(&b)
	return b.String()
}

// builder accumulates normalized relations. It is not safe for concurrent use.
type builder struct {
	options         Options
	maxContextWidth int
	words           []string
	ids             map[string]int
	inputs          []int
	outputs         map[int][]int
}

func newBuilder(opts Options) *builder {
	return &builder{
		options: opts,
		ids:     make(map[string]int),
		outputs: make(map[int][]int),
	}
}

func (b *builder) intern(term string) int {
	if id, ok := b.ids[term]; ok {
		return id
	}
	id := len(b.words)
	b.words = append(b.words, term)
	b.ids[term] = id
	return id
}

// add records input -> output. Both terms must already be normalized.
// Identity relations and duplicates are dropped.
func (b *builder) add(input, output string, width int) {
	if input == output {
		return
	}
	in := b.intern(input)
	out := b.intern(output)
	existing, seen := b.outputs[in]
	if !seen {
		b.inputs = append(b.inputs, in)
	}
	for _, id := range existing {
		if id == out {
			return
		}
	}
	b.outputs[in] = append(existing, out)
	if width > b.maxContextWidth {
		b.maxContextWidth = width
	}
}

func (b *builder) build() *Dictionary {
	d := &Dictionary{
		options:         b.options,
		maxContextWidth: b.maxContextWidth,
		words:           append([]string(nil), b.words...),
		ids:             make(map[string]int, len(b.ids)),
		outputs:         make(map[int][]int, len(b.outputs)),
	}
	for term, id := range b.ids {
		d.ids[term] = id
	}
	for _, id := range b.inputs {
		if len(b.outputs[id]) == 0 {
			continue
		}
		d.inputs = append(d.inputs, id)
		d.outputs[id] = append([]int(nil), b.outputs[id]...)
	}
	return d
}
