package synonym

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name            string
		format          Format
		text            string
		options         Options
		wantRelations   []Relation
		wantLookup      map[string][]string
		wantContextSize int
	}{
		{
			name:    "equivalence group with expand",
			format:  FormatSolr,
			text:    "fast, quick, speedy",
			options: Options{Expand: true},
			wantRelations: []Relation{
				{Input: "fast", Output: "quick"},
				{Input: "fast", Output: "speedy"},
				{Input: "quick", Output: "fast"},
				{Input: "quick", Output: "speedy"},
				{Input: "speedy", Output: "fast"},
				{Input: "speedy", Output: "quick"},
			},
			wantLookup: map[string][]string{
				"fast":   {"quick", "speedy"},
				"quick":  {"fast", "speedy"},
				"speedy": {"fast", "quick"},
			},
			wantContextSize: 1,
		},
		{
			name:    "equivalence group without expand collapses to the first term",
			format:  FormatSolr,
			text:    "fast, quick, speedy",
			options: Options{Expand: false},
			wantRelations: []Relation{
				{Input: "quick", Output: "fast"},
				{Input: "speedy", Output: "fast"},
			},
			wantLookup: map[string][]string{
				"fast":  nil,
				"quick": {"fast"},
			},
			wantContextSize: 1,
		},
		{
			name:    "explicit mapping with multi token input",
			format:  FormatSolr,
			text:    "i-pod, i pod => ipod",
			options: Options{Expand: true},
			wantRelations: []Relation{
				{Input: "i-pod", Output: "ipod"},
				{Input: "i pod", Output: "ipod"},
			},
			wantLookup: map[string][]string{
				"i   pod": {"ipod"},
				"ipod":    nil,
			},
			wantContextSize: 2,
		},
		{
			name:   "comments blank lines and escapes",
			format: FormatSolr,
			text: `# comment

a\,b, c
x\=>y => z
`,
			options: Options{Expand: true},
			wantRelations: []Relation{
				{Input: "a,b", Output: "c"},
				{Input: "c", Output: "a,b"},
				{Input: "x=>y", Output: "z"},
			},
			wantContextSize: 1,
		},
		{
			name:    "duplicates and identity relations are dropped",
			format:  FormatSolr,
			text:    "a => a, b, b\na => b",
			options: Options{Expand: true},
			wantRelations: []Relation{
				{Input: "a", Output: "b"},
			},
			wantContextSize: 1,
		},
		{
			name:    "ignore case",
			format:  FormatSolr,
			text:    "Fast, QUICK",
			options: Options{Expand: true, IgnoreCase: true},
			wantRelations: []Relation{
				{Input: "fast", Output: "quick"},
				{Input: "quick", Output: "fast"},
			},
			wantLookup: map[string][]string{
				"FAST": {"quick"},
			},
			wantContextSize: 1,
		},
		{
			name:   "wordnet synsets",
			format: FormatWordnet,
			text: `s(100000001,1,'fast',adj,1,0).
s(100000001,2,'quick',adj,1,0).
s(100000002,1,'lonely',adj,1,0).
s(100000003,1,'it''s',n,1,0).
s(100000003,2,'it is',n,1,0).
`,
			options: Options{Expand: true},
			wantRelations: []Relation{
				{Input: "fast", Output: "quick"},
				{Input: "quick", Output: "fast"},
				{Input: "it's", Output: "it is"},
				{Input: "it is", Output: "it's"},
			},
			wantContextSize: 2,
		},
		{
			name:    "inflection groups without expand map forms to the head",
			format:  FormatInflection,
			text:    "run | runs, ran, running\n# comment\ngo | went",
			options: Options{Expand: false},
			wantRelations: []Relation{
				{Input: "runs", Output: "run"},
				{Input: "ran", Output: "run"},
				{Input: "running", Output: "run"},
				{Input: "went", Output: "go"},
			},
			wantLookup: map[string][]string{
				"ran": {"run"},
			},
			wantContextSize: 1,
		},
		{
			name:            "empty rules build an empty dictionary",
			format:          FormatSolr,
			text:            "",
			options:         Options{Expand: true},
			wantRelations:   []Relation{},
			wantContextSize: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(NewRuleSet(tt.format, tt.text), tt.options)
			require.NoError(t, err)

			assert.Equal(t, tt.wantRelations, got.Relations())
			assert.Equal(t, len(tt.wantRelations), got.Len())
			assert.Equal(t, len(tt.wantRelations) == 0, got.Empty())
			assert.Equal(t, tt.wantContextSize, got.MaxContextWidth())
			assert.Equal(t, tt.options, got.Options())
			for term, want := range tt.wantLookup {
				assert.Equal(t, want, got.Lookup(term), term)
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		text     string
		wantLine int
	}{
		{name: "two explicit mappings", format: FormatSolr, text: "a => b\nc => d => e", wantLine: 2},
		{name: "empty term", format: FormatSolr, text: "a, , b", wantLine: 1},
		{name: "empty right side", format: FormatSolr, text: "a =>", wantLine: 1},
		{name: "wordnet line without quotes", format: FormatWordnet, text: "s(1,1,fast,adj,1,0).", wantLine: 1},
		{name: "inflection without separator", format: FormatInflection, text: "run runs", wantLine: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(NewRuleSet(tt.format, tt.text), Options{Expand: true})
			require.Error(t, err)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tt.wantLine, parseErr.Line)
			assert.NotEmpty(t, parseErr.Reason)
		})
	}
}

func TestBuild_Lenient(t *testing.T) {
	rules := NewRuleSet(FormatSolr, "fast, quick\nbroken => a => b\ncar, auto")

	got, err := Build(rules, Options{Expand: true, Lenient: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"quick"}, got.Lookup("fast"))
	assert.Equal(t, []string{"auto"}, got.Lookup("car"))
	assert.Nil(t, got.Lookup("broken"))
	assert.True(t, got.Lenient())
}

func TestBuild_Deterministic(t *testing.T) {
	rules := NewRuleSet(FormatSolr, "fast, quick, speedy\ncar, auto => vehicle\nbig => large, huge")
	opts := Options{Expand: true}

	first, err := Build(rules, opts)
	require.NoError(t, err)
	second, err := Build(rules, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Relations(), second.Relations())
	assert.Equal(t, first.Vocabulary(), second.Vocabulary())
	assert.Equal(t, first.MaxContextWidth(), second.MaxContextWidth())
}

func TestDictionary_WriteRules(t *testing.T) {
	original, err := Build(NewRuleSet(FormatSolr, "a\\,b, c\n\\#tag => hashtag\nbig => large, huge\nx\\\\y, z"), Options{Expand: true})
	require.NoError(t, err)

	rebuilt, err := Build(NewRuleSet(FormatSolr, original.Rules()), Options{Expand: true})
	require.NoError(t, err)

	assert.Equal(t, original.Relations(), rebuilt.Relations())
}

func TestEmptyDictionary(t *testing.T) {
	d := EmptyDictionary(Options{Expand: true})

	assert.True(t, d.Empty())
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Lookup("anything"))
	assert.Equal(t, "", d.Rules())
}
