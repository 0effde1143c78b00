package isomorph

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/glossalab/lobench/internal/dataset"
	"github.com/glossalab/lobench/internal/grader"
)

func spanRecord() dataset.Record {
	return dataset.Record{
		ID:       "uklo_2019_r1_p3",
		Source:   "uklo",
		Year:     2019,
		TaskType: dataset.TaskMatching,
		Prompt:   "Match the words.\n1. kota\n2. vesi\nA. house\nB. water",
		Answer: dataset.Answer{Mapping: map[string]string{
			"1": "A",
			"2": "B",
		}},
		OutputSpec: dataset.OutputSpec{Keys: []string{"1", "2"}},
		Meta: dataset.Meta{Variantable: &dataset.Variantable{Spans: []dataset.Span{
			{Text: "kota", Kind: "lexeme"},
			{Text: "vesi", Kind: "lexeme"},
		}}},
	}
}

func shuffleRecord() dataset.Record {
	return dataset.Record{
		ID:       "iol_2015_p2",
		Source:   "iol",
		Year:     2015,
		TaskType: dataset.TaskMCQ,
		Prompt:   "Which gloss fits?\nA. the man sleeps\nB. the man eats\nC. the man walks\nD. the man sings",
		Answer:   dataset.Answer{Letter: "B"},
		OutputSpec: dataset.OutputSpec{
			Allowed: []string{"A", "B", "C", "D"},
		},
	}
}

func shortTextSpanRecord() dataset.Record {
	return dataset.Record{
		ID:       "naclo_2020_e",
		Source:   "naclo",
		TaskType: dataset.TaskShortText,
		Prompt:   "Given that talo means house, translate: talo",
		Answer:   dataset.Answer{Texts: []string{"house"}},
		OutputSpec: dataset.OutputSpec{
			Lower: true,
		},
		Meta: dataset.Meta{Variantable: &dataset.Variantable{Spans: []dataset.Span{
			{Text: "talo", Kind: "lexeme"},
		}}},
	}
}

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()

	rec := spanRecord()
	eng := &Engine{K: 3, Seed: 42}

	a, _, err := eng.Generate(&rec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _, err := eng.Generate(&rec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("got %d and %d variants, want 3", len(a), len(b))
	}
	for i := range a {
		if a[i].Prompt != b[i].Prompt {
			t.Fatalf("variant %d not reproducible:\n%q\n%q", i, a[i].Prompt, b[i].Prompt)
		}
	}
}

func TestGenerateSeedChangesOutput(t *testing.T) {
	t.Parallel()

	rec := spanRecord()

	a, _, err := (&Engine{K: 1, Seed: 1}).Generate(&rec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _, err := (&Engine{K: 1, Seed: 2}).Generate(&rec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a[0].Prompt == b[0].Prompt {
		t.Fatalf("different seeds produced the same variant: %q", a[0].Prompt)
	}
}

func TestSpanVariantFields(t *testing.T) {
	t.Parallel()

	rec := spanRecord()
	variants, _, err := (&Engine{K: 2, Seed: 7}).Generate(&rec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for i, v := range variants {
		if v.VariantOf != rec.ID {
			t.Fatalf("variant %d: VariantOf = %q, want %q", i, v.VariantOf, rec.ID)
		}
		if v.VariantIndex != i {
			t.Fatalf("variant %d: VariantIndex = %d", i, v.VariantIndex)
		}
		wantID := rec.ID + "__iso" + string(rune('0'+i))
		if v.ID != wantID {
			t.Fatalf("variant %d: ID = %q, want %q", i, v.ID, wantID)
		}
		if v.TaskType != rec.TaskType || v.Source != rec.Source || v.Year != rec.Year {
			t.Fatalf("variant %d: metadata changed: %+v", i, v)
		}
		if err := dataset.Validate(&v); err != nil {
			t.Fatalf("variant %d invalid: %v", i, err)
		}
	}
}

func TestSpanVariantReplacesAllOccurrences(t *testing.T) {
	t.Parallel()

	rec := shortTextSpanRecord()
	variants, _, err := (&Engine{K: 1, Seed: 5}).Generate(&rec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	v := variants[0]

	if strings.Contains(v.Prompt, "talo") {
		t.Fatalf("span text still present in prompt: %q", v.Prompt)
	}

	// Both occurrences of the span must carry the same token.
	start := strings.Index(v.Prompt, "[")
	end := strings.Index(v.Prompt, "]")
	if start < 0 || end <= start {
		t.Fatalf("no pseudo-token in prompt: %q", v.Prompt)
	}
	token := v.Prompt[start : end+1]
	if strings.Count(v.Prompt, token) != 2 {
		t.Fatalf("token %q appears %d times, want 2: %q", token, strings.Count(v.Prompt, token), v.Prompt)
	}
	if !strings.HasPrefix(token, "[lexeme") {
		t.Fatalf("token %q does not carry the span kind", token)
	}
}

func TestSpanVariantStaysGradable(t *testing.T) {
	t.Parallel()

	rec := spanRecord()
	variants, _, err := (&Engine{K: 1, Seed: 11}).Generate(&rec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	v := variants[0]

	// The gold answer for the variant must still grade correct.
	res := grader.Grade(&v, `{"1":"A","2":"B"}`)
	if !res.Correct {
		t.Fatalf("gold answer no longer grades correct: %+v", res)
	}
}

func TestShuffleVariantPreservesGrading(t *testing.T) {
	t.Parallel()

	rec := shuffleRecord()
	variants, _, err := (&Engine{K: 4, Seed: 9}).Generate(&rec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for i, v := range variants {
		// Whole lines move, so every gloss keeps its label and the gold
		// letter is unchanged.
		if v.Answer.Letter != rec.Answer.Letter {
			t.Fatalf("variant %d: answer changed to %q", i, v.Answer.Letter)
		}
		if !strings.Contains(v.Prompt, "B. the man eats") {
			t.Fatalf("variant %d: labeled line broken:\n%s", i, v.Prompt)
		}

		// Same multiset of lines.
		orig := strings.Split(rec.Prompt, "\n")
		got := strings.Split(v.Prompt, "\n")
		sort.Strings(orig)
		sort.Strings(got)
		if strings.Join(orig, "\n") != strings.Join(got, "\n") {
			t.Fatalf("variant %d: line content changed:\n%s", i, v.Prompt)
		}
	}
}

func TestGenerateNotVariantable(t *testing.T) {
	t.Parallel()

	rec := dataset.Record{
		ID:         "plain",
		TaskType:   dataset.TaskShortText,
		Prompt:     "Translate the sentence below into English.",
		Answer:     dataset.Answer{Texts: []string{"x"}},
		OutputSpec: dataset.OutputSpec{Lower: true},
	}

	_, _, err := (&Engine{K: 1, Seed: 0}).Generate(&rec)
	if !errors.Is(err, ErrNotVariantable) {
		t.Fatalf("expected ErrNotVariantable, got %v", err)
	}
}

func TestGenerateAllSkipsAndContinues(t *testing.T) {
	t.Parallel()

	plain := dataset.Record{
		ID:         "plain",
		TaskType:   dataset.TaskShortText,
		Prompt:     "No structure here.",
		Answer:     dataset.Answer{Texts: []string{"x"}},
		OutputSpec: dataset.OutputSpec{Lower: true},
	}
	records := []dataset.Record{spanRecord(), plain, shuffleRecord()}

	res, err := (&Engine{K: 2, Seed: 3}).GenerateAll(records)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].ID != "plain" {
		t.Fatalf("skipped = %+v, want only plain", res.Skipped)
	}
	if len(res.Variants) != 4 {
		t.Fatalf("got %d variants, want 4", len(res.Variants))
	}
}

func TestPermutationWarning(t *testing.T) {
	t.Parallel()

	rec := dataset.Record{
		ID:       "tiny",
		Source:   "iol",
		TaskType: dataset.TaskMCQ,
		Prompt:   "Pick.\nA. one\nB. two",
		Answer:   dataset.Answer{Letter: "A"},
		OutputSpec: dataset.OutputSpec{
			Allowed: []string{"A", "B"},
		},
	}

	// Two lines admit only 2 permutations; k=5 must warn, not fail.
	variants, warnings, err := (&Engine{K: 5, Seed: 1}).Generate(&rec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(variants) != 5 {
		t.Fatalf("got %d variants, want 5", len(variants))
	}
	if len(warnings) == 0 {
		t.Fatalf("expected a duplicate-permutation warning")
	}
}

func TestKindTag(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"lexeme", "lexeme"},
		{"Lexeme-2", "lexeme"},
		{"", "tok"},
		{"123", "tok"},
	}
	for _, tc := range cases {
		if got := kindTag(tc.in); got != tc.want {
			t.Fatalf("kindTag(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
