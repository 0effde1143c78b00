// Package isomorph rewrites a record's surface form while preserving its
// grading semantics, so original-vs-variant accuracy exposes memorization.
package isomorph

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"

	"github.com/glossalab/lobench/internal/dataset"
)

var (
	// ErrNotVariantable marks a record with no spans and no shufflable
	// structure. The record is skipped and reported, never fatal.
	ErrNotVariantable = errors.New("isomorph: record not variantable")

	// ErrGeneration marks a record whose replacement tokens could not
	// satisfy the uniqueness constraints within the attempt bound.
	ErrGeneration = errors.New("isomorph: variant generation failed")
)

const defaultMaxAttempts = 16

// Engine produces isomorphic variants. The same (record, K, Seed) always
// yields a byte-identical variant sequence.
type Engine struct {
	K    int
	Seed int64

	// MaxAttempts bounds token-collision retries per span. Zero means the
	// default.
	MaxAttempts int
}

// Generate returns K variant records for rec, plus non-fatal warnings.
func (e *Engine) Generate(rec *dataset.Record) ([]dataset.Record, []string, error) {
	if e == nil {
		return nil, nil, errors.New("isomorph: nil engine")
	}
	if rec == nil {
		return nil, nil, errors.New("isomorph: nil record")
	}
	if e.K <= 0 {
		return nil, nil, fmt.Errorf("isomorph: k must be > 0 (got %d)", e.K)
	}

	spans := rec.Spans()
	useSpans := len(spans) > 0

	var warnings []string
	if !useSpans {
		n := shufflableLines(rec.Prompt)
		if n < 2 {
			return nil, nil, fmt.Errorf("%w: record %q has no spans and no enumerable block", ErrNotVariantable, rec.ID)
		}
		if c := permutationCapacity(n); c < e.K {
			warnings = append(warnings, fmt.Sprintf("record %q: only %d distinct permutations for k=%d; duplicates possible", rec.ID, c, e.K))
		}
	}

	out := make([]dataset.Record, 0, e.K)
	for i := 0; i < e.K; i++ {
		rng := variantRNG(rec.ID, i, e.Seed)

		var (
			v   dataset.Record
			err error
		)
		if useSpans {
			v, err = e.spanVariant(rec, spans, i, rng)
		} else {
			v, err = shuffleVariant(rec, i, rng)
		}
		if err != nil {
			return nil, warnings, err
		}

		if err := dataset.Validate(&v); err != nil {
			return nil, warnings, fmt.Errorf("%w: record %q variant %d: %v", ErrGeneration, rec.ID, i, err)
		}
		out = append(out, v)
	}
	return out, warnings, nil
}

// BatchResult aggregates variant generation over a whole dataset.
type BatchResult struct {
	Variants []dataset.Record
	Skipped  []dataset.Skip
	Warnings []string
}

// GenerateAll variant-izes every record, skipping (with a reason) the ones
// that cannot be rewritten.
func (e *Engine) GenerateAll(records []dataset.Record) (*BatchResult, error) {
	if e == nil {
		return nil, errors.New("isomorph: nil engine")
	}

	res := &BatchResult{}
	for i := range records {
		rec := &records[i]
		variants, warnings, err := e.Generate(rec)
		res.Warnings = append(res.Warnings, warnings...)
		if err != nil {
			if errors.Is(err, ErrNotVariantable) || errors.Is(err, ErrGeneration) {
				res.Skipped = append(res.Skipped, dataset.Skip{ID: rec.ID, Reason: err.Error()})
				continue
			}
			return nil, err
		}
		res.Variants = append(res.Variants, variants...)
	}
	return res, nil
}

// spanVariant replaces every annotated span with a reserved pseudo-token,
// identically at every occurrence in the prompt and the answer.
func (e *Engine) spanVariant(rec *dataset.Record, spans []dataset.Span, index int, rng *rand.Rand) (dataset.Record, error) {
	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	// One replacement per distinct span text, in annotation order.
	mapping := make(map[string]string, len(spans))
	used := make(map[string]struct{}, len(spans))
	order := make([]string, 0, len(spans))

	for _, s := range spans {
		if _, dup := mapping[s.Text]; dup {
			continue
		}

		token, ok := pseudoToken(rng, s.Kind, rec, used, maxAttempts)
		if !ok {
			return dataset.Record{}, fmt.Errorf("%w: record %q variant %d: no collision-free token for span %q after %d attempts",
				ErrGeneration, rec.ID, index, s.Text, maxAttempts)
		}
		mapping[s.Text] = token
		order = append(order, s.Text)
	}

	// Longest spans first so a span that contains another is not clobbered
	// by the shorter one's replacement.
	sort.SliceStable(order, func(i, j int) bool { return len(order[i]) > len(order[j]) })

	v := rec.Clone()
	for _, src := range order {
		v.Prompt = strings.ReplaceAll(v.Prompt, src, mapping[src])
	}
	replaceInAnswer(&v, order, mapping)

	v.ID = variantID(rec.ID, index)
	v.VariantOf = rec.ID
	v.VariantIndex = index
	return v, nil
}

// pseudoToken draws a bracketed tag like "[l1#482]" whose inner form is
// unique within the variant and absent from the record's surface text. The
// bracket alphabet keeps replacements disjoint from real words.
func pseudoToken(rng *rand.Rand, kind string, rec *dataset.Record, used map[string]struct{}, maxAttempts int) (string, bool) {
	tag := kindTag(kind)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		inner := fmt.Sprintf("%s%d", tag, rng.IntN(9000)+1000)
		if _, taken := used[inner]; taken {
			continue
		}
		token := "[" + inner + "]"
		if strings.Contains(rec.Prompt, token) || strings.Contains(rec.Prompt, inner) {
			continue
		}
		if answerContains(rec, inner) {
			continue
		}
		used[inner] = struct{}{}
		return token, true
	}
	return "", false
}

func kindTag(kind string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(kind)) {
		if r >= 'a' && r <= 'z' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "tok"
	}
	return sb.String()
}

func answerContains(rec *dataset.Record, sub string) bool {
	for _, v := range rec.Answer.Mapping {
		if strings.Contains(v, sub) {
			return true
		}
	}
	for _, t := range rec.Answer.Texts {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

// replaceInAnswer substitutes span texts inside the gold answer so the
// matching/gloss relationship survives the rewrite. MCQ letters are
// positional identities, not surface forms, and stay untouched.
func replaceInAnswer(v *dataset.Record, order []string, mapping map[string]string) {
	switch v.TaskType {
	case dataset.TaskMatching:
		for k, val := range v.Answer.Mapping {
			for _, src := range order {
				val = strings.ReplaceAll(val, src, mapping[src])
			}
			v.Answer.Mapping[k] = val
		}
	case dataset.TaskShortText:
		for i, t := range v.Answer.Texts {
			for _, src := range order {
				t = strings.ReplaceAll(t, src, mapping[src])
			}
			v.Answer.Texts[i] = t
		}
	}
}

var (
	numberedLine = regexp.MustCompile(`^\s*\d+\.\s+`)
	letteredLine = regexp.MustCompile(`^\s*[A-Z]\.\s+`)
)

// shuffleVariant permutes the enumerable lines of the prompt. Whole lines
// move, so every row keeps its identity label and the gold answer needs no
// rewrite.
func shuffleVariant(rec *dataset.Record, index int, rng *rand.Rand) (dataset.Record, error) {
	lines := strings.Split(rec.Prompt, "\n")

	shuffled := false
	for _, pat := range []*regexp.Regexp{numberedLine, letteredLine} {
		var idxs []int
		for i, line := range lines {
			if pat.MatchString(line) {
				idxs = append(idxs, i)
			}
		}
		if len(idxs) < 2 {
			continue
		}

		perm := rng.Perm(len(idxs))
		orig := make([]string, len(idxs))
		for i, li := range idxs {
			orig[i] = lines[li]
		}
		for i, li := range idxs {
			lines[li] = orig[perm[i]]
		}
		shuffled = true
	}

	if !shuffled {
		return dataset.Record{}, fmt.Errorf("%w: record %q has no enumerable block", ErrNotVariantable, rec.ID)
	}

	v := rec.Clone()
	v.Prompt = strings.Join(lines, "\n")
	v.ID = variantID(rec.ID, index)
	v.VariantOf = rec.ID
	v.VariantIndex = index
	return v, nil
}

func shufflableLines(prompt string) int {
	lines := strings.Split(prompt, "\n")
	best := 0
	for _, pat := range []*regexp.Regexp{numberedLine, letteredLine} {
		n := 0
		for _, line := range lines {
			if pat.MatchString(line) {
				n++
			}
		}
		if n > best {
			best = n
		}
	}
	return best
}

// permutationCapacity returns min(n!, 1<<20) to keep the warning check
// cheap for long blocks.
func permutationCapacity(n int) int {
	const limit = 1 << 20
	total := 1
	for i := 2; i <= n; i++ {
		total *= i
		if total >= limit {
			return limit
		}
	}
	return total
}

func variantID(base string, index int) string {
	return fmt.Sprintf("%s__iso%d", base, index)
}
