package dataset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrSchema marks a record that violates the data-model invariants. Callers
// skip the record and keep going; the error is never fatal to a batch.
var ErrSchema = errors.New("schema violation")

var wsRun = regexp.MustCompile(`\s+`)

// Normalize applies the short_text comparison rules: whitespace is always
// trimmed and collapsed; casefolding and punctuation stripping follow the
// flags.
func Normalize(s string, lower, stripPunct bool) string {
	out := strings.TrimSpace(wsRun.ReplaceAllString(s, " "))
	if lower {
		out = strings.ToLower(out)
	}
	if stripPunct {
		out = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
				return r
			}
			return -1
		}, out)
		out = strings.TrimSpace(wsRun.ReplaceAllString(out, " "))
	}
	return out
}

// Validate checks one record against the data-model invariants. Errors wrap
// ErrSchema. ID uniqueness is a per-file property checked by Load.
func Validate(r *Record) error {
	if r == nil {
		return fmt.Errorf("dataset: %w: nil record", ErrSchema)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("dataset: %w: missing id", ErrSchema)
	}
	if strings.TrimSpace(r.Source) == "" {
		return fmt.Errorf("dataset: record %q: %w: missing source", r.ID, ErrSchema)
	}
	if !r.TaskType.Known() {
		return fmt.Errorf("dataset: record %q: %w: unknown task_type %q", r.ID, ErrSchema, r.TaskType)
	}
	if r.Prompt == "" {
		return fmt.Errorf("dataset: record %q: %w: empty prompt", r.ID, ErrSchema)
	}

	switch r.TaskType {
	case TaskMatching:
		return validateMatching(r)
	case TaskMCQ:
		return validateMCQ(r)
	case TaskShortText:
		return validateShortText(r)
	}
	return nil
}

func validateMatching(r *Record) error {
	if len(r.OutputSpec.Keys) == 0 {
		return fmt.Errorf("dataset: record %q: %w: matching requires output_spec.keys", r.ID, ErrSchema)
	}
	if len(r.Answer.Mapping) == 0 {
		return fmt.Errorf("dataset: record %q: %w: matching requires answer mapping", r.ID, ErrSchema)
	}

	// Key set of the answer must equal output_spec.keys.
	seen := make(map[string]struct{}, len(r.OutputSpec.Keys))
	for _, k := range r.OutputSpec.Keys {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("dataset: record %q: %w: duplicate output_spec key %q", r.ID, ErrSchema, k)
		}
		seen[k] = struct{}{}
		if _, ok := r.Answer.Mapping[k]; !ok {
			return fmt.Errorf("dataset: record %q: %w: answer missing key %q", r.ID, ErrSchema, k)
		}
	}
	for k := range r.Answer.Mapping {
		if _, ok := seen[k]; !ok {
			return fmt.Errorf("dataset: record %q: %w: answer key %q not in output_spec.keys", r.ID, ErrSchema, k)
		}
	}
	return nil
}

func validateMCQ(r *Record) error {
	if len(r.OutputSpec.Allowed) == 0 {
		return fmt.Errorf("dataset: record %q: %w: mcq requires output_spec.allowed", r.ID, ErrSchema)
	}
	letter := strings.ToUpper(strings.TrimSpace(r.Answer.Letter))
	for _, a := range r.OutputSpec.Allowed {
		if strings.ToUpper(strings.TrimSpace(a)) == letter && letter != "" {
			return nil
		}
	}
	return fmt.Errorf("dataset: record %q: %w: answer %q not in allowed set", r.ID, ErrSchema, r.Answer.Letter)
}

func validateShortText(r *Record) error {
	if len(r.Answer.Texts) == 0 {
		return fmt.Errorf("dataset: record %q: %w: short_text requires at least one acceptable answer", r.ID, ErrSchema)
	}
	for i, t := range r.Answer.Texts {
		if Normalize(t, r.OutputSpec.Lower, r.OutputSpec.StripPunct) == "" {
			return fmt.Errorf("dataset: record %q: %w: acceptable answer %d normalizes to empty", r.ID, ErrSchema, i)
		}
	}
	return nil
}
