// Package grader maps raw model output to a pass/fail score per task type.
// Grading is pure: the result is a total function of (record, raw output).
package grader

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/glossalab/lobench/internal/dataset"
)

// Reason explains why a record did not grade cleanly. A parse failure is
// counted as incorrect, never as a crash.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonParse     Reason = "parse_error"
	ReasonBadRecord Reason = "bad_record"
)

// Result is the outcome of grading one (record, output) pair.
type Result struct {
	Correct bool
	Parsed  any // map[string]string, letter, or normalized text
	Reason  Reason
}

// Grade scores raw model output against the record's gold answer. Missing
// or mismatched values are incorrect; only unparseable output reports
// ReasonParse. Correctness is all-or-nothing per record.
func Grade(rec *dataset.Record, raw string) Result {
	if rec == nil || !rec.TaskType.Known() {
		return Result{Reason: ReasonBadRecord}
	}

	switch rec.TaskType {
	case dataset.TaskMatching:
		return gradeMatching(rec, raw)
	case dataset.TaskMCQ:
		return gradeMCQ(rec, raw)
	case dataset.TaskShortText:
		return gradeShortText(rec, raw)
	}
	return Result{Reason: ReasonBadRecord}
}

func gradeMatching(rec *dataset.Record, raw string) Result {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return Result{Reason: ReasonParse}
	}

	parsed := make(map[string]string, len(obj))
	for k, v := range obj {
		parsed[k] = strings.TrimSpace(jsonScalar(v))
	}

	// All keys required; no partial credit.
	for _, k := range rec.OutputSpec.Keys {
		pv, present := parsed[k]
		if !present {
			return Result{Parsed: parsed}
		}
		if pv != strings.TrimSpace(rec.Answer.Mapping[k]) {
			return Result{Parsed: parsed}
		}
	}
	return Result{Correct: true, Parsed: parsed}
}

var letterToken = regexp.MustCompile(`\b[A-Za-z]\b`)

func gradeMCQ(rec *dataset.Record, raw string) Result {
	allowed := make(map[string]struct{}, len(rec.OutputSpec.Allowed))
	for _, a := range rec.OutputSpec.Allowed {
		allowed[strings.ToUpper(strings.TrimSpace(a))] = struct{}{}
	}

	// First standalone letter that belongs to the allowed set wins.
	var letter string
	for _, tok := range letterToken.FindAllString(raw, -1) {
		up := strings.ToUpper(tok)
		if _, ok := allowed[up]; ok {
			letter = up
			break
		}
	}
	if letter == "" {
		return Result{Reason: ReasonParse}
	}

	gold := strings.ToUpper(strings.TrimSpace(rec.Answer.Letter))
	return Result{Correct: letter == gold, Parsed: letter}
}

func gradeShortText(rec *dataset.Record, raw string) Result {
	norm := dataset.Normalize(raw, rec.OutputSpec.Lower, rec.OutputSpec.StripPunct)
	if norm == "" {
		return Result{Reason: ReasonParse}
	}

	for _, gold := range rec.Answer.Texts {
		if norm == dataset.Normalize(gold, rec.OutputSpec.Lower, rec.OutputSpec.StripPunct) {
			return Result{Correct: true, Parsed: norm}
		}
	}
	return Result{Parsed: norm}
}

// extractJSONObject pulls the first {...} object out of raw text. Direct
// objects, fenced code blocks, and objects embedded in prose all work.
func extractJSONObject(raw string) (map[string]any, bool) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
		s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = strings.TrimSpace(s[:idx])
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		// The outermost braces may span prose; retry on the first balanced
		// object.
		if inner, ok := firstBalancedObject(s[start:]); ok {
			if err := json.Unmarshal([]byte(inner), &obj); err == nil {
				return obj, true
			}
		}
		return nil, false
	}
	return obj, true
}

func firstBalancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

func jsonScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
