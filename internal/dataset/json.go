package dataset

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// recordWire is the on-disk JSON shape. Answer and output_spec are decoded
// per task type, so both stay raw until the tag is known.
type recordWire struct {
	ID           string          `json:"id"`
	Source       string          `json:"source"`
	Year         *int            `json:"year,omitempty"`
	TaskType     TaskType        `json:"task_type"`
	Prompt       string          `json:"prompt"`
	Answer       json.RawMessage `json:"answer"`
	OutputSpec   json.RawMessage `json:"output_spec"`
	Meta         *Meta           `json:"meta,omitempty"`
	VariantOf    string          `json:"variant_of,omitempty"`
	VariantIndex *int            `json:"variant_index,omitempty"`
}

type matchingSpecWire struct {
	Keys []string `json:"keys"`
}

type mcqSpecWire struct {
	Allowed []string `json:"allowed"`
}

type shortTextSpecWire struct {
	Lower      bool `json:"lower"`
	StripPunct bool `json:"strip_punct"`
}

// UnmarshalJSON decodes a record, resolving the answer and output_spec
// payloads against the task type tag.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("dataset: decode record: %w", err)
	}

	out := Record{
		ID:        w.ID,
		Source:    w.Source,
		TaskType:  w.TaskType,
		Prompt:    w.Prompt,
		VariantOf: w.VariantOf,
	}
	if w.Year != nil {
		out.Year = *w.Year
	}
	if w.Meta != nil {
		out.Meta = *w.Meta
	}
	if w.VariantIndex != nil {
		out.VariantIndex = *w.VariantIndex
	}

	if !w.TaskType.Known() {
		return fmt.Errorf("dataset: record %q: %w: unknown task_type %q", w.ID, ErrSchema, w.TaskType)
	}

	answer, err := decodeAnswer(w.TaskType, w.Answer)
	if err != nil {
		return fmt.Errorf("dataset: record %q: %w: answer: %v", w.ID, ErrSchema, err)
	}
	out.Answer = answer

	spec, err := decodeOutputSpec(w.TaskType, w.OutputSpec)
	if err != nil {
		return fmt.Errorf("dataset: record %q: %w: output_spec: %v", w.ID, ErrSchema, err)
	}
	out.OutputSpec = spec

	*r = out
	return nil
}

// MarshalJSON encodes a record back to the on-disk shape. Variant fields are
// emitted only for variant records, so originals round-trip untouched.
func (r Record) MarshalJSON() ([]byte, error) {
	w := recordWire{
		ID:        r.ID,
		Source:    r.Source,
		TaskType:  r.TaskType,
		Prompt:    r.Prompt,
		VariantOf: r.VariantOf,
	}
	if r.Year != 0 {
		y := r.Year
		w.Year = &y
	}
	if r.Meta != (Meta{}) {
		m := r.Meta
		w.Meta = &m
	}
	if r.VariantOf != "" {
		idx := r.VariantIndex
		w.VariantIndex = &idx
	}

	answer, err := encodeAnswer(r.TaskType, r.Answer)
	if err != nil {
		return nil, fmt.Errorf("dataset: record %q: encode answer: %w", r.ID, err)
	}
	w.Answer = answer

	spec, err := encodeOutputSpec(r.TaskType, r.OutputSpec)
	if err != nil {
		return nil, fmt.Errorf("dataset: record %q: encode output_spec: %w", r.ID, err)
	}
	w.OutputSpec = spec

	return json.Marshal(w)
}

func decodeAnswer(task TaskType, raw json.RawMessage) (Answer, error) {
	if len(raw) == 0 {
		return Answer{}, fmt.Errorf("missing")
	}

	switch task {
	case TaskMatching:
		var loose map[string]any
		if err := json.Unmarshal(raw, &loose); err != nil {
			return Answer{}, fmt.Errorf("expected object: %v", err)
		}
		mapping := make(map[string]string, len(loose))
		for k, v := range loose {
			mapping[k] = stringify(v)
		}
		return Answer{Mapping: mapping}, nil

	case TaskMCQ:
		var letter string
		if err := json.Unmarshal(raw, &letter); err != nil {
			return Answer{}, fmt.Errorf("expected string: %v", err)
		}
		return Answer{Letter: letter}, nil

	case TaskShortText:
		// Either a single string or a list of acceptable strings.
		var one string
		if err := json.Unmarshal(raw, &one); err == nil {
			return Answer{Texts: []string{one}}, nil
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err != nil {
			return Answer{}, fmt.Errorf("expected string or list of strings: %v", err)
		}
		return Answer{Texts: many}, nil
	}

	return Answer{}, fmt.Errorf("unknown task_type %q", task)
}

func encodeAnswer(task TaskType, a Answer) (json.RawMessage, error) {
	switch task {
	case TaskMatching:
		return json.Marshal(a.Mapping)
	case TaskMCQ:
		return json.Marshal(a.Letter)
	case TaskShortText:
		if len(a.Texts) == 1 {
			return json.Marshal(a.Texts[0])
		}
		return json.Marshal(a.Texts)
	}
	return nil, fmt.Errorf("unknown task_type %q", task)
}

func decodeOutputSpec(task TaskType, raw json.RawMessage) (OutputSpec, error) {
	if len(raw) == 0 {
		return OutputSpec{}, fmt.Errorf("missing")
	}

	switch task {
	case TaskMatching:
		var w matchingSpecWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return OutputSpec{}, err
		}
		return OutputSpec{Keys: w.Keys}, nil
	case TaskMCQ:
		var w mcqSpecWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return OutputSpec{}, err
		}
		return OutputSpec{Allowed: w.Allowed}, nil
	case TaskShortText:
		var w shortTextSpecWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return OutputSpec{}, err
		}
		return OutputSpec{Lower: w.Lower, StripPunct: w.StripPunct}, nil
	}

	return OutputSpec{}, fmt.Errorf("unknown task_type %q", task)
}

func encodeOutputSpec(task TaskType, s OutputSpec) (json.RawMessage, error) {
	switch task {
	case TaskMatching:
		return json.Marshal(matchingSpecWire{Keys: s.Keys})
	case TaskMCQ:
		return json.Marshal(mcqSpecWire{Allowed: s.Allowed})
	case TaskShortText:
		return json.Marshal(shortTextSpecWire{Lower: s.Lower, StripPunct: s.StripPunct})
	}
	return nil, fmt.Errorf("unknown task_type %q", task)
}

// stringify renders a JSON scalar the way graders compare it: integral
// floats print without a trailing ".0".
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}
