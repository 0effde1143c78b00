package dataset

// TaskType identifies the grading scheme of a record. The set is closed:
// adding a type requires a new grader branch.
type TaskType string

const (
	TaskMatching  TaskType = "matching"
	TaskMCQ       TaskType = "mcq"
	TaskShortText TaskType = "short_text"
)

// Known reports whether t is one of the supported task types.
func (t TaskType) Known() bool {
	switch t {
	case TaskMatching, TaskMCQ, TaskShortText:
		return true
	default:
		return false
	}
}

// Answer carries the gold answer for exactly one task type. Which field is
// populated is determined by the owning record's TaskType.
type Answer struct {
	Mapping map[string]string // matching: key -> letter
	Letter  string            // mcq: single allowed letter
	Texts   []string          // short_text: one or more acceptable strings
}

// OutputSpec describes how model output is parsed for grading. As with
// Answer, the populated fields follow the record's TaskType.
type OutputSpec struct {
	Keys       []string // matching: expected key set
	Allowed    []string // mcq: allowed letters
	Lower      bool     // short_text: casefold before comparing
	StripPunct bool     // short_text: drop punctuation before comparing
}

// Span marks a substring of the prompt (and answer) that may be swapped for
// a pseudo-token without changing the problem's logic.
type Span struct {
	Text string `json:"text"`
	Kind string `json:"kind,omitempty"`
}

// Variantable holds the span annotations used by the isomorph engine.
type Variantable struct {
	Spans []Span `json:"spans,omitempty"`
}

// Meta carries provenance and variant-generation hints. Inert for grading.
type Meta struct {
	Variantable *Variantable `json:"variantable,omitempty"`
	SourceURL   string       `json:"source_url,omitempty"`
	Page        int          `json:"page,omitempty"`
}

// Record is one auto-gradable subproblem.
//
// VariantOf and VariantIndex are set only on records produced by the
// isomorph engine; VariantOf names the source record and VariantIndex is
// the 0-based position in that record's variant sequence.
type Record struct {
	ID           string
	Source       string
	Year         int // 0 when unknown
	TaskType     TaskType
	Prompt       string
	Answer       Answer
	OutputSpec   OutputSpec
	Meta         Meta
	VariantOf    string
	VariantIndex int
}

// IsVariant reports whether the record was produced by the isomorph engine.
func (r *Record) IsVariant() bool {
	return r != nil && r.VariantOf != ""
}

// Spans returns the annotated spans with empty texts dropped.
func (r *Record) Spans() []Span {
	if r == nil || r.Meta.Variantable == nil {
		return nil
	}
	out := make([]Span, 0, len(r.Meta.Variantable.Spans))
	for _, s := range r.Meta.Variantable.Spans {
		if s.Text == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() Record {
	out := *r

	if r.Answer.Mapping != nil {
		out.Answer.Mapping = make(map[string]string, len(r.Answer.Mapping))
		for k, v := range r.Answer.Mapping {
			out.Answer.Mapping[k] = v
		}
	}
	if r.Answer.Texts != nil {
		out.Answer.Texts = append([]string(nil), r.Answer.Texts...)
	}
	if r.OutputSpec.Keys != nil {
		out.OutputSpec.Keys = append([]string(nil), r.OutputSpec.Keys...)
	}
	if r.OutputSpec.Allowed != nil {
		out.OutputSpec.Allowed = append([]string(nil), r.OutputSpec.Allowed...)
	}
	if r.Meta.Variantable != nil {
		v := Variantable{Spans: append([]Span(nil), r.Meta.Variantable.Spans...)}
		out.Meta.Variantable = &v
	}

	return out
}
