package model

import "fmt"

// UnitType enumerates the closed set of renderable unit kinds. The set is
// fixed per pipeline definition; nothing at runtime may invent a new type.
type UnitType string

const (
	UnitTransition UnitType = "Transition"
	UnitConcept    UnitType = "Concept"
	UnitAnalogy    UnitType = "Analogy"
	UnitDiagram    UnitType = "Diagram"
	UnitReflect    UnitType = "Reflect"
	UnitQuiz       UnitType = "Quiz"
	UnitSummary    UnitType = "Summary"
	UnitOutline    UnitType = "Outline"
	UnitSyllabus   UnitType = "Syllabus"
)

// TextPayload backs Transition, Concept, Analogy, Reflect and Summary units.
type TextPayload struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

type DiagramNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type DiagramEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

type DiagramPayload struct {
	Caption string        `json:"caption,omitempty"`
	Nodes   []DiagramNode `json:"nodes"`
	Edges   []DiagramEdge `json:"edges"`
}

type QuizOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type QuizPayload struct {
	Question    string       `json:"question"`
	Options     []QuizOption `json:"options"`
	Explanation string       `json:"explanation,omitempty"`
}

type OutlineEntry struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

type OutlinePayload struct {
	Title   string         `json:"title"`
	Entries []OutlineEntry `json:"entries"`
}

// SyllabusPayload expands an outline into per-module objectives.
type SyllabusPayload struct {
	Modules []SyllabusModule `json:"modules"`
}

type SyllabusModule struct {
	Title      string   `json:"title"`
	Objectives []string `json:"objectives"`
	Body       string   `json:"body,omitempty"`
}

// ContentUnit is one ordered, independently renderable output of a pipeline
// run. Exactly one payload field is set and it must match Type. Units are
// immutable once emitted.
type ContentUnit struct {
	ID            string   `json:"id"`
	JobID         string   `json:"job_id"`
	SequenceIndex int      `json:"sequence_index"`
	Type          UnitType `json:"unit_type"`

	Text     *TextPayload     `json:"text,omitempty"`
	Diagram  *DiagramPayload  `json:"diagram,omitempty"`
	Quiz     *QuizPayload     `json:"quiz,omitempty"`
	Outline  *OutlinePayload  `json:"outline,omitempty"`
	Syllabus *SyllabusPayload `json:"syllabus,omitempty"`

	NarrationText string `json:"narration_text,omitempty"`
	AudioRef      string `json:"audio_ref,omitempty"`
}

// Validate checks the tagged-union invariant: one payload, matching the type.
func (u *ContentUnit) Validate() error {
	set := 0
	if u.Text != nil {
		set++
	}
	if u.Diagram != nil {
		set++
	}
	if u.Quiz != nil {
		set++
	}
	if u.Outline != nil {
		set++
	}
	if u.Syllabus != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("content unit %q: expected exactly one payload, got %d", u.Type, set)
	}
	switch u.Type {
	case UnitTransition, UnitConcept, UnitAnalogy, UnitReflect, UnitSummary:
		if u.Text == nil {
			return fmt.Errorf("content unit %q: text payload required", u.Type)
		}
	case UnitDiagram:
		if u.Diagram == nil {
			return fmt.Errorf("content unit %q: diagram payload required", u.Type)
		}
	case UnitQuiz:
		if u.Quiz == nil {
			return fmt.Errorf("content unit %q: quiz payload required", u.Type)
		}
	case UnitOutline:
		if u.Outline == nil {
			return fmt.Errorf("content unit %q: outline payload required", u.Type)
		}
	case UnitSyllabus:
		if u.Syllabus == nil {
			return fmt.Errorf("content unit %q: syllabus payload required", u.Type)
		}
	default:
		return fmt.Errorf("unknown unit type %q", u.Type)
	}
	return nil
}
