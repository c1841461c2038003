// File: internal/usecase/stages.go
package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"edu-ai-generation/internal/domain/model"
	"edu-ai-generation/internal/domain/ports/adapter"
)

// Stage is one step of a pipeline definition. The list of stages per pipeline
// kind is fixed at definition time; a run never adds, skips or reorders them.
type Stage struct {
	Name     string
	Unit     model.UnitType
	Narrates bool

	// Prompt builds the collaborator messages. Prior units are passed so a
	// later stage can match tone and refer back to earlier material.
	Prompt func(job *model.Job, prior []model.ContentUnit) []adapter.Message

	// Parse turns the raw stage output into the unit payload fields.
	Parse func(ps *payloadSchemas, raw string, mode StreamMode, u *model.ContentUnit) error
}

const (
	PipelineLesson = "lesson"
	PipelineCourse = "course"
)

// PipelineStages returns the stage list for a pipeline kind, or nil for an
// unknown kind.
func PipelineStages(kind string) []Stage {
	switch kind {
	case PipelineLesson:
		return lessonStages
	case PipelineCourse:
		return courseStages
	default:
		return nil
	}
}

var lessonStages = []Stage{
	textStage("transition", model.UnitTransition, false,
		"Write a short, warm transition that hooks the learner into the topic. Two or three sentences, plain prose."),
	textStage("concept", model.UnitConcept, true,
		"Explain the core concept clearly for the stated audience. Use plain prose, no markdown headings."),
	textStage("analogy", model.UnitAnalogy, true,
		"Give one vivid everyday analogy for the concept and unpack it in a short paragraph."),
	structuredStage("diagram", model.UnitDiagram,
		"Produce a concept diagram as JSON with fields: caption, nodes (id,label), edges (from,to,label). Respond with JSON only."),
	textStage("reflect", model.UnitReflect, false,
		"Pose one open reflection question that makes the learner connect the concept to their own experience."),
	structuredStage("quiz", model.UnitQuiz,
		"Produce one multiple-choice question as JSON with fields: question, options (text,correct), explanation. Exactly one option is correct. Respond with JSON only."),
	textStage("summary", model.UnitSummary, true,
		"Summarize the lesson in a tight paragraph the learner could read aloud."),
}

var courseStages = []Stage{
	structuredStage("outline", model.UnitOutline,
		"Produce a course outline as JSON with fields: title, entries (title,summary). Five to eight entries. Respond with JSON only."),
	structuredStage("syllabus", model.UnitSyllabus,
		"Expand the outline above into a syllabus as JSON with fields: modules (title,objectives,body). Respond with JSON only."),
	textStage("summary", model.UnitSummary, true,
		"Write the course description a catalog would show: what the learner will be able to do after finishing."),
}

func systemPrompt(job *model.Job) adapter.Message {
	audience := job.Audience
	if audience == "" {
		audience = "a curious adult beginner"
	}
	return adapter.Message{
		Role: "system",
		Content: fmt.Sprintf(
			"You are an educational content author. Topic: %q. Audience: %s. Stay consistent in tone and terminology with the earlier material you are shown.",
			job.Topic, audience),
	}
}

func priorContext(prior []model.ContentUnit) string {
	if len(prior) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Earlier material in this piece:\n")
	for _, u := range prior {
		if u.Text != nil {
			fmt.Fprintf(&b, "- [%s] %s\n", u.Type, clip(u.Text.Body, 280))
		} else if u.Outline != nil {
			fmt.Fprintf(&b, "- [%s] %s (%d entries)\n", u.Type, u.Outline.Title, len(u.Outline.Entries))
			for _, e := range u.Outline.Entries {
				fmt.Fprintf(&b, "    - %s\n", e.Title)
			}
		}
	}
	return b.String()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func textStage(name string, unit model.UnitType, narrates bool, instruction string) Stage {
	return Stage{
		Name:     name,
		Unit:     unit,
		Narrates: narrates,
		Prompt: func(job *model.Job, prior []model.ContentUnit) []adapter.Message {
			msgs := []adapter.Message{systemPrompt(job)}
			if pc := priorContext(prior); pc != "" {
				msgs = append(msgs, adapter.Message{Role: "user", Content: pc})
			}
			return append(msgs, adapter.Message{Role: "user", Content: instruction})
		},
		Parse: func(_ *payloadSchemas, raw string, mode StreamMode, u *model.ContentUnit) error {
			body := strings.TrimSpace(raw)
			if mode == ModeStructured {
				// A text stage answered with JSON anyway; accept {title,body}.
				var tp model.TextPayload
				if err := json.Unmarshal([]byte(stripFences(body)), &tp); err == nil && tp.Body != "" {
					u.Text = &tp
					return nil
				}
			}
			if body == "" {
				return fmt.Errorf("stage %s: empty output", name)
			}
			u.Text = &model.TextPayload{Body: body}
			return nil
		},
	}
}

func structuredStage(name string, unit model.UnitType, instruction string) Stage {
	return Stage{
		Name: name,
		Unit: unit,
		Prompt: func(job *model.Job, prior []model.ContentUnit) []adapter.Message {
			msgs := []adapter.Message{systemPrompt(job)}
			if pc := priorContext(prior); pc != "" {
				msgs = append(msgs, adapter.Message{Role: "user", Content: pc})
			}
			return append(msgs, adapter.Message{Role: "user", Content: instruction})
		},
		Parse: func(ps *payloadSchemas, raw string, _ StreamMode, u *model.ContentUnit) error {
			doc := stripFences(strings.TrimSpace(raw))
			var generic interface{}
			if err := json.Unmarshal([]byte(doc), &generic); err != nil {
				return fmt.Errorf("stage %s: output is not valid JSON: %w", name, err)
			}
			var schemaErr error
			switch unit {
			case model.UnitDiagram:
				if schemaErr = ps.diagram.Validate(generic); schemaErr == nil {
					var p model.DiagramPayload
					if err := json.Unmarshal([]byte(doc), &p); err != nil {
						return err
					}
					u.Diagram = &p
				}
			case model.UnitQuiz:
				if schemaErr = ps.quiz.Validate(generic); schemaErr == nil {
					var p model.QuizPayload
					if err := json.Unmarshal([]byte(doc), &p); err != nil {
						return err
					}
					u.Quiz = &p
				}
			case model.UnitOutline:
				if schemaErr = ps.outline.Validate(generic); schemaErr == nil {
					var p model.OutlinePayload
					if err := json.Unmarshal([]byte(doc), &p); err != nil {
						return err
					}
					u.Outline = &p
				}
			case model.UnitSyllabus:
				if schemaErr = ps.syllabus.Validate(generic); schemaErr == nil {
					var p model.SyllabusPayload
					if err := json.Unmarshal([]byte(doc), &p); err != nil {
						return err
					}
					u.Syllabus = &p
				}
			default:
				return fmt.Errorf("stage %s: no structured payload for unit type %s", name, unit)
			}
			if schemaErr != nil {
				return fmt.Errorf("stage %s: payload rejected by schema: %w", name, schemaErr)
			}
			return nil
		},
	}
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
