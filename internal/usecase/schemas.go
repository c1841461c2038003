// File: internal/usecase/schemas.go
package usecase

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Structured stage payloads are validated before they become content units.
// A schema violation is an unparseable stage output, i.e. a stage failure.

const diagramSchema = `{
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "caption": {"type": "string"},
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "label"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "label": {"type": "string", "minLength": 1}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": {"type": "string", "minLength": 1},
          "to": {"type": "string", "minLength": 1},
          "label": {"type": "string"}
        }
      }
    }
  }
}`

const quizSchema = `{
  "type": "object",
  "required": ["question", "options"],
  "properties": {
    "question": {"type": "string", "minLength": 1},
    "options": {
      "type": "array",
      "minItems": 2,
      "items": {
        "type": "object",
        "required": ["text", "correct"],
        "properties": {
          "text": {"type": "string", "minLength": 1},
          "correct": {"type": "boolean"}
        }
      }
    },
    "explanation": {"type": "string"}
  }
}`

const outlineSchema = `{
  "type": "object",
  "required": ["title", "entries"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "entries": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["title"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "summary": {"type": "string"}
        }
      }
    }
  }
}`

const syllabusSchema = `{
  "type": "object",
  "required": ["modules"],
  "properties": {
    "modules": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["title", "objectives"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "objectives": {"type": "array", "minItems": 1, "items": {"type": "string"}},
          "body": {"type": "string"}
        }
      }
    }
  }
}`

type payloadSchemas struct {
	diagram  *jsonschema.Schema
	quiz     *jsonschema.Schema
	outline  *jsonschema.Schema
	syllabus *jsonschema.Schema
}

func compileSchemas() (*payloadSchemas, error) {
	c := jsonschema.NewCompiler()
	for name, src := range map[string]string{
		"diagram.json":  diagramSchema,
		"quiz.json":     quizSchema,
		"outline.json":  outlineSchema,
		"syllabus.json": syllabusSchema,
	} {
		if err := c.AddResource(name, strings.NewReader(src)); err != nil {
			return nil, err
		}
	}
	var ps payloadSchemas
	var err error
	if ps.diagram, err = c.Compile("diagram.json"); err != nil {
		return nil, err
	}
	if ps.quiz, err = c.Compile("quiz.json"); err != nil {
		return nil, err
	}
	if ps.outline, err = c.Compile("outline.json"); err != nil {
		return nil, err
	}
	if ps.syllabus, err = c.Compile("syllabus.json"); err != nil {
		return nil, err
	}
	return &ps, nil
}
