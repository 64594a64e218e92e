package dag

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SpecSchema is the JSON Schema (draft 2020-12) for pipeline
// specifications. It type-checks the document shape; required-ness and
// cross-field rules live in ValidateSpec so both passes report with the
// same issue vocabulary.
const SpecSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Pipeline specification",
  "type": "object",
  "properties": {
    "dag_id": {"type": "string"},
    "description": {"type": "string"},
    "schedule": {"type": ["string", "null"]},
    "start_date": {"type": "string"},
    "catchup": {"type": "boolean"},
    "tags": {"type": "array", "items": {"type": "string"}},
    "default_args": {
      "type": "object",
      "properties": {
        "owner": {"type": "string"},
        "retries": {"type": "integer", "minimum": 0},
        "retry_delay": {"type": "integer", "minimum": 0},
        "email": {"type": "array", "items": {"type": "string"}},
        "email_on_failure": {"type": "boolean"},
        "email_on_retry": {"type": "boolean"}
      }
    },
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "task_id": {"type": "string"},
          "operator_type": {"type": "string"},
          "params": {"type": "object"},
          "retries": {"type": "integer", "minimum": 0},
          "retry_delay": {"type": "integer", "minimum": 0},
          "dependencies": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "conn_id": {"type": "string"},
          "conn_type": {"type": "string"},
          "host": {"type": "string"},
          "schema": {"type": "string"},
          "login": {"type": "string"},
          "port": {"type": "integer"},
          "extra": {"type": "string"}
        }
      }
    },
    "variables": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "key": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

var (
	specSchemaOnce sync.Once
	specSchema     *jsonschema.Schema
	specSchemaErr  error
)

func compiledSpecSchema() (*jsonschema.Schema, error) {
	specSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("pipeline_spec.schema.json", strings.NewReader(SpecSchema)); err != nil {
			specSchemaErr = fmt.Errorf("dag: add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("pipeline_spec.schema.json")
		if err != nil {
			specSchemaErr = fmt.Errorf("dag: compile schema: %w", err)
			return
		}
		specSchema = schema
	})
	return specSchema, specSchemaErr
}

// CheckShape validates raw spec JSON against SpecSchema, reporting type
// mismatches as schema issues with dotted field paths. A nil return
// means the shape is sound.
func CheckShape(raw json.RawMessage) []Issue {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return []Issue{{Type: IssueStructure, Field: "root", Message: fmt.Sprintf("Specification is not valid JSON: %s", err)}}
	}
	return shapeIssues(doc)
}

func shapeIssues(doc any) []Issue {
	schema, err := compiledSpecSchema()
	if err != nil {
		return []Issue{{Type: IssueValidation, Message: fmt.Sprintf("Validation error: %s", err)}}
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	if validationErr, ok := err.(*jsonschema.ValidationError); ok {
		return schemaIssues(validationErr)
	}
	return []Issue{{Type: IssueSchema, Message: err.Error()}}
}

// schemaIssues recursively flattens nested validation causes.
func schemaIssues(err *jsonschema.ValidationError) []Issue {
	var issues []Issue
	if err.Message != "" {
		issue := Issue{Type: IssueSchema, Message: err.Message}
		if path := dottedPath(err.InstanceLocation); path != "" {
			issue.Field = path
		}
		issues = append(issues, issue)
	}
	for _, cause := range err.Causes {
		issues = append(issues, schemaIssues(cause)...)
	}
	return issues
}

// dottedPath converts a JSON Pointer instance location to dot notation,
// e.g. "#/tasks/0/task_id" becomes "tasks.0.task_id".
func dottedPath(location string) string {
	clean := strings.TrimPrefix(location, "#")
	clean = strings.TrimPrefix(clean, "/")
	return strings.ReplaceAll(clean, "/", ".")
}

// ValidateSpecJSON validates a raw spec document: shape first, then the
// structural rules. Shape errors short-circuit the structural pass,
// since a mistyped document cannot decode into a Spec faithfully.
func ValidateSpecJSON(raw json.RawMessage) Result {
	v := &collector{}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		v.addError(Issue{Type: IssueStructure, Field: "root", Message: fmt.Sprintf("Specification is not valid JSON: %s", err)})
		return v.result()
	}
	if doc == nil {
		v.addError(Issue{Type: IssueStructure, Field: "root", Message: "DAG specification is empty"})
		return v.result()
	}
	if m, ok := doc.(map[string]any); ok && len(m) == 0 {
		v.addError(Issue{Type: IssueStructure, Field: "root", Message: "DAG specification is empty"})
		return v.result()
	}
	if issues := shapeIssues(doc); len(issues) > 0 {
		v.errors = append(v.errors, issues...)
		return v.result()
	}
	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		v.addError(Issue{Type: IssueStructure, Field: "root", Message: fmt.Sprintf("Specification could not be decoded: %s", err)})
		return v.result()
	}
	return ValidateSpec(&spec)
}
