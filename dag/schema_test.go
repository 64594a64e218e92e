package dag_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagforge/dagforge-go/dag"
)

func fieldSet(issues []dag.Issue) map[string]bool {
	out := make(map[string]bool, len(issues))
	for _, issue := range issues {
		out[issue.Field] = true
	}
	return out
}

func TestCheckShape(t *testing.T) {
	t.Parallel()

	t.Run("well shaped document", func(t *testing.T) {
		t.Parallel()
		raw := json.RawMessage(`{
			"dag_id": "etl",
			"description": "ETL pipeline",
			"schedule": "@daily",
			"start_date": "2024-01-01",
			"catchup": false,
			"tags": ["etl"],
			"tasks": [{"task_id": "t1", "operator_type": "BashOperator", "params": {"bash_command": "true"}}]
		}`)
		assert.Empty(t, dag.CheckShape(raw))
	})

	t.Run("null schedule is a valid shape", func(t *testing.T) {
		t.Parallel()
		raw := json.RawMessage(`{"dag_id": "etl", "description": "d", "schedule": null, "tasks": []}`)
		assert.Empty(t, dag.CheckShape(raw))
	})

	t.Run("mistyped fields are reported with dotted paths", func(t *testing.T) {
		t.Parallel()
		raw := json.RawMessage(`{"dag_id": 123, "description": "d", "tasks": "not-a-list"}`)
		issues := dag.CheckShape(raw)
		require.NotEmpty(t, issues)
		fields := fieldSet(issues)
		assert.True(t, fields["dag_id"], "expected an issue for dag_id, got %v", issues)
		assert.True(t, fields["tasks"], "expected an issue for tasks, got %v", issues)
	})

	t.Run("nested task fields use full dotted paths", func(t *testing.T) {
		t.Parallel()
		raw := json.RawMessage(`{"dag_id": "etl", "description": "d", "tasks": [{"task_id": 7}]}`)
		issues := dag.CheckShape(raw)
		require.NotEmpty(t, issues)
		found := false
		for _, issue := range issues {
			if strings.HasPrefix(issue.Field, "tasks.0.") {
				found = true
			}
		}
		assert.True(t, found, "expected a tasks.0.* issue, got %v", issues)
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		issues := dag.CheckShape(json.RawMessage(`{"dag_id":`))
		require.Len(t, issues, 1)
		assert.Contains(t, issues[0].Message, "not valid JSON")
	})
}

func TestValidateSpecJSON(t *testing.T) {
	t.Parallel()

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		result := dag.ValidateSpecJSON(json.RawMessage(`{not json`))
		require.False(t, result.Valid)
		containsMessage(t, result.Errors, "not valid JSON")
	})

	t.Run("null document", func(t *testing.T) {
		t.Parallel()
		result := dag.ValidateSpecJSON(json.RawMessage(`null`))
		require.False(t, result.Valid)
		containsMessage(t, result.Errors, "DAG specification is empty")
	})

	t.Run("empty object", func(t *testing.T) {
		t.Parallel()
		result := dag.ValidateSpecJSON(json.RawMessage(`{}`))
		require.False(t, result.Valid)
		containsMessage(t, result.Errors, "DAG specification is empty")
	})

	t.Run("non-object document fails the shape check", func(t *testing.T) {
		t.Parallel()
		result := dag.ValidateSpecJSON(json.RawMessage(`["not", "a", "spec"]`))
		require.False(t, result.Valid)
		require.NotEmpty(t, result.Errors)
	})

	t.Run("shape errors suppress structural checks", func(t *testing.T) {
		t.Parallel()
		result := dag.ValidateSpecJSON(json.RawMessage(`{"dag_id": "etl", "description": "d", "tasks": "nope"}`))
		require.False(t, result.Valid)
		for _, issue := range result.Errors {
			assert.NotContains(t, issue.Message, "at least one task")
		}
	})

	t.Run("well shaped document runs the structural rules", func(t *testing.T) {
		t.Parallel()
		raw := json.RawMessage(`{
			"dag_id": "etl",
			"description": "ETL pipeline",
			"schedule": "@daily",
			"start_date": "2024-01-01",
			"tasks": [{"task_id": "t1", "operator_type": "MysteryOperator", "params": {"x": 1}}]
		}`)
		result := dag.ValidateSpecJSON(raw)
		assert.True(t, result.Valid)
		containsMessage(t, result.Warnings, "Unknown operator type")
	})
}
