package dag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagforge/dagforge-go/dag"
)

const validDAGCode = `from airflow import DAG
from airflow.operators.bash import BashOperator
from datetime import datetime

with DAG('test_dag', start_date=datetime(2024, 1, 1), schedule='@daily') as dag:
    task1 = BashOperator(task_id='hello', bash_command='echo hello')
`

func TestCheckCode_ValidDAG(t *testing.T) {
	t.Parallel()
	result := dag.CheckCode(validDAGCode)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestCheckCode_Empty(t *testing.T) {
	t.Parallel()

	t.Run("empty string", func(t *testing.T) {
		t.Parallel()
		result := dag.CheckCode("")
		require.False(t, result.Valid)
		containsMessage(t, result.Errors, "DAG code is empty")
	})

	t.Run("whitespace only", func(t *testing.T) {
		t.Parallel()
		result := dag.CheckCode("   \n\t\n")
		require.False(t, result.Valid)
		containsMessage(t, result.Errors, "DAG code is empty")
	})
}

func TestCheckCode_BrokenFunctionDef(t *testing.T) {
	t.Parallel()
	code := `from airflow import DAG

def broken function():
    pass

with DAG('test_dag') as dag:
    task1 = BashOperator(task_id='t1')
`
	result := dag.CheckCode(code)
	require.False(t, result.Valid)
	containsMessage(t, result.Errors, "invalid function definition")
	containsMessage(t, result.Errors, "line 3")
}

func TestCheckCode_MissingColon(t *testing.T) {
	t.Parallel()
	code := `from airflow import DAG
from airflow.operators.bash import BashOperator

with DAG('test_dag') as dag
    task1 = BashOperator(task_id='t1', bash_command='true')
`
	result := dag.CheckCode(code)
	require.False(t, result.Valid)
	containsMessage(t, result.Errors, "expected ':'")
	containsMessage(t, result.Errors, "line 4")
}

func TestCheckCode_Delimiters(t *testing.T) {
	t.Parallel()

	t.Run("unclosed paren", func(t *testing.T) {
		t.Parallel()
		result := dag.CheckCode("task = BashOperator(task_id='t1'\n")
		require.False(t, result.Valid)
		containsMessage(t, result.Errors, "was never closed")
	})

	t.Run("unmatched close", func(t *testing.T) {
		t.Parallel()
		result := dag.CheckCode("x = 1]\n")
		require.False(t, result.Valid)
		containsMessage(t, result.Errors, `unmatched "]"`)
	})

	t.Run("mismatched pair", func(t *testing.T) {
		t.Parallel()
		result := dag.CheckCode("x = (1]\n")
		require.False(t, result.Valid)
		containsMessage(t, result.Errors, `closing "]" does not match opening "("`)
	})

	t.Run("multi-line call groups into one logical line", func(t *testing.T) {
		t.Parallel()
		code := `from airflow import DAG
from airflow.operators.python import PythonOperator

with DAG(
    'test_dag',
    schedule='@daily',
) as dag:
    task1 = PythonOperator(
        task_id='t1',
        python_callable=run,
    )
`
		result := dag.CheckCode(code)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})
}

func TestCheckCode_Strings(t *testing.T) {
	t.Parallel()

	t.Run("unterminated string", func(t *testing.T) {
		t.Parallel()
		result := dag.CheckCode("x = 'abc\n")
		require.False(t, result.Valid)
		containsMessage(t, result.Errors, "unterminated string literal")
	})

	t.Run("unterminated triple-quoted string", func(t *testing.T) {
		t.Parallel()
		result := dag.CheckCode("x = \"\"\"docstring without end\n")
		require.False(t, result.Valid)
		containsMessage(t, result.Errors, "unterminated triple-quoted string literal")
	})

	t.Run("delimiters inside strings are ignored", func(t *testing.T) {
		t.Parallel()
		code := `from airflow import DAG
from airflow.operators.bash import BashOperator

def transform():
    """Docstring mentioning def broken ( and ] freely."""
    return 'unbalanced ( in a literal'

with DAG('test_dag') as dag:
    task1 = BashOperator(task_id='t1', bash_command='echo ")"')
`
		result := dag.CheckCode(code)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("escaped quotes stay inside the literal", func(t *testing.T) {
		t.Parallel()
		result := dag.CheckCode("x = 'it\\'s fine'\n")
		assert.Empty(t, result.Errors)
	})
}

func TestCheckCode_StructureWarnings(t *testing.T) {
	t.Parallel()

	t.Run("plain python gets all three warnings", func(t *testing.T) {
		t.Parallel()
		result := dag.CheckCode("import json\nx = json.dumps({})\n")
		assert.True(t, result.Valid)
		containsMessage(t, result.Warnings, "No Airflow imports detected")
		containsMessage(t, result.Warnings, "No DAG definition found")
		containsMessage(t, result.Warnings, "No task operators detected")
	})

	t.Run("comments do not count as definitions", func(t *testing.T) {
		t.Parallel()
		code := `from airflow import utils
# DAG( only appears in this comment
x = 1
`
		result := dag.CheckCode(code)
		assert.True(t, result.Valid)
		containsMessage(t, result.Warnings, "No DAG definition found")
	})

	t.Run("sensors count as tasks", func(t *testing.T) {
		t.Parallel()
		code := `from airflow import DAG
from airflow.sensors.external_task import ExternalTaskSensor

with DAG('test_dag') as dag:
    wait = ExternalTaskSensor(task_id='wait', external_dag_id='upstream')
`
		result := dag.CheckCode(code)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Warnings)
	})
}
