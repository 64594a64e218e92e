package dag_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagforge/dagforge-go/dag"
)

func graphTask(id string, deps ...string) dag.Task {
	return dag.Task{TaskID: id, OperatorType: "BashOperator", Dependencies: deps}
}

func TestExecutionOrder(t *testing.T) {
	t.Parallel()

	t.Run("linear chain", func(t *testing.T) {
		t.Parallel()
		order, err := dag.ExecutionOrder([]dag.Task{
			graphTask("load", "transform"),
			graphTask("extract"),
			graphTask("transform", "extract"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"extract", "transform", "load"}, order)
	})

	t.Run("diamond keeps definition order between peers", func(t *testing.T) {
		t.Parallel()
		order, err := dag.ExecutionOrder([]dag.Task{
			graphTask("a"),
			graphTask("b", "a"),
			graphTask("c", "a"),
			graphTask("d", "b", "c"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	})

	t.Run("unknown dependencies are ignored", func(t *testing.T) {
		t.Parallel()
		order, err := dag.ExecutionOrder([]dag.Task{
			graphTask("t1", "not_defined"),
			graphTask("t2", "t1"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"t1", "t2"}, order)
	})

	t.Run("cycle returns ErrCyclic", func(t *testing.T) {
		t.Parallel()
		_, err := dag.ExecutionOrder([]dag.Task{
			graphTask("task1", "task2"),
			graphTask("task2", "task1"),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, dag.ErrCyclic))
		assert.Contains(t, err.Error(), "task1")
	})

	t.Run("self dependency returns ErrCyclic", func(t *testing.T) {
		t.Parallel()
		_, err := dag.ExecutionOrder([]dag.Task{graphTask("task1", "task1")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, dag.ErrCyclic))
	})
}

func TestHasCycle(t *testing.T) {
	t.Parallel()

	t.Run("acyclic", func(t *testing.T) {
		t.Parallel()
		assert.False(t, dag.HasCycle([]dag.Task{graphTask("a"), graphTask("b", "a")}))
	})

	t.Run("two node cycle", func(t *testing.T) {
		t.Parallel()
		assert.True(t, dag.HasCycle([]dag.Task{graphTask("a", "b"), graphTask("b", "a")}))
	})

	t.Run("self loop", func(t *testing.T) {
		t.Parallel()
		assert.True(t, dag.HasCycle([]dag.Task{graphTask("a", "a")}))
	})

	t.Run("empty graph", func(t *testing.T) {
		t.Parallel()
		assert.False(t, dag.HasCycle(nil))
	})
}

func TestCycleNodes(t *testing.T) {
	t.Parallel()

	t.Run("reports the tasks on the cycle", func(t *testing.T) {
		t.Parallel()
		nodes := dag.CycleNodes([]dag.Task{
			graphTask("setup"),
			graphTask("a", "setup", "c"),
			graphTask("b", "a"),
			graphTask("c", "b"),
		})
		assert.ElementsMatch(t, []string{"a", "b", "c"}, nodes)
	})

	t.Run("acyclic graph yields nothing", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, dag.CycleNodes([]dag.Task{graphTask("a"), graphTask("b", "a")}))
	})
}
