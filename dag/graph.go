package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCyclic is returned when the task graph cannot be ordered because
// it contains at least one dependency cycle.
var ErrCyclic = errors.New("dag: task graph contains a cycle")

// taskGraph is an adjacency view over a task list. Edges point from a
// task to the tasks it depends on. Tasks without an ID are skipped;
// duplicate IDs collapse to the last definition, mirroring how the
// validator reports them separately.
type taskGraph struct {
	order []string
	deps  map[string][]string
}

func newTaskGraph(tasks []Task) taskGraph {
	g := taskGraph{deps: make(map[string][]string, len(tasks))}
	for _, task := range tasks {
		if task.TaskID == "" {
			continue
		}
		if _, seen := g.deps[task.TaskID]; !seen {
			g.order = append(g.order, task.TaskID)
		}
		g.deps[task.TaskID] = task.Dependencies
	}
	return g
}

// HasCycle reports whether the dependency graph contains a cycle.
// Dependencies on unknown tasks are treated as leaves; they are a
// separate validation finding, not a cycle.
func HasCycle(tasks []Task) bool {
	return len(CycleNodes(tasks)) > 0
}

// CycleNodes returns the task IDs forming the first dependency cycle
// found in task-definition order, or nil when the graph is acyclic.
func CycleNodes(tasks []Task) []string {
	g := newTaskGraph(tasks)
	visited := make(map[string]bool, len(g.order))
	onStack := make(map[string]bool, len(g.order))
	var path []string

	var visit func(node string) []string
	visit = func(node string) []string {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)
		for _, dep := range g.deps[node] {
			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			} else if onStack[dep] {
				// Slice the current path from the repeated node to close the loop.
				for i, id := range path {
					if id == dep {
						return append([]string{}, path[i:]...)
					}
				}
				return []string{dep}
			}
		}
		onStack[node] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, node := range g.order {
		if !visited[node] {
			if cycle := visit(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// ExecutionOrder returns task IDs in a topological order where every
// task appears after all of its dependencies. The order is stable with
// respect to task-definition order. Returns ErrCyclic when no such
// order exists.
func ExecutionOrder(tasks []Task) ([]string, error) {
	g := newTaskGraph(tasks)
	indegree := make(map[string]int, len(g.order))
	dependents := make(map[string][]string, len(g.order))
	for _, id := range g.order {
		for _, dep := range g.deps[id] {
			if _, ok := g.deps[dep]; !ok {
				continue // unknown dependency, reported by validation
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	ordered := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, id)
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(ordered) != len(g.order) {
		return nil, fmt.Errorf("%w: %s", ErrCyclic, strings.Join(CycleNodes(tasks), " -> "))
	}
	return ordered, nil
}
