package dag

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	identPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	cronPattern  = regexp.MustCompile(`^(@(yearly|annually|monthly|weekly|daily|hourly|reboot))|(@every (\d+(ns|us|µs|ms|s|m|h))+)|((((\d+,)+\d+|(\d+(/|-)\d+)|\d+|\*) ?){5,7})$`)
)

const maxDAGIDLength = 100

// unscheduled reports whether the schedule value means "never run
// automatically". The generation backend emits the literal strings as
// well as JSON null.
func unscheduled(schedule *string) bool {
	return schedule == nil || *schedule == "None" || *schedule == "null"
}

// ValidateSpec checks a pipeline specification for structural problems:
// required fields, identifier formats, schedule and date syntax, task
// definitions, and the dependency graph. Errors fail validation;
// warnings flag likely mistakes that still produce a runnable DAG.
func ValidateSpec(spec *Spec) Result {
	v := &collector{}
	if spec == nil {
		v.addError(Issue{Type: IssueStructure, Field: "root", Message: "DAG specification is empty"})
		return v.result()
	}
	v.checkRequiredFields(spec)
	v.checkDAGID(spec.DAGID)
	v.checkSchedule(spec.Schedule)
	v.checkStartDate(spec.StartDate)
	v.checkTasks(spec.Tasks)
	v.checkConnections(spec.Connections)
	v.checkVariables(spec.Variables)
	v.checkDependencies(spec.Tasks)
	return v.result()
}

func (c *collector) checkRequiredFields(spec *Spec) {
	if spec.DAGID == "" {
		c.addError(Issue{Type: IssueField, Field: "dag_id", Message: `Required field "dag_id" is missing or null`})
	}
	if spec.Description == "" {
		c.addError(Issue{Type: IssueField, Field: "description", Message: `Required field "description" is missing or null`})
	}
	if spec.Schedule == nil {
		// A null schedule is legal; the DAG just never triggers itself.
		c.addWarning(Issue{Type: IssueField, Field: "schedule", Message: "Schedule is null - DAG will not run automatically"})
	}
	if spec.Tasks == nil {
		c.addError(Issue{Type: IssueField, Field: "tasks", Message: `Required field "tasks" is missing or null`})
	}
}

func (c *collector) checkDAGID(dagID string) {
	if dagID == "" {
		return // already reported by the required-fields check
	}
	if !identPattern.MatchString(dagID) {
		c.addError(Issue{
			Type:    IssueFormat,
			Field:   "dag_id",
			Message: fmt.Sprintf("DAG ID %q contains invalid characters. Use only letters, numbers, underscores, and hyphens.", dagID),
		})
	}
	if n := utf8.RuneCountInString(dagID); n > maxDAGIDLength {
		c.addError(Issue{
			Type:    IssueFormat,
			Field:   "dag_id",
			Message: fmt.Sprintf("DAG ID is too long (%d chars). Maximum is %d characters.", n, maxDAGIDLength),
		})
	}
	if dagID != strings.ToLower(dagID) {
		c.addWarning(Issue{
			Type:    IssueFormat,
			Field:   "dag_id",
			Message: fmt.Sprintf("DAG ID should be lowercase for consistency. Consider: %q", strings.ToLower(dagID)),
		})
	}
}

func (c *collector) checkSchedule(schedule *string) {
	if unscheduled(schedule) {
		return
	}
	value := *schedule
	if SchedulePreset(value) {
		return
	}
	if !cronPattern.MatchString(strings.TrimSpace(value)) {
		c.addWarning(Issue{
			Type:    IssueFormat,
			Field:   "schedule",
			Message: fmt.Sprintf("Schedule %q may not be a valid cron expression or preset", value),
		})
	}
}

// isoDateLayouts covers the date and timestamp shapes the generation
// backend emits for start_date.
var isoDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseISODate(value string) bool {
	for _, layout := range isoDateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

func (c *collector) checkStartDate(startDate string) {
	if startDate == "" {
		c.addWarning(Issue{Type: IssueField, Field: "start_date", Message: "No start_date specified. Will use default."})
		return
	}
	if !parseISODate(startDate) {
		c.addError(Issue{
			Type:    IssueFormat,
			Field:   "start_date",
			Message: fmt.Sprintf("Invalid date format %q. Use YYYY-MM-DD.", startDate),
		})
	}
}

func (c *collector) checkTasks(tasks []Task) {
	if len(tasks) == 0 {
		c.addError(Issue{Type: IssueStructure, Field: "tasks", Message: "DAG must contain at least one task"})
		return
	}
	seen := make(map[string]struct{}, len(tasks))
	for i, task := range tasks {
		if task.TaskID == "" {
			c.addError(Issue{
				Type:    IssueField,
				Field:   fmt.Sprintf("tasks[%d].task_id", i),
				Message: fmt.Sprintf("Task at index %d is missing task_id", i),
			})
			continue
		}
		if _, dup := seen[task.TaskID]; dup {
			c.addError(Issue{
				Type:    IssueDuplicate,
				Field:   "task_id",
				Message: fmt.Sprintf("Duplicate task_id: %q", task.TaskID),
			})
		}
		seen[task.TaskID] = struct{}{}
		if !identPattern.MatchString(task.TaskID) {
			c.addError(Issue{
				Type:    IssueFormat,
				Field:   fmt.Sprintf("tasks[%d].task_id", i),
				Message: fmt.Sprintf("Task ID %q contains invalid characters", task.TaskID),
			})
		}
		if task.OperatorType == "" {
			c.addError(Issue{
				Type:    IssueField,
				Field:   fmt.Sprintf("tasks[%d].operator_type", i),
				Message: fmt.Sprintf("Task %q is missing operator_type", task.TaskID),
			})
		} else if !KnownOperator(task.OperatorType) {
			c.addWarning(Issue{
				Type:    IssueOperator,
				Field:   fmt.Sprintf("tasks[%d].operator_type", i),
				Message: fmt.Sprintf("Unknown operator type: %q. May not be supported.", task.OperatorType),
			})
		}
		if task.OperatorType != "" && len(task.Params) == 0 {
			c.addWarning(Issue{
				Type:    IssueParams,
				Field:   fmt.Sprintf("tasks[%d].params", i),
				Message: fmt.Sprintf("Task %q has no parameters. Operator may require configuration.", task.TaskID),
			})
		}
	}
}

func (c *collector) checkConnections(connections []Connection) {
	seen := make(map[string]struct{}, len(connections))
	for i, conn := range connections {
		if conn.ConnID == "" {
			c.addError(Issue{
				Type:    IssueField,
				Field:   fmt.Sprintf("connections[%d].conn_id", i),
				Message: fmt.Sprintf("Connection at index %d is missing conn_id", i),
			})
			continue
		}
		if _, dup := seen[conn.ConnID]; dup {
			c.addError(Issue{
				Type:    IssueDuplicate,
				Field:   "conn_id",
				Message: fmt.Sprintf("Duplicate connection ID: %q", conn.ConnID),
			})
		}
		seen[conn.ConnID] = struct{}{}
		if conn.ConnType == "" {
			c.addError(Issue{
				Type:    IssueField,
				Field:   fmt.Sprintf("connections[%d].conn_type", i),
				Message: fmt.Sprintf("Connection %q is missing conn_type", conn.ConnID),
			})
		}
	}
}

func (c *collector) checkVariables(variables []Variable) {
	seen := make(map[string]struct{}, len(variables))
	for i, variable := range variables {
		if variable.Key == "" {
			c.addError(Issue{
				Type:    IssueField,
				Field:   fmt.Sprintf("variables[%d].key", i),
				Message: fmt.Sprintf("Variable at index %d is missing key", i),
			})
			continue
		}
		if _, dup := seen[variable.Key]; dup {
			c.addWarning(Issue{
				Type:    IssueDuplicate,
				Field:   "variable_key",
				Message: fmt.Sprintf("Duplicate variable key: %q", variable.Key),
			})
		}
		seen[variable.Key] = struct{}{}
	}
}

func (c *collector) checkDependencies(tasks []Task) {
	if len(tasks) == 0 {
		return
	}
	known := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		if task.TaskID != "" {
			known[task.TaskID] = struct{}{}
		}
	}
	for _, task := range tasks {
		if task.TaskID == "" {
			continue
		}
		for _, dep := range task.Dependencies {
			if _, ok := known[dep]; !ok {
				c.addError(Issue{
					Type:    IssueDependency,
					Field:   "dependencies",
					Message: fmt.Sprintf("Task %q depends on non-existent task %q", task.TaskID, dep),
				})
			}
			if dep == task.TaskID {
				c.addError(Issue{
					Type:    IssueDependency,
					Field:   "dependencies",
					Message: fmt.Sprintf("Task %q cannot depend on itself", task.TaskID),
				})
			}
		}
	}
	if HasCycle(tasks) {
		c.addError(Issue{
			Type:    IssueDependency,
			Field:   "dependencies",
			Message: "Circular dependency detected in task graph",
		})
	}
}
