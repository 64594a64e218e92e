// Package dag defines pipeline specification types and local validation
// for generated Airflow DAGs. The same rules run inside the validator
// service and client-side ahead of a round trip.
package dag

// Spec is a pipeline specification: a JSON document describing a DAG,
// its schedule, and its tasks. It is produced by the generation backend
// and consumed by code generation, validation, and export.
type Spec struct {
	DAGID       string       `json:"dag_id"`
	Description string       `json:"description"`
	Schedule    *string      `json:"schedule"`
	StartDate   string       `json:"start_date,omitempty"`
	Catchup     *bool        `json:"catchup,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	DefaultArgs *DefaultArgs `json:"default_args,omitempty"`
	Tasks       []Task       `json:"tasks"`
	Connections []Connection `json:"connections,omitempty"`
	Variables   []Variable   `json:"variables,omitempty"`
}

// Task is a single node in the pipeline. Dependencies name upstream
// task IDs within the same spec.
type Task struct {
	TaskID       string         `json:"task_id"`
	OperatorType string         `json:"operator_type"`
	Params       map[string]any `json:"params,omitempty"`
	Retries      *int           `json:"retries,omitempty"`
	RetryDelay   *int           `json:"retry_delay,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

// Connection declares an external system the pipeline talks to.
type Connection struct {
	ConnID   string `json:"conn_id"`
	ConnType string `json:"conn_type"`
	Host     string `json:"host,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Login    string `json:"login,omitempty"`
	Port     int    `json:"port,omitempty"`
	Extra    string `json:"extra,omitempty"`
}

// Variable is an orchestrator-level key/value setting the DAG reads at
// run time.
type Variable struct {
	Key         string `json:"key"`
	Value       any    `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
}

// DefaultArgs mirror the orchestrator's per-task defaults block.
type DefaultArgs struct {
	Owner          string   `json:"owner,omitempty"`
	Retries        *int     `json:"retries,omitempty"`
	RetryDelay     *int     `json:"retry_delay,omitempty"`
	Email          []string `json:"email,omitempty"`
	EmailOnFailure *bool    `json:"email_on_failure,omitempty"`
	EmailOnRetry   *bool    `json:"email_on_retry,omitempty"`
}

// IssueType classifies a validation finding.
type IssueType string

const (
	IssueSyntax     IssueType = "syntax"
	IssueStructure  IssueType = "structure"
	IssueField      IssueType = "field"
	IssueFormat     IssueType = "format"
	IssueDuplicate  IssueType = "duplicate"
	IssueOperator   IssueType = "operator"
	IssueParams     IssueType = "params"
	IssueDependency IssueType = "dependency"
	IssueSchema     IssueType = "schema"
	IssueValidation IssueType = "validation"
)

// Issue is a single validation finding. Field names the spec location
// for structure findings; Line carries the source line for code findings.
type Issue struct {
	Type    IssueType `json:"type"`
	Field   string    `json:"field,omitempty"`
	Line    int       `json:"line,omitempty"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// Result is the outcome of a single validation pass. Errors and
// Warnings always marshal as arrays, never null.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Merge folds another pass into this one, preserving issue order.
func (r Result) Merge(other Result) Result {
	out := Result{
		Valid:    r.Valid && other.Valid,
		Errors:   append(append([]Issue{}, r.Errors...), other.Errors...),
		Warnings: append(append([]Issue{}, r.Warnings...), other.Warnings...),
	}
	return out
}

// Report aggregates validation passes over DAG code and a pipeline spec,
// in the shape served by the validator service.
type Report struct {
	Valid    bool          `json:"valid"`
	Errors   []Issue       `json:"errors"`
	Warnings []Issue       `json:"warnings"`
	Details  ReportDetails `json:"details"`
}

// ReportDetails carries per-pass results. A nil pass was not requested
// and marshals as null.
type ReportDetails struct {
	Syntax    *Result `json:"syntax_validation"`
	Structure *Result `json:"structure_validation"`
}

// BuildReport combines pass results into a single report. Syntax issues
// come first, matching the order the passes run.
func BuildReport(syntax, structure *Result) Report {
	report := Report{
		Valid:    true,
		Errors:   []Issue{},
		Warnings: []Issue{},
		Details:  ReportDetails{Syntax: syntax, Structure: structure},
	}
	for _, pass := range []*Result{syntax, structure} {
		if pass == nil {
			continue
		}
		report.Valid = report.Valid && pass.Valid
		report.Errors = append(report.Errors, pass.Errors...)
		report.Warnings = append(report.Warnings, pass.Warnings...)
	}
	return report
}

// collector accumulates issues during a validation pass.
type collector struct {
	errors   []Issue
	warnings []Issue
}

func (c *collector) addError(issue Issue) {
	c.errors = append(c.errors, issue)
}

func (c *collector) addWarning(issue Issue) {
	c.warnings = append(c.warnings, issue)
}

func (c *collector) result() Result {
	return Result{
		Valid:    len(c.errors) == 0,
		Errors:   append([]Issue{}, c.errors...),
		Warnings: append([]Issue{}, c.warnings...),
	}
}
