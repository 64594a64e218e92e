package dag

// knownOperators lists the operator types the generation backend can
// emit code for. Unknown types validate with a warning, not an error,
// so hand-edited specs can still pass through.
var knownOperators = map[string]struct{}{
	"BashOperator":                     {},
	"PythonOperator":                   {},
	"EmailOperator":                    {},
	"SimpleHttpOperator":               {},
	"PostgresOperator":                 {},
	"MySqlOperator":                    {},
	"SqliteOperator":                   {},
	"MsSqlOperator":                    {},
	"OracleOperator":                   {},
	"S3FileTransformOperator":          {},
	"S3ToRedshiftOperator":             {},
	"RedshiftToS3Operator":             {},
	"BigQueryOperator":                 {},
	"BigQueryCreateEmptyTableOperator": {},
	"GCSToGoogleDriveOperator":         {},
	"SnowflakeOperator":                {},
	"SparkSubmitOperator":              {},
	"DatabricksSubmitRunOperator":      {},
	"KubernetesPodOperator":            {},
	"DockerOperator":                   {},
	"EmptyOperator":                    {},
	"BranchPythonOperator":             {},
	"ShortCircuitOperator":             {},
	"TriggerDagRunOperator":            {},
	"ExternalTaskSensor":               {},
	"HttpSensor":                       {},
	"S3KeySensor":                      {},
	"SqlSensor":                        {},
	"TimeDeltaSensor":                  {},
}

// schedulePresets are the orchestrator's named schedule shortcuts.
var schedulePresets = map[string]struct{}{
	"@once":     {},
	"@hourly":   {},
	"@daily":    {},
	"@weekly":   {},
	"@monthly":  {},
	"@yearly":   {},
	"@annually": {},
}

// KnownOperator reports whether the operator type is one the platform
// generates code for.
func KnownOperator(operatorType string) bool {
	_, ok := knownOperators[operatorType]
	return ok
}

// SchedulePreset reports whether the schedule string is a named preset.
func SchedulePreset(schedule string) bool {
	_, ok := schedulePresets[schedule]
	return ok
}
