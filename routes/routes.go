// Package routes provides shared API route constants used by both
// the backend server and SDK clients to prevent path mismatches.
package routes

// Backend route paths - these constants are shared between server and clients
// to ensure compile-time safety and prevent endpoint mismatches.
const (
	// Health returns backend liveness plus the versions of downstream services.
	Health = "/api/health"

	// Chat performs a blocking assistant turn and returns the full reply.
	Chat = "/api/chat"

	// ChatStream streams an assistant turn as Server-Sent Events (delta/done/error).
	ChatStream = "/api/chat/stream"

	// PipelineGenerate generates a pipeline spec from a natural-language prompt.
	PipelineGenerate = "/api/pipeline/generate"

	// PipelineRefine applies reviewer feedback to an existing pipeline spec.
	PipelineRefine = "/api/pipeline/refine"

	// PipelineGenerateCode renders executable DAG code from a pipeline spec.
	PipelineGenerateCode = "/api/pipeline/generate-code"

	// PipelineRefineCode applies reviewer feedback to generated DAG code.
	PipelineRefineCode = "/api/pipeline/refine-code"

	// PipelineAutoFix rewrites DAG code to clear a known set of validation issues.
	PipelineAutoFix = "/api/pipeline/autofix"

	// PipelineRepair runs the generate-validate-fix loop until the code passes
	// validation or the iteration budget is exhausted.
	PipelineRepair = "/api/pipeline/repair"

	// PipelineValidate proxies spec and code validation to the validator service.
	PipelineValidate = "/api/pipeline/validate"

	// PipelineExport packages a pipeline (DAG code plus support files) as a zip.
	PipelineExport = "/api/pipeline/export"

	// AuthToken exchanges an API key for an access/refresh token pair.
	AuthToken = "/api/auth/token"

	// AuthRefresh swaps a refresh token for a new token pair.
	AuthRefresh = "/api/auth/refresh"
)

// Validator service route paths. The validator runs as a standalone service
// and is also reachable through PipelineValidate on the backend.
const (
	// ValidatorHealth returns validator liveness and version.
	ValidatorHealth = "/health"

	// ValidatorDAG validates DAG code and/or a pipeline spec.
	ValidatorDAG = "/validate/dag"

	// ValidatorEnvironment validates deployment environment configuration.
	ValidatorEnvironment = "/validate/environment"
)
