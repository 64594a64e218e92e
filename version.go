package dagforge

// Version is the published SDK version.
// 0.4.0: Breaking - ChatStream.Collect returns the aggregated text directly; add
// Completed() so callers can distinguish a done-terminated stream from a bare EOF.
// 0.3.0: Add stream timeouts (TTFT/idle/total) with WithStreamTimeouts, typed
// StreamDecodeError for malformed frame payloads instead of raw parse failures.
// 0.2.0: Add Pipelines.Repair multi-iteration auto-repair and zip package export.
const Version = "0.4.0"
