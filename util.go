package dagforge

import "time"

// DurationPtr is a convenience helper for optional timeout fields.
func DurationPtr(d time.Duration) *time.Duration { return &d }

// BoolPtr is a convenience helper for optional boolean fields.
func BoolPtr(b bool) *bool { return &b }

// StringPtr is a convenience helper for optional string fields such as
// a pipeline schedule.
func StringPtr(s string) *string { return &s }

// IntPtr is a convenience helper for optional int fields.
func IntPtr(v int) *int { return &v }
