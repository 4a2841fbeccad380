package migration

// CheckResult is one independently reportable preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// FailedChecks returns the checks that did not pass.
func FailedChecks(checks []CheckResult) []CheckResult {
	var out []CheckResult
	for _, c := range checks {
		if !c.OK {
			out = append(out, c)
		}
	}
	return out
}

// ValidationReport is the integrity verdict gating cutover.
type ValidationReport struct {
	OK             bool     `json:"ok"`
	SourceCount    int64    `json:"source_count"`
	TargetCount    int64    `json:"target_count"`
	CountDelta     int64    `json:"count_delta"`
	AllowedDelta   int64    `json:"allowed_delta"`
	SampleSize     int      `json:"sample_size"`
	Matched        int      `json:"matched"`
	MatchRate      float64  `json:"match_rate"`
	MismatchedIDs  []string `json:"mismatched_ids,omitempty"`
	SchemaFailures []string `json:"schema_failures,omitempty"`
	Reasons        []string `json:"reasons,omitempty"`
}
