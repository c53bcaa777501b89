package agent

import (
	"strings"
)

// Judgment is the parsed output of one sufficiency-judge call.
type Judgment struct {
	Verdict      Verdict
	Reason       string
	RefinedQuery string
	ParseFailed  bool
}

// ParseJudgment extracts the verdict contract from raw judge output.
// Parsing is tolerant: labels are matched case-insensitively, the
// verdict token may appear anywhere on its line, and an output with no
// recognizable verdict resolves fail-open to sufficient. The fail-open
// default is deliberate: a stricter default could loop forever on
// judge formatting drift, while ParseFailed lets callers count how
// often it happens.
func ParseJudgment(raw string) Judgment {
	var j Judgment
	found := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "VERDICT"):
			if v, ok := parseVerdict(line); ok {
				j.Verdict = v
				found = true
			}
		case strings.HasPrefix(upper, "REASON"):
			j.Reason = afterColon(line)
		case strings.HasPrefix(upper, "REFINED_QUERY"):
			j.RefinedQuery = afterColon(line)
		}
	}
	if !found {
		// Last resort before failing open: a verdict token anywhere
		// in the output.
		if v, ok := parseVerdict(raw); ok {
			j.Verdict = v
			found = true
		}
	}
	if !found {
		j.Verdict = VerdictSufficient
		j.ParseFailed = true
	}
	return j
}

func parseVerdict(s string) (Verdict, bool) {
	lower := strings.ToLower(s)
	// Order matters: "insufficient" contains "sufficient".
	switch {
	case strings.Contains(lower, "insufficient"):
		return VerdictInsufficient, true
	case strings.Contains(lower, "irrelevant"):
		return VerdictIrrelevant, true
	case strings.Contains(lower, "sufficient"):
		return VerdictSufficient, true
	}
	return "", false
}

func afterColon(line string) string {
	if i := strings.Index(line, ":"); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}
