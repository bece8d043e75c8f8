package model

import "strings"

// AnalysisStatus is the closed set of analysis outcomes.
type AnalysisStatus int

const (
	StatusUnknown AnalysisStatus = iota
	StatusNoChanges
	StatusCompleted
	StatusMinorChanges
	StatusModerateChanges
	StatusMajorChanges
	StatusCriticalChanges
	StatusPending
	StatusFailed
)

var statusNames = map[AnalysisStatus]string{
	StatusUnknown:         "Unknown",
	StatusNoChanges:       "No changes",
	StatusCompleted:       "Completed",
	StatusMinorChanges:    "Minor changes",
	StatusModerateChanges: "Moderate changes",
	StatusMajorChanges:    "Major changes",
	StatusCriticalChanges: "Critical changes",
	StatusPending:         "Pending",
	StatusFailed:          "Failed",
}

func (s AnalysisStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[StatusUnknown]
}

// ParseStatus maps the backend's human-readable status text onto the enum.
//
// Deprecated: compatibility shim for backends that still send free text.
// Remove once the backend reports a status code.
func ParseStatus(text string) AnalysisStatus {
	s := strings.ToLower(strings.TrimSpace(text))
	switch {
	case s == "":
		return StatusUnknown
	case strings.Contains(s, "no change"):
		return StatusNoChanges
	case s == "completed" || s == "complete":
		return StatusCompleted
	case strings.Contains(s, "critical"):
		return StatusCriticalChanges
	case strings.Contains(s, "major"):
		return StatusMajorChanges
	case strings.Contains(s, "moderate"):
		return StatusModerateChanges
	case strings.Contains(s, "minor"):
		return StatusMinorChanges
	case strings.Contains(s, "pending"), strings.Contains(s, "processing"), strings.Contains(s, "queued"):
		return StatusPending
	case strings.Contains(s, "fail"), strings.Contains(s, "error"):
		return StatusFailed
	}
	return StatusUnknown
}

// NeedsReview reports whether a result counts as pending review: anything
// other than "No changes" or "Completed".
func (s AnalysisStatus) NeedsReview() bool {
	return s != StatusNoChanges && s != StatusCompleted
}

// StatusClass is the display class used to colour a status.
type StatusClass string

const (
	ClassSuccess StatusClass = "success"
	ClassInfo    StatusClass = "info"
	ClassWarning StatusClass = "warning"
	ClassDanger  StatusClass = "danger"
	ClassMuted   StatusClass = "secondary"
)

// Class returns the display class for s.
func (s AnalysisStatus) Class() StatusClass {
	switch s {
	case StatusNoChanges, StatusCompleted:
		return ClassSuccess
	case StatusMinorChanges:
		return ClassInfo
	case StatusModerateChanges, StatusPending:
		return ClassWarning
	case StatusMajorChanges, StatusCriticalChanges, StatusFailed:
		return ClassDanger
	default:
		return ClassMuted
	}
}

// NextStep suggests what a reviewer should do with a result in state s.
func (s AnalysisStatus) NextStep() string {
	switch s {
	case StatusNoChanges, StatusCompleted:
		return "Approve contract"
	case StatusMinorChanges:
		return "Quick review of minor edits"
	case StatusModerateChanges:
		return "Review flagged clauses"
	case StatusMajorChanges:
		return "Legal review required"
	case StatusCriticalChanges:
		return "Escalate to legal immediately"
	case StatusPending:
		return "Wait for analysis to finish"
	case StatusFailed:
		return "Re-run analysis"
	default:
		return "Review manually"
	}
}

// Tier is a similarity confidence band.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// ConfidenceTier bands a 0-100 similarity score: 90 and above is high,
// 70 and above medium, anything else low.
func ConfidenceTier(similarity float64) Tier {
	switch {
	case similarity >= 90:
		return TierHigh
	case similarity >= 70:
		return TierMedium
	default:
		return TierLow
	}
}
