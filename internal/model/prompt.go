package model

// PromptType identifies one of the backend's editable prompt templates.
type PromptType string

const (
	PromptContractAnalysis PromptType = "contract_analysis"
	PromptChangeSummary    PromptType = "change_summary"
	PromptRiskAssessment   PromptType = "risk_assessment"
	PromptClauseComparison PromptType = "clause_comparison"
)

// PromptTypes lists the prompt types in selector order.
func PromptTypes() []PromptType {
	return []PromptType{
		PromptContractAnalysis,
		PromptChangeSummary,
		PromptRiskAssessment,
		PromptClauseComparison,
	}
}

// Valid reports whether t is a known prompt type.
func (t PromptType) Valid() bool {
	for _, known := range PromptTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// PromptTemplate is the current text of a prompt.
type PromptTemplate struct {
	PromptType PromptType `json:"prompt_type"`
	Content    string     `json:"content"`
	UpdatedAt  string     `json:"updated_at,omitempty"`
}

// PromptBackup is a saved snapshot of a prompt.
type PromptBackup struct {
	ID         string     `json:"id"`
	PromptType PromptType `json:"prompt_type"`
	Name       string     `json:"name,omitempty"`
	CreatedAt  string     `json:"created_at"`
}

// ValidationResult is the backend's verdict on prompt text.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Variables []string `json:"variables,omitempty"`
}

// PromptPreview is prompt text with sample variables substituted.
type PromptPreview struct {
	Rendered string `json:"rendered"`
}

// PromptStats holds free-form usage counters.
type PromptStats map[string]any
