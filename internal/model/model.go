// Package model holds the console's view models of backend resources.
// The backend owns every record; the console replaces its copies wholesale
// on each refresh.
package model

import (
	"encoding/json"
	"time"
)

// Contract is an uploaded contract document.
type Contract struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	FileSize   int64  `json:"file_size"`
	UploadDate string `json:"upload_date"`
}

// Template is a reference document contracts are compared against.
type Template struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	FileSize   int64  `json:"file_size"`
	UploadDate string `json:"upload_date"`
}

// AnalysisResult is a server-computed comparison of a contract against a template.
type AnalysisResult struct {
	AnalysisID string            `json:"analysis_id,omitempty"`
	RawID      string            `json:"id,omitempty"`
	Contract   string            `json:"contract"`
	Template   string            `json:"template"`
	Similarity float64           `json:"similarity"`
	RawStatus  string            `json:"status"`
	Reviewer   string            `json:"reviewer,omitempty"`
	Date       string            `json:"date"`
	Changes    []json.RawMessage `json:"changes,omitempty"`
}

// ID returns analysis_id when present, else id.
func (r AnalysisResult) ID() string {
	if r.AnalysisID != "" {
		return r.AnalysisID
	}
	return r.RawID
}

// Status classifies the free-text status.
func (r AnalysisResult) Status() AnalysisStatus {
	return ParseStatus(r.RawStatus)
}

// ChangeCount is the number of detected changes.
func (r AnalysisResult) ChangeCount() int {
	return len(r.Changes)
}

// HealthStatus is the backend health report.
type HealthStatus struct {
	Status    string         `json:"status"`
	Version   string         `json:"version,omitempty"`
	Services  map[string]any `json:"services,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Healthy reports whether the backend considers itself up.
func (h *HealthStatus) Healthy() bool {
	if h == nil {
		return false
	}
	switch h.Status {
	case "healthy", "ok", "up":
		return true
	}
	return false
}

// Data is the set of collections fetched on every refresh.
// A nil field means its fetch failed.
type Data struct {
	Contracts       []Contract
	Templates       []Template
	AnalysisResults []AnalysisResult
	SystemStatus    *HealthStatus
}

// Clone returns a copy whose slices do not alias d.
func (d Data) Clone() Data {
	out := Data{}
	if d.Contracts != nil {
		out.Contracts = append([]Contract{}, d.Contracts...)
	}
	if d.Templates != nil {
		out.Templates = append([]Template{}, d.Templates...)
	}
	if d.AnalysisResults != nil {
		out.AnalysisResults = append([]AnalysisResult{}, d.AnalysisResults...)
	}
	if d.SystemStatus != nil {
		s := *d.SystemStatus
		out.SystemStatus = &s
	}
	return out
}

// ReportType selects which generated report to download.
type ReportType string

const (
	ReportRedlined     ReportType = "redlined"
	ReportChangesTable ReportType = "changes_table"
)

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	return t == ReportRedlined || t == ReportChangesTable
}

// UploadTarget selects which collection an upload goes to.
type UploadTarget string

const (
	TargetContract UploadTarget = "contract"
	TargetTemplate UploadTarget = "template"
)

// UploadResponse is the backend reply to a multipart upload.
type UploadResponse struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OperationResponse is the generic reply to batch and mutation endpoints.
type OperationResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// Download is a fetched binary report.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}
