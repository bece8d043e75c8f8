package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"contractanalyzer/internal/model"
)

// decodeList accepts either a bare JSON array or an object wrapping the
// array under one of keys.
func decodeList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	var items []T
	if err := json.Unmarshal(raw, &items); err == nil {
		if items == nil {
			items = []T{}
		}
		return items, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected list payload: %w", err)
	}
	for _, k := range keys {
		if v, ok := wrapped[k]; ok {
			if err := json.Unmarshal(v, &items); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", k, err)
			}
			if items == nil {
				items = []T{}
			}
			return items, nil
		}
	}
	return nil, fmt.Errorf("list payload has none of %v", keys)
}

// Health fetches GET /api/health.
func (c *Client) Health(ctx context.Context) (*model.HealthStatus, error) {
	var h model.HealthStatus
	if err := c.getJSON(ctx, "/api/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Contracts fetches GET /api/contracts.
func (c *Client) Contracts(ctx context.Context) ([]model.Contract, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/contracts", &raw); err != nil {
		return nil, err
	}
	return decodeList[model.Contract](raw, "contracts", "data")
}

// Templates fetches GET /api/templates.
func (c *Client) Templates(ctx context.Context) ([]model.Template, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/templates", &raw); err != nil {
		return nil, err
	}
	return decodeList[model.Template](raw, "templates", "data")
}

// AnalysisResults fetches GET /api/analysis-results.
func (c *Client) AnalysisResults(ctx context.Context) ([]model.AnalysisResult, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/analysis-results", &raw); err != nil {
		return nil, err
	}
	return decodeList[model.AnalysisResult](raw, "results", "analysis_results", "data")
}

func collectionPath(target model.UploadTarget) (string, error) {
	switch target {
	case model.TargetContract:
		return "/api/contracts", nil
	case model.TargetTemplate:
		return "/api/templates", nil
	}
	return "", fmt.Errorf("unknown upload target %q", target)
}

// DeleteFile removes a contract or template.
func (c *Client) DeleteFile(ctx context.Context, target model.UploadTarget, id string) error {
	base, err := collectionPath(target)
	if err != nil {
		return err
	}
	var resp model.OperationResponse
	if err := c.Request(ctx, http.MethodDelete, base+"/"+url.PathEscape(id), nil, &resp); err != nil {
		return err
	}
	return operationError(&resp)
}

// operationError turns a 2xx reply carrying an error field into *Error.
func operationError(resp *model.OperationResponse) error {
	if resp.Error != "" {
		return &Error{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*model.OperationResponse, error) {
	var resp model.OperationResponse
	if err := c.Request(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	if err := operationError(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnalyzeContract triggers analysis of one contract.
func (c *Client) AnalyzeContract(ctx context.Context, contractID string) (*model.OperationResponse, error) {
	return c.post(ctx, "/api/analyze-contract", map[string]string{"contract_id": contractID})
}

// BatchAnalysis queues analysis of several contracts against one template.
func (c *Client) BatchAnalysis(ctx context.Context, contractIDs []string, templateID string) (*model.OperationResponse, error) {
	return c.post(ctx, "/api/async/batch-analysis", map[string]any{
		"contract_ids": contractIDs,
		"template_id":  templateID,
	})
}

// ClearContracts deletes every contract.
func (c *Client) ClearContracts(ctx context.Context) (*model.OperationResponse, error) {
	return c.post(ctx, "/api/clear-contracts", nil)
}

// ClearFiles deletes every uploaded file, contracts and templates alike.
func (c *Client) ClearFiles(ctx context.Context) (*model.OperationResponse, error) {
	return c.post(ctx, "/api/clear-files", nil)
}

// GenerateReport asks the backend to build a report for an analysis.
func (c *Client) GenerateReport(ctx context.Context, id string, reportType model.ReportType) (*model.OperationResponse, error) {
	return c.post(ctx, "/api/reports/generate", map[string]string{
		"id":          id,
		"report_type": string(reportType),
	})
}

// GenerateBatchReports asks the backend to build reports for several analyses.
func (c *Client) GenerateBatchReports(ctx context.Context, analysisIDs []string) (*model.OperationResponse, error) {
	return c.post(ctx, "/api/reports/batch-generate", map[string]any{"analysis_ids": analysisIDs})
}

// GenerateWordCOM asks the backend for a Word track-changes document.
// Only Windows backends with Word installed support this.
func (c *Client) GenerateWordCOM(ctx context.Context, id string) (*model.OperationResponse, error) {
	return c.post(ctx, "/api/generate-word-com-redlined", map[string]string{"id": id})
}

// Prompt fetches the current text of a prompt.
func (c *Client) Prompt(ctx context.Context, pt model.PromptType) (*model.PromptTemplate, error) {
	var p model.PromptTemplate
	if err := c.getJSON(ctx, "/api/prompts/"+url.PathEscape(string(pt)), &p); err != nil {
		return nil, err
	}
	if p.PromptType == "" {
		p.PromptType = pt
	}
	return &p, nil
}

// SavePrompt persists prompt text.
func (c *Client) SavePrompt(ctx context.Context, pt model.PromptType, content string) (*model.OperationResponse, error) {
	return c.post(ctx, "/api/prompts/"+url.PathEscape(string(pt)), map[string]string{"content": content})
}

// ValidatePrompt checks prompt text on the server.
func (c *Client) ValidatePrompt(ctx context.Context, pt model.PromptType, content string) (*model.ValidationResult, error) {
	var v model.ValidationResult
	err := c.Request(ctx, http.MethodPost, "/api/prompts/validate", map[string]string{
		"prompt_type": string(pt),
		"content":     content,
	}, &v)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// PreviewPrompt renders prompt text with sample variables.
func (c *Client) PreviewPrompt(ctx context.Context, pt model.PromptType, content string) (*model.PromptPreview, error) {
	var p model.PromptPreview
	err := c.Request(ctx, http.MethodPost, "/api/prompts/preview", map[string]string{
		"prompt_type": string(pt),
		"content":     content,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePromptBackup snapshots the current text of a prompt. name is optional.
func (c *Client) CreatePromptBackup(ctx context.Context, pt model.PromptType, name string) (*model.PromptBackup, error) {
	var b model.PromptBackup
	body := map[string]string{"prompt_type": string(pt)}
	if name != "" {
		body["name"] = name
	}
	if err := c.Request(ctx, http.MethodPost, "/api/prompts/backup", body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// PromptBackups lists the backups of a prompt, newest first.
func (c *Client) PromptBackups(ctx context.Context, pt model.PromptType) ([]model.PromptBackup, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/prompts/backups/"+url.PathEscape(string(pt)), &raw); err != nil {
		return nil, err
	}
	return decodeList[model.PromptBackup](raw, "backups", "data")
}

// RestorePromptBackup restores a backup over the current prompt text.
func (c *Client) RestorePromptBackup(ctx context.Context, backupID string) (*model.OperationResponse, error) {
	return c.post(ctx, "/api/prompts/restore/"+url.PathEscape(backupID), nil)
}

// PromptStats fetches prompt usage counters.
func (c *Client) PromptStats(ctx context.Context) (model.PromptStats, error) {
	stats := model.PromptStats{}
	if err := c.getJSON(ctx, "/api/prompts/stats", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}
