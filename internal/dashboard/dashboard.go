// Package dashboard aggregates backend data into metrics and the results
// table, and drives batch operations and report downloads.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"contractanalyzer/internal/api"
	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/notify"
	"contractanalyzer/internal/shell"
	"contractanalyzer/internal/utils"
)

// Client is the backend surface the dashboard needs.
type Client interface {
	AnalyzeContract(ctx context.Context, contractID string) (*model.OperationResponse, error)
	BatchAnalysis(ctx context.Context, contractIDs []string, templateID string) (*model.OperationResponse, error)
	ClearContracts(ctx context.Context) (*model.OperationResponse, error)
	ClearFiles(ctx context.Context) (*model.OperationResponse, error)
	GenerateReport(ctx context.Context, id string, reportType model.ReportType) (*model.OperationResponse, error)
	GenerateBatchReports(ctx context.Context, analysisIDs []string) (*model.OperationResponse, error)
	DownloadReport(ctx context.Context, id string, reportType model.ReportType) (*model.Download, error)
	GenerateWordCOM(ctx context.Context, id string) (*model.OperationResponse, error)
	DownloadWordCOM(ctx context.Context, id string) (*model.Download, error)
}

// Notifier shows user-facing messages.
type Notifier interface {
	Success(message string, opts ...notify.Option) string
	Error(message string, opts ...notify.Option) string
	Warning(message string, opts ...notify.Option) string
	Loading(message string) string
	Close(id string) bool
	Confirm(message string, onConfirm, onCancel func()) string
}

// Module is the dashboard module.
type Module struct {
	client   Client
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	host        shell.Host
	metrics     Metrics
	results     []model.AnalysisResult
	contracts   []model.Contract
	templates   []model.Template
	downloadDir string
}

// New creates the dashboard module.
func New(cfg *config.Config, client Client, notifier Notifier, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		client:      client,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
		downloadDir: cfg.Downloads.Dir,
	}
}

func (m *Module) Name() string { return shell.ModuleDashboard }

func (m *Module) Init(_ context.Context, host shell.Host) error {
	m.mu.Lock()
	m.host = host
	m.mu.Unlock()
	return nil
}

func (m *Module) HandleEvent(ev shell.Event) {
	switch e := ev.(type) {
	case shell.DataUpdated:
		m.update(e.Data)
	case shell.SettingsChanged:
		m.mu.Lock()
		m.downloadDir = e.Config.Downloads.Dir
		m.mu.Unlock()
	}
}

// update recomputes the metrics and replaces the table. A nil collection
// means its fetch failed, so the previous figures stay on screen.
func (m *Module) update(data model.Data) {
	now := m.now()

	m.mu.Lock()
	if data.Contracts != nil {
		m.contracts = data.Contracts
		m.metrics.Contracts.Set(len(data.Contracts), now)
	}
	if data.Templates != nil {
		m.templates = data.Templates
		m.metrics.Templates.Set(len(data.Templates), now)
	}
	if data.AnalysisResults != nil {
		m.results = newestFirst(data.AnalysisResults)
		m.metrics.Analyses.Set(len(data.AnalysisResults), now)
		m.metrics.PendingReview.Set(PendingReview(data.AnalysisResults), now)
	}
	host := m.host
	m.mu.Unlock()

	if host != nil {
		host.Changed()
	}
}

// PendingReview counts results that still need a reviewer.
func PendingReview(results []model.AnalysisResult) int {
	n := 0
	for _, r := range results {
		if r.Status().NeedsReview() {
			n++
		}
	}
	return n
}

func newestFirst(results []model.AnalysisResult) []model.AnalysisResult {
	out := append([]model.AnalysisResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := utils.ParseDate(out[i].Date)
		tj, _ := utils.ParseDate(out[j].Date)
		return ti.After(tj)
	})
	return out
}

// Metrics returns the current counters.
func (m *Module) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

// Results returns the results table, newest first.
func (m *Module) Results() []model.AnalysisResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AnalysisResult(nil), m.results...)
}

// Result looks up one row by analysis id.
func (m *Module) Result(id string) (model.AnalysisResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.ID() == id {
			return r, true
		}
	}
	return model.AnalysisResult{}, false
}

func (m *Module) hostRef() shell.Host {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host
}

// background runs fn through the host's async runner.
func (m *Module) background(name string, fn func(ctx context.Context) error) {
	if host := m.hostRef(); host != nil {
		host.Go(name, fn)
	}
}

// run performs one backend mutation: on failure the server's message is
// shown verbatim, on success a refresh follows. No retry.
func (m *Module) run(ctx context.Context, op, success string, call func(ctx context.Context) (*model.OperationResponse, error)) error {
	resp, err := call(ctx)
	if err != nil {
		m.logger.Warn("operation failed", zap.String("op", op), zap.Error(err))
		m.notifier.Error(errorMessage(err))
		return shell.Handled(fmt.Errorf("%s: %w", op, err))
	}

	msg := success
	if resp != nil && resp.Message != "" {
		msg = resp.Message
	}
	m.logger.Info("operation finished", zap.String("op", op))
	m.notifier.Success(msg)

	if host := m.hostRef(); host != nil {
		if err := host.Refresh(ctx); err != nil {
			m.logger.Warn("refresh after operation incomplete", zap.String("op", op), zap.Error(err))
		}
	}
	return nil
}

func errorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out"
	}
	return err.Error()
}

// AnalyzeContract runs analysis of one contract.
func (m *Module) AnalyzeContract(ctx context.Context, contractID string) error {
	return m.run(ctx, "analyze-contract", "Analysis started", func(ctx context.Context) (*model.OperationResponse, error) {
		return m.client.AnalyzeContract(ctx, contractID)
	})
}

// StartAnalyzeContract runs AnalyzeContract in the background.
func (m *Module) StartAnalyzeContract(contractID string) {
	m.background("analyze-contract", func(ctx context.Context) error {
		return m.AnalyzeContract(ctx, contractID)
	})
}

// AnalyzeAll queues every contract for analysis against the most recently
// uploaded template.
func (m *Module) AnalyzeAll(ctx context.Context) error {
	m.mu.Lock()
	contracts := m.contracts
	templates := m.templates
	m.mu.Unlock()

	if len(contracts) == 0 {
		m.notifier.Warning("No contracts to analyze. Upload contracts first.")
		return nil
	}
	tmpl, ok := latestTemplate(templates)
	if !ok {
		m.notifier.Warning("No template available. Upload a template first.")
		return nil
	}

	ids := make([]string, len(contracts))
	for i, c := range contracts {
		ids[i] = c.ID
	}
	success := fmt.Sprintf("Analysis queued for %d contracts", len(ids))
	return m.run(ctx, "analyze-all", success, func(ctx context.Context) (*model.OperationResponse, error) {
		return m.client.BatchAnalysis(ctx, ids, tmpl.ID)
	})
}

func latestTemplate(templates []model.Template) (model.Template, bool) {
	if len(templates) == 0 {
		return model.Template{}, false
	}
	best := templates[0]
	bestAt, _ := utils.ParseDate(best.UploadDate)
	for _, t := range templates[1:] {
		at, _ := utils.ParseDate(t.UploadDate)
		if at.After(bestAt) {
			best, bestAt = t, at
		}
	}
	return best, true
}

// RequestAnalyzeAll confirms and then runs AnalyzeAll.
func (m *Module) RequestAnalyzeAll() {
	m.confirm("Analyze all contracts? This may take several minutes.", "analyze-all", m.AnalyzeAll)
}

// ClearAllContracts deletes every contract.
func (m *Module) ClearAllContracts(ctx context.Context) error {
	return m.run(ctx, "clear-contracts", "All contracts cleared", m.client.ClearContracts)
}

// RequestClearAllContracts confirms and then runs ClearAllContracts.
func (m *Module) RequestClearAllContracts() {
	m.confirm("Delete all contracts? This cannot be undone.", "clear-contracts", m.ClearAllContracts)
}

// ClearAllFiles deletes every contract and template.
func (m *Module) ClearAllFiles(ctx context.Context) error {
	return m.run(ctx, "clear-files", "All files cleared", m.client.ClearFiles)
}

// RequestClearAllFiles confirms and then runs ClearAllFiles.
func (m *Module) RequestClearAllFiles() {
	m.confirm("Delete all contracts and templates? This cannot be undone.", "clear-files", m.ClearAllFiles)
}

// GenerateBatchReports builds reports for every analysis in the table.
func (m *Module) GenerateBatchReports(ctx context.Context) error {
	results := m.Results()
	if len(results) == 0 {
		m.notifier.Warning("No analysis results to generate reports for.")
		return nil
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if id := r.ID(); id != "" {
			ids = append(ids, id)
		}
	}
	success := fmt.Sprintf("Report generation started for %d analyses", len(ids))
	return m.run(ctx, "batch-reports", success, func(ctx context.Context) (*model.OperationResponse, error) {
		return m.client.GenerateBatchReports(ctx, ids)
	})
}

// RequestGenerateBatchReports confirms and then runs GenerateBatchReports.
func (m *Module) RequestGenerateBatchReports() {
	m.confirm("Generate reports for all analyses?", "batch-reports", m.GenerateBatchReports)
}

func (m *Module) confirm(message, name string, fn func(ctx context.Context) error) {
	m.notifier.Confirm(message, func() {
		m.background(name, fn)
	}, nil)
}
