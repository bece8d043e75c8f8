package dashboard

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"contractanalyzer/internal/api"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/shell"
)

// comUnavailable is the backend's tell that Word automation is missing.
const comUnavailable = "Windows COM interface"

// DownloadReport generates a report and saves it into the download
// directory, returning the written path. Generation is treated as
// complete when the generate call returns.
func (m *Module) DownloadReport(ctx context.Context, id string, reportType model.ReportType) (string, error) {
	if !reportType.Valid() {
		m.notifier.Error(fmt.Sprintf("Unknown report type: %s", reportType))
		return "", shell.Handled(fmt.Errorf("unknown report type %q", reportType))
	}

	loading := m.notifier.Loading("Generating report...")
	defer m.notifier.Close(loading)

	if _, err := m.client.GenerateReport(ctx, id, reportType); err != nil {
		m.logger.Warn("report generation failed", zap.String("id", id), zap.Error(err))
		m.notifier.Error(errorMessage(err))
		return "", shell.Handled(fmt.Errorf("generate report: %w", err))
	}

	dl, err := m.client.DownloadReport(ctx, id, reportType)
	if err != nil {
		m.logger.Warn("report download failed", zap.String("id", id), zap.Error(err))
		m.notifier.Error(errorMessage(err))
		return "", shell.Handled(fmt.Errorf("download report: %w", err))
	}

	return m.save(dl, fmt.Sprintf("%s_%s", reportType, id))
}

// StartDownloadReport runs DownloadReport in the background.
func (m *Module) StartDownloadReport(id string, reportType model.ReportType) {
	m.background("download-report", func(ctx context.Context) error {
		_, err := m.DownloadReport(ctx, id, reportType)
		return err
	})
}

// DownloadWordTrackChanges produces a Word document with tracked changes.
// Backends without Word automation answer with a COM error, which is shown
// as a warning rather than a failure.
func (m *Module) DownloadWordTrackChanges(ctx context.Context, id string) (string, error) {
	loading := m.notifier.Loading("Generating Word document...")
	defer m.notifier.Close(loading)

	if _, err := m.client.GenerateWordCOM(ctx, id); err != nil {
		msg := errorMessage(err)
		var apiErr *api.Error
		if errors.As(err, &apiErr) && strings.Contains(apiErr.Message, comUnavailable) {
			m.logger.Info("word track changes unavailable", zap.String("id", id))
			m.notifier.Warning("Word track changes require a Windows backend with Microsoft Word installed. " + msg)
		} else {
			m.logger.Warn("word document generation failed", zap.String("id", id), zap.Error(err))
			m.notifier.Error(msg)
		}
		return "", shell.Handled(fmt.Errorf("generate word document: %w", err))
	}

	dl, err := m.client.DownloadWordCOM(ctx, id)
	if err != nil {
		m.notifier.Error(errorMessage(err))
		return "", shell.Handled(fmt.Errorf("download word document: %w", err))
	}
	return m.save(dl, "track_changes_"+id)
}

// StartDownloadWordTrackChanges runs DownloadWordTrackChanges in the background.
func (m *Module) StartDownloadWordTrackChanges(id string) {
	m.background("download-word", func(ctx context.Context) error {
		_, err := m.DownloadWordTrackChanges(ctx, id)
		return err
	})
}

func (m *Module) save(dl *model.Download, fallback string) (string, error) {
	m.mu.Lock()
	dir := m.downloadDir
	m.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		m.notifier.Error(fmt.Sprintf("Cannot create download directory: %v", err))
		return "", shell.Handled(fmt.Errorf("create download dir: %w", err))
	}

	name := reportFilename(dl, fallback)
	path := uniquePath(filepath.Join(dir, name))
	if err := os.WriteFile(path, dl.Body, 0644); err != nil {
		m.notifier.Error(fmt.Sprintf("Cannot save %s: %v", name, err))
		return "", shell.Handled(fmt.Errorf("write report: %w", err))
	}

	m.logger.Info("report saved", zap.String("path", path), zap.Int("bytes", len(dl.Body)))
	m.notifier.Success(fmt.Sprintf("Report saved to %s", path))
	return path, nil
}

// reportFilename prefers the server's name and otherwise derives one from
// the fallback and the content type.
func reportFilename(dl *model.Download, fallback string) string {
	if name := filepath.Base(filepath.Clean(dl.Filename)); dl.Filename != "" && name != "." && name != string(filepath.Separator) {
		return name
	}
	ext := ".docx"
	if ct, _, err := mime.ParseMediaType(dl.ContentType); err == nil {
		switch ct {
		case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
			ext = ".xlsx"
		case "application/pdf":
			ext = ".pdf"
		case "text/csv":
			ext = ".csv"
		}
	}
	return fallback + ext
}

// uniquePath appends " (n)" before the extension until path is unused.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}
