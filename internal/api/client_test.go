package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/utils"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.API.Token = "secret"
	return New(cfg, WithRetry(utils.RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRequest_SendsHeaders(t *testing.T) {
	var gotAuth, gotReqID string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}))

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Healthy())
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.NotEmpty(t, gotReqID)
}

func TestRequest_ServerErrorVerbatim(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Contract not found: nope"})
	}))

	_, err := c.AnalyzeContract(context.Background(), "nope")
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Contract not found: nope", apiErr.Error())
	assert.True(t, IsNotFound(err))
}

func TestRequest_GenericMessageWithoutErrorField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))

	_, err := c.ClearFiles(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Request failed with status 502", err.Error())
}

func TestRequest_ErrorFieldOn200(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"error": "nothing to clear"})
	}))

	_, err := c.ClearContracts(context.Background())
	require.Error(t, err)
	assert.Equal(t, "nothing to clear", err.Error())
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "warming up"})
			return
		}
		writeJSON(w, http.StatusOK, []model.Contract{{ID: "c1", Filename: "a.docx"}})
	}))

	contracts, err := c.Contracts(context.Background())
	require.NoError(t, err)
	assert.Len(t, contracts, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
	}))

	_, err := c.Templates(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired token", err.Error())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLists_AcceptWrappedPayloads(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/analysis-results":
			writeJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{
				{"analysis_id": "a1", "status": "Minor changes", "similarity": 91.5},
			}})
		case "/api/templates":
			writeJSON(w, http.StatusOK, map[string]any{"templates": nil})
		default:
			http.NotFound(w, r)
		}
	}))

	results, err := c.AnalysisResults(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].ID())
	assert.Equal(t, model.StatusMinorChanges, results[0].Status())

	templates, err := c.Templates(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, templates)
	assert.Empty(t, templates)
}

func TestUpload_StreamsMultipartWithProgress(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 256*1024)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/templates/upload", r.URL.Path)
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "tpl.docx", header.Filename)
		assert.Len(t, data, len(content))
		writeJSON(w, http.StatusOK, map[string]string{"id": "t1", "filename": header.Filename})
	}))

	var last, total int64
	resp, err := c.Upload(context.Background(), model.TargetTemplate, "tpl.docx", bytes.NewReader(content), int64(len(content)),
		func(sent, tot int64) {
			atomic.StoreInt64(&last, sent)
			atomic.StoreInt64(&total, tot)
		})
	require.NoError(t, err)
	assert.Equal(t, "t1", resp.ID)
	assert.Equal(t, int64(len(content)), atomic.LoadInt64(&last))
	assert.Equal(t, int64(len(content)), atomic.LoadInt64(&total))
}

func TestUpload_ErrorField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, http.StatusOK, map[string]string{"error": "Duplicate file"})
	}))

	_, err := c.Upload(context.Background(), model.TargetContract, "a.docx", strings.NewReader("doc"), 3, nil)
	require.Error(t, err)
	assert.Equal(t, "Duplicate file", err.Error())
}

// slowReader yields a small chunk every few milliseconds, forever.
type slowReader struct{}

func (slowReader) Read(p []byte) (int, error) {
	time.Sleep(5 * time.Millisecond)
	n := len(p)
	if n > 512 {
		n = 512
	}
	for i := 0; i < n; i++ {
		p[i] = 'x'
	}
	return n, nil
}

func TestUpload_CancelAbortsRequest(t *testing.T) {
	started := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		_, _ = io.Copy(io.Discard, r.Body)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Upload(ctx, model.TargetContract, "a.docx", slowReader{}, 1<<30, nil)
		done <- err
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("upload did not abort after cancel")
	}
}

func TestDownloadReport(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/download-changes-table", r.URL.Path)
		assert.Equal(t, "a 1", r.URL.Query().Get("id"))
		w.Header().Set("Content-Disposition", `attachment; filename="changes_a1.xlsx"`)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write([]byte("binary"))
	}))

	d, err := c.DownloadReport(context.Background(), "a 1", model.ReportChangesTable)
	require.NoError(t, err)
	assert.Equal(t, "changes_a1.xlsx", d.Filename)
	assert.Equal(t, []byte("binary"), d.Body)

	_, err = c.DownloadReport(context.Background(), "a1", model.ReportType("pdf"))
	assert.Error(t, err)
}

func TestPromptEndpoints(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/prompts/risk_assessment":
			writeJSON(w, http.StatusOK, map[string]string{"content": "Assess {contract}"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/prompts/validate":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, http.StatusOK, model.ValidationResult{Valid: true, Variables: []string{"contract"}})
		case r.URL.Path == "/api/prompts/backups/risk_assessment":
			writeJSON(w, http.StatusOK, map[string]any{"backups": []model.PromptBackup{{ID: "b1"}}})
		case r.URL.Path == "/api/prompts/stats":
			writeJSON(w, http.StatusOK, map[string]any{"total_prompts": 4})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	p, err := c.Prompt(ctx, model.PromptRiskAssessment)
	require.NoError(t, err)
	assert.Equal(t, model.PromptRiskAssessment, p.PromptType)
	assert.Equal(t, "Assess {contract}", p.Content)

	v, err := c.ValidatePrompt(ctx, model.PromptRiskAssessment, p.Content)
	require.NoError(t, err)
	assert.True(t, v.Valid)

	backups, err := c.PromptBackups(ctx, model.PromptRiskAssessment)
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	stats, err := c.PromptStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats["total_prompts"])
}
