package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contractanalyzer/internal/api"
	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newClient(t *testing.T, opts Options) (*api.Client, *Store) {
	t.Helper()
	store := NewStore()
	srv := httptest.NewServer(NewRouter(store, opts))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.API.RetryAttempts = 0
	return api.New(cfg), store
}

func upload(t *testing.T, c *api.Client, target model.UploadTarget, name string) string {
	t.Helper()
	resp, err := c.Upload(context.Background(), target, name, strings.NewReader("content"), 7, nil)
	require.NoError(t, err)
	return resp.ID
}

func TestHealth(t *testing.T) {
	c, _ := newClient(t, Options{Version: "1.2.3"})
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Healthy())
	assert.Equal(t, "1.2.3", h.Version)
}

func TestUploadListDelete(t *testing.T) {
	c, _ := newClient(t, Options{})
	ctx := context.Background()

	id := upload(t, c, model.TargetContract, "a.docx")
	upload(t, c, model.TargetTemplate, "t.docx")

	contracts, err := c.Contracts(ctx)
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "a.docx", contracts[0].Filename)
	assert.Equal(t, int64(7), contracts[0].FileSize)

	templates, err := c.Templates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, 1)

	require.NoError(t, c.DeleteFile(ctx, model.TargetContract, id))
	contracts, err = c.Contracts(ctx)
	require.NoError(t, err)
	assert.Empty(t, contracts)

	err = c.DeleteFile(ctx, model.TargetContract, id)
	assert.True(t, api.IsNotFound(err))
}

func TestUploadRejectsWrongType(t *testing.T) {
	c, _ := newClient(t, Options{})
	_, err := c.Upload(context.Background(), model.TargetContract, "a.pdf", strings.NewReader("x"), 1, nil)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Only .docx files are allowed", apiErr.Message)
}

func TestUploadRejectsTooLarge(t *testing.T) {
	c, _ := newClient(t, Options{MaxUploadBytes: 4})
	_, err := c.Upload(context.Background(), model.TargetContract, "a.docx", strings.NewReader("12345"), 5, nil)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.StatusCode)
}

func TestAnalyzeUnknownContract(t *testing.T) {
	c, store := newClient(t, Options{})
	_, err := c.AnalyzeContract(context.Background(), "missing")

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Contract not found: missing", apiErr.Message)
	assert.Empty(t, store.Results())
}

func TestAnalyzeAndReports(t *testing.T) {
	c, _ := newClient(t, Options{})
	ctx := context.Background()
	contract := upload(t, c, model.TargetContract, "a.docx")
	upload(t, c, model.TargetTemplate, "t.docx")

	_, err := c.AnalyzeContract(ctx, contract)
	require.NoError(t, err)

	results, err := c.AnalysisResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "a.docx", r.Contract)
	assert.NotEqual(t, model.StatusUnknown, r.Status())
	assert.GreaterOrEqual(t, r.Similarity, 50.0)

	_, err = c.DownloadReport(ctx, r.ID(), model.ReportRedlined)
	assert.True(t, api.IsNotFound(err), "download before generate")

	_, err = c.GenerateReport(ctx, r.ID(), model.ReportChangesTable)
	require.NoError(t, err)
	dl, err := c.DownloadReport(ctx, r.ID(), model.ReportChangesTable)
	require.NoError(t, err)
	assert.Equal(t, "changes_table_"+r.ID()+".xlsx", dl.Filename)
	assert.Contains(t, string(dl.Body), r.ID())
}

func TestBatchAnalysisAndClear(t *testing.T) {
	c, store := newClient(t, Options{})
	ctx := context.Background()
	ids := []string{
		upload(t, c, model.TargetContract, "a.docx"),
		upload(t, c, model.TargetContract, "b.docx"),
	}
	tmpl := upload(t, c, model.TargetTemplate, "t.docx")

	resp, err := c.BatchAnalysis(ctx, ids, tmpl)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	assert.NotEmpty(t, resp.TaskID)

	var analysisIDs []string
	for _, r := range store.Results() {
		analysisIDs = append(analysisIDs, r.ID())
	}
	resp, err = c.GenerateBatchReports(ctx, analysisIDs)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)

	_, err = c.ClearContracts(ctx)
	require.NoError(t, err)
	assert.Empty(t, store.Contracts())
	assert.Len(t, store.Templates(), 1)

	_, err = c.ClearFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, store.Templates())
	assert.Empty(t, store.Results())
}

func TestWordCOMUnavailable(t *testing.T) {
	c, _ := newClient(t, Options{})
	_, err := c.GenerateWordCOM(context.Background(), "a1")

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotImplemented, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Windows COM interface")
}

func TestPromptLifecycle(t *testing.T) {
	c, _ := newClient(t, Options{})
	ctx := context.Background()
	pt := model.PromptRiskAssessment

	p, err := c.Prompt(ctx, pt)
	require.NoError(t, err)
	original := p.Content
	require.NotEmpty(t, original)

	backup, err := c.CreatePromptBackup(ctx, pt, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", backup.Name)

	_, err = c.SavePrompt(ctx, pt, "Rate {changes} now")
	require.NoError(t, err)
	p, err = c.Prompt(ctx, pt)
	require.NoError(t, err)
	assert.Equal(t, "Rate {changes} now", p.Content)

	backups, err := c.PromptBackups(ctx, pt)
	require.NoError(t, err)
	require.Len(t, backups, 1)

	_, err = c.RestorePromptBackup(ctx, backups[0].ID)
	require.NoError(t, err)
	p, err = c.Prompt(ctx, pt)
	require.NoError(t, err)
	assert.Equal(t, original, p.Content)

	stats, err := c.PromptStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats["total_prompts"])
}

func TestPromptValidateAndPreview(t *testing.T) {
	c, _ := newClient(t, Options{})
	ctx := context.Background()

	v, err := c.ValidatePrompt(ctx, model.PromptChangeSummary, "Summarise {changes} for {reviewer}")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, []string{"changes", "reviewer"}, v.Variables)

	v, err = c.ValidatePrompt(ctx, model.PromptChangeSummary, "broken {changes")
	require.NoError(t, err)
	assert.False(t, v.Valid)

	p, err := c.PreviewPrompt(ctx, model.PromptChangeSummary, "Hi {name}")
	require.NoError(t, err)
	assert.Equal(t, "Hi [sample name]", p.Rendered)
}

func TestUnknownPromptType(t *testing.T) {
	c, _ := newClient(t, Options{})
	_, err := c.Prompt(context.Background(), "haiku")
	assert.True(t, api.IsNotFound(err))
}

func TestAuth(t *testing.T) {
	const secret = "test-secret"
	router := NewRouter(NewStore(), Options{JWTSecret: secret})
	token, _, err := GenerateToken("reviewer", secret, time.Hour)
	require.NoError(t, err)
	expired, _, err := GenerateToken("reviewer", secret, -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		path       string
		authHeader string
		want       int
	}{
		{"health is public", "/api/health", "", http.StatusOK},
		{"valid token", "/api/contracts", "Bearer " + token, http.StatusOK},
		{"missing header", "/api/contracts", "", http.StatusUnauthorized},
		{"invalid format", "/api/contracts", token, http.StatusUnauthorized},
		{"expired", "/api/contracts", "Bearer " + expired, http.StatusUnauthorized},
		{"garbage", "/api/contracts", "Bearer invalid.token.here", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequestIDEchoed(t *testing.T) {
	router := NewRouter(NewStore(), Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Recovery(nil))
	router.GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
	assert.NotEmpty(t, body["request_id"])
}

func TestAnalyzeRequiresContractID(t *testing.T) {
	router := NewRouter(NewStore(), Options{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/analyze-contract", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"contract_id is required"}`, w.Body.String())
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", NewRouter(NewStore(), Options{}), zap.NewNop())
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
