// Package mockapi is an in-memory stand-in for the Contract Analyzer
// backend. It serves every endpoint the console calls and backs the
// mock-server command and the end-to-end tests.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"contractanalyzer/internal/model"
)

// ComUnavailableMessage is returned by the Word track-changes endpoints.
const ComUnavailableMessage = "Word track changes require the Windows COM interface, which is not available on this server"

// Options configures the mock backend.
type Options struct {
	Logger *zap.Logger
	// JWTSecret enables bearer-token auth on /api when set.
	JWTSecret      string
	AllowedTypes   []string
	MaxUploadBytes int64
	Version        string
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if len(o.AllowedTypes) == 0 {
		o.AllowedTypes = []string{".docx"}
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 16 * 1024 * 1024
	}
	if o.Version == "" {
		o.Version = "mock"
	}
}

type server struct {
	store *Store
	opts  Options
}

// NewRouter builds the gin engine serving store.
func NewRouter(store *Store, opts Options) *gin.Engine {
	opts.defaults()
	s := &server{store: store, opts: opts}

	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(opts.Logger))
	router.Use(RequestLogger(opts.Logger))

	api := router.Group("/api")
	api.GET("/health", s.health)

	protected := api.Group("")
	if opts.JWTSecret != "" {
		protected.Use(Auth(opts.JWTSecret))
	}
	{
		protected.GET("/contracts", func(c *gin.Context) { c.JSON(http.StatusOK, s.store.Contracts()) })
		protected.GET("/templates", func(c *gin.Context) { c.JSON(http.StatusOK, s.store.Templates()) })
		protected.GET("/analysis-results", func(c *gin.Context) { c.JSON(http.StatusOK, s.store.Results()) })

		protected.POST("/contracts/upload", s.upload(model.TargetContract))
		protected.POST("/templates/upload", s.upload(model.TargetTemplate))
		protected.DELETE("/contracts/:id", s.deleteContract)
		protected.DELETE("/templates/:id", s.deleteTemplate)

		protected.POST("/analyze-contract", s.analyzeContract)
		protected.POST("/async/batch-analysis", s.batchAnalysis)
		protected.POST("/clear-contracts", s.clearContracts)
		protected.POST("/clear-files", s.clearFiles)

		protected.POST("/reports/generate", s.generateReport)
		protected.POST("/reports/batch-generate", s.batchReports)
		protected.GET("/download-redlined-document", s.downloadReport(model.ReportRedlined))
		protected.GET("/download-changes-table", s.downloadReport(model.ReportChangesTable))
		protected.POST("/generate-word-com-redlined", s.wordCOM)
		protected.GET("/download-word-com-redlined", s.wordCOM)

		protected.GET("/prompts/stats", func(c *gin.Context) { c.JSON(http.StatusOK, s.store.Stats()) })
		protected.POST("/prompts/validate", s.validatePrompt)
		protected.POST("/prompts/preview", s.previewPrompt)
		protected.POST("/prompts/backup", s.backupPrompt)
		protected.GET("/prompts/backups/:type", s.listBackups)
		protected.POST("/prompts/restore/:id", s.restoreBackup)
		protected.GET("/prompts/:type", s.getPrompt)
		protected.POST("/prompts/:type", s.savePrompt)
	}

	return router
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   s.opts.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": gin.H{
			"storage": "ok",
			"llm":     "ok",
		},
	})
}

func (s *server) upload(target model.UploadTarget) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "No file provided")
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		allowed := false
		for _, a := range s.opts.AllowedTypes {
			if ext == strings.ToLower(a) {
				allowed = true
				break
			}
		}
		if !allowed {
			errorJSON(c, http.StatusBadRequest, fmt.Sprintf("Only %s files are allowed", strings.Join(s.opts.AllowedTypes, ", ")))
			return
		}

		size, err := io.Copy(io.Discard, io.LimitReader(file, s.opts.MaxUploadBytes+1))
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Failed to read file")
			return
		}
		if size > s.opts.MaxUploadBytes {
			errorJSON(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}

		var id string
		if target == model.TargetTemplate {
			id = s.store.AddTemplate(header.Filename, size).ID
		} else {
			id = s.store.AddContract(header.Filename, size).ID
		}
		c.JSON(http.StatusOK, gin.H{
			"id":       id,
			"filename": header.Filename,
			"message":  "File uploaded successfully",
		})
	}
}

func (s *server) deleteContract(c *gin.Context) {
	id := c.Param("id")
	if !s.store.DeleteContract(id) {
		errorJSON(c, http.StatusNotFound, "Contract not found: "+id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contract deleted"})
}

func (s *server) deleteTemplate(c *gin.Context) {
	id := c.Param("id")
	if !s.store.DeleteTemplate(id) {
		errorJSON(c, http.StatusNotFound, "Template not found: "+id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}

func analyzeStatus(err error) int {
	var nf *notFoundError
	if errors.As(err, &nf) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func (s *server) analyzeContract(c *gin.Context) {
	var req struct {
		ContractID string `json:"contract_id"`
		TemplateID string `json:"template_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ContractID == "" {
		errorJSON(c, http.StatusBadRequest, "contract_id is required")
		return
	}
	r, err := s.store.Analyze(req.ContractID, req.TemplateID)
	if err != nil {
		errorJSON(c, analyzeStatus(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Analysis completed", "analysis_id": r.AnalysisID})
}

func (s *server) batchAnalysis(c *gin.Context) {
	var req struct {
		ContractIDs []string `json:"contract_ids"`
		TemplateID  string   `json:"template_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.ContractIDs) == 0 {
		errorJSON(c, http.StatusBadRequest, "contract_ids is required")
		return
	}
	if req.TemplateID == "" {
		errorJSON(c, http.StatusBadRequest, "template_id is required")
		return
	}
	n := 0
	for _, id := range req.ContractIDs {
		if _, err := s.store.Analyze(id, req.TemplateID); err != nil {
			errorJSON(c, analyzeStatus(err), err.Error())
			return
		}
		n++
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Batch analysis completed for %d contracts", n),
		"task_id": uuid.NewString(),
		"count":   n,
	})
}

func (s *server) clearContracts(c *gin.Context) {
	n := s.store.ClearContracts()
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Cleared %d contracts", n), "count": n})
}

func (s *server) clearFiles(c *gin.Context) {
	n := s.store.ClearFiles()
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Cleared %d files", n), "count": n})
}

func (s *server) generateReport(c *gin.Context) {
	var req struct {
		ID         string           `json:"id"`
		ReportType model.ReportType `json:"report_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		errorJSON(c, http.StatusBadRequest, "id is required")
		return
	}
	if !req.ReportType.Valid() {
		errorJSON(c, http.StatusBadRequest, fmt.Sprintf("Unknown report type: %s", req.ReportType))
		return
	}
	if !s.store.HasResult(req.ID) {
		errorJSON(c, http.StatusNotFound, "Analysis not found: "+req.ID)
		return
	}
	s.store.MarkReport(req.ID, req.ReportType)
	c.JSON(http.StatusOK, gin.H{"message": "Report generated"})
}

func (s *server) batchReports(c *gin.Context) {
	var req struct {
		AnalysisIDs []string `json:"analysis_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.AnalysisIDs) == 0 {
		errorJSON(c, http.StatusBadRequest, "analysis_ids is required")
		return
	}
	n := 0
	for _, id := range req.AnalysisIDs {
		if !s.store.HasResult(id) {
			continue
		}
		s.store.MarkReport(id, model.ReportRedlined)
		s.store.MarkReport(id, model.ReportChangesTable)
		n++
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Generated reports for %d analyses", n), "count": n})
}

func (s *server) downloadReport(rt model.ReportType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("id")
		if id == "" {
			errorJSON(c, http.StatusBadRequest, "id is required")
			return
		}
		if !s.store.HasReport(id, rt) {
			errorJSON(c, http.StatusNotFound, "Report not generated: "+id)
			return
		}

		contentType := "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		ext := ".docx"
		if rt == model.ReportChangesTable {
			contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			ext = ".xlsx"
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s%s"`, rt, id, ext))
		c.Data(http.StatusOK, contentType, []byte(fmt.Sprintf("mock %s report for %s", rt, id)))
	}
}

func (s *server) wordCOM(c *gin.Context) {
	errorJSON(c, http.StatusNotImplemented, ComUnavailableMessage)
}

func (s *server) getPrompt(c *gin.Context) {
	pt := model.PromptType(c.Param("type"))
	p, ok := s.store.Prompt(pt)
	if !ok {
		errorJSON(c, http.StatusNotFound, "Unknown prompt type: "+string(pt))
		return
	}
	c.JSON(http.StatusOK, p)
}

type promptBody struct {
	PromptType model.PromptType `json:"prompt_type"`
	Content    string           `json:"content"`
	Name       string           `json:"name"`
}

func (s *server) savePrompt(c *gin.Context) {
	pt := model.PromptType(c.Param("type"))
	if !pt.Valid() {
		errorJSON(c, http.StatusNotFound, "Unknown prompt type: "+string(pt))
		return
	}
	var req promptBody
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		errorJSON(c, http.StatusBadRequest, "Prompt content cannot be empty")
		return
	}
	s.store.SavePrompt(pt, req.Content)
	c.JSON(http.StatusOK, gin.H{"message": "Prompt saved"})
}

var variablePattern = regexp.MustCompile(`\{(\w+)\}`)

func variables(content string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, m := range variablePattern.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func (s *server) validatePrompt(c *gin.Context) {
	var req promptBody
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.PromptType.Valid() {
		errorJSON(c, http.StatusBadRequest, "Unknown prompt type: "+string(req.PromptType))
		return
	}

	res := model.ValidationResult{Valid: true, Errors: []string{}, Warnings: []string{}, Variables: variables(req.Content)}
	if strings.TrimSpace(req.Content) == "" {
		res.Valid = false
		res.Errors = append(res.Errors, "Prompt content is empty")
	}
	if strings.Count(req.Content, "{") != strings.Count(req.Content, "}") {
		res.Valid = false
		res.Errors = append(res.Errors, "Unbalanced braces in prompt")
	}
	if len(res.Variables) == 0 {
		res.Warnings = append(res.Warnings, "No template variables found")
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) previewPrompt(c *gin.Context) {
	var req promptBody
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	rendered := variablePattern.ReplaceAllString(req.Content, "[sample $1]")
	c.JSON(http.StatusOK, model.PromptPreview{Rendered: rendered})
}

func (s *server) backupPrompt(c *gin.Context) {
	var req promptBody
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.PromptType.Valid() {
		errorJSON(c, http.StatusBadRequest, "Unknown prompt type: "+string(req.PromptType))
		return
	}
	c.JSON(http.StatusOK, s.store.Backup(req.PromptType, req.Name))
}

func (s *server) listBackups(c *gin.Context) {
	pt := model.PromptType(c.Param("type"))
	if !pt.Valid() {
		errorJSON(c, http.StatusNotFound, "Unknown prompt type: "+string(pt))
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": s.store.Backups(pt)})
}

func (s *server) restoreBackup(c *gin.Context) {
	id := c.Param("id")
	pt, ok := s.store.Restore(id)
	if !ok {
		errorJSON(c, http.StatusNotFound, "Backup not found: "+id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Restored %s", pt)})
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock backend listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("mock backend stopped")
	return nil
}
