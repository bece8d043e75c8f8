package mockapi

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"contractanalyzer/internal/model"
)

const timeLayout = "2006-01-02T15:04:05"

var defaultPrompts = map[model.PromptType]string{
	model.PromptContractAnalysis: "Compare the contract {contract} against the template {template} and list every change.",
	model.PromptChangeSummary:    "Summarise the following changes for a legal reviewer:\n{changes}",
	model.PromptRiskAssessment:   "Rate the risk of each change in {changes} as low, medium or high.",
	model.PromptClauseComparison: "Compare clause {clause} of the contract with the template wording.",
}

type backup struct {
	model.PromptBackup
	content string
}

// Store is the in-memory state behind the mock backend.
type Store struct {
	mu        sync.RWMutex
	now       func() time.Time
	contracts map[string]model.Contract
	templates map[string]model.Template
	results   map[string]model.AnalysisResult
	prompts   map[model.PromptType]model.PromptTemplate
	backups   map[string]backup
	reports   map[string]bool // "<id>/<report_type>"
	usage     map[string]int
}

// NewStore creates a store seeded with the default prompts.
func NewStore() *Store {
	s := &Store{
		now:       time.Now,
		contracts: make(map[string]model.Contract),
		templates: make(map[string]model.Template),
		results:   make(map[string]model.AnalysisResult),
		prompts:   make(map[model.PromptType]model.PromptTemplate),
		backups:   make(map[string]backup),
		reports:   make(map[string]bool),
		usage:     make(map[string]int),
	}
	for pt, content := range defaultPrompts {
		s.prompts[pt] = model.PromptTemplate{PromptType: pt, Content: content, UpdatedAt: s.stamp()}
	}
	return s
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

// AddContract records an uploaded contract.
func (s *Store) AddContract(filename string, size int64) model.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := model.Contract{ID: uuid.NewString(), Filename: filename, FileSize: size, UploadDate: s.stamp()}
	s.contracts[c.ID] = c
	return c
}

// AddTemplate records an uploaded template.
func (s *Store) AddTemplate(filename string, size int64) model.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := model.Template{ID: uuid.NewString(), Filename: filename, FileSize: size, UploadDate: s.stamp()}
	s.templates[t.ID] = t
	return t
}

// Contracts lists contracts, oldest first.
func (s *Store) Contracts() []model.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadDate == out[j].UploadDate {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadDate < out[j].UploadDate
	})
	return out
}

// Templates lists templates, oldest first.
func (s *Store) Templates() []model.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadDate == out[j].UploadDate {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadDate < out[j].UploadDate
	})
	return out
}

// Results lists analysis results, newest first.
func (s *Store) Results() []model.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AnalysisResult, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date == out[j].Date {
			return out[i].AnalysisID < out[j].AnalysisID
		}
		return out[i].Date > out[j].Date
	})
	return out
}

// DeleteContract removes a contract. It reports whether it existed.
func (s *Store) DeleteContract(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.contracts[id]
	delete(s.contracts, id)
	return ok
}

// DeleteTemplate removes a template. It reports whether it existed.
func (s *Store) DeleteTemplate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.templates[id]
	delete(s.templates, id)
	return ok
}

// ClearContracts removes every contract and returns how many there were.
func (s *Store) ClearContracts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.contracts)
	s.contracts = make(map[string]model.Contract)
	return n
}

// ClearFiles removes every contract, template and analysis result.
func (s *Store) ClearFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.contracts) + len(s.templates)
	s.contracts = make(map[string]model.Contract)
	s.templates = make(map[string]model.Template)
	s.results = make(map[string]model.AnalysisResult)
	s.reports = make(map[string]bool)
	return n
}

// Analyze compares a contract with a template. An empty templateID picks
// the newest template.
func (s *Store) Analyze(contractID, templateID string) (model.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[contractID]
	if !ok {
		return model.AnalysisResult{}, &notFoundError{fmt.Sprintf("Contract not found: %s", contractID)}
	}

	var t model.Template
	if templateID != "" {
		if t, ok = s.templates[templateID]; !ok {
			return model.AnalysisResult{}, &notFoundError{fmt.Sprintf("Template not found: %s", templateID)}
		}
	} else {
		for _, cand := range s.templates {
			if t.ID == "" || cand.UploadDate > t.UploadDate {
				t = cand
			}
		}
		if t.ID == "" {
			return model.AnalysisResult{}, fmt.Errorf("no templates available, upload a template first")
		}
	}

	similarity := similarityOf(c.Filename, t.Filename)
	r := model.AnalysisResult{
		AnalysisID: uuid.NewString(),
		Contract:   c.Filename,
		Template:   t.Filename,
		Similarity: similarity,
		RawStatus:  statusFor(similarity),
		Date:       s.stamp(),
	}
	s.results[r.AnalysisID] = r
	s.usage[string(model.PromptContractAnalysis)]++
	return r, nil
}

// similarityOf derives a stable score from the two filenames.
func similarityOf(contract, template string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(contract) + "|" + strings.ToLower(template)))
	return float64(50 + h.Sum32()%51)
}

func statusFor(similarity float64) string {
	switch {
	case similarity >= 98:
		return "No changes"
	case similarity >= 90:
		return "Minor changes"
	case similarity >= 75:
		return "Moderate changes"
	case similarity >= 60:
		return "Major changes"
	default:
		return "Critical changes"
	}
}

// HasResult reports whether an analysis exists.
func (s *Store) HasResult(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.results[id]
	return ok
}

// MarkReport records a generated report.
func (s *Store) MarkReport(id string, rt model.ReportType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[id+"/"+string(rt)] = true
}

// HasReport reports whether a report was generated.
func (s *Store) HasReport(id string, rt model.ReportType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports[id+"/"+string(rt)]
}

// Prompt returns the current text of a prompt.
func (s *Store) Prompt(pt model.PromptType) (model.PromptTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[pt]
	return p, ok
}

// SavePrompt replaces the text of a prompt.
func (s *Store) SavePrompt(pt model.PromptType, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[pt] = model.PromptTemplate{PromptType: pt, Content: content, UpdatedAt: s.stamp()}
	s.usage["saves"]++
}

// Backup snapshots a prompt.
func (s *Store) Backup(pt model.PromptType, name string) model.PromptBackup {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := backup{
		PromptBackup: model.PromptBackup{ID: uuid.NewString(), PromptType: pt, Name: name, CreatedAt: s.stamp()},
		content:      s.prompts[pt].Content,
	}
	s.backups[b.ID] = b
	return b.PromptBackup
}

// Backups lists the backups of a prompt, newest first.
func (s *Store) Backups(pt model.PromptType) []model.PromptBackup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.PromptBackup{}
	for _, b := range s.backups {
		if b.PromptType == pt {
			out = append(out, b.PromptBackup)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

// Restore copies a backup over its prompt.
func (s *Store) Restore(id string) (model.PromptType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backups[id]
	if !ok {
		return "", false
	}
	s.prompts[b.PromptType] = model.PromptTemplate{PromptType: b.PromptType, Content: b.content, UpdatedAt: s.stamp()}
	return b.PromptType, true
}

// Stats returns usage counters.
func (s *Store) Stats() model.PromptStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := model.PromptStats{
		"total_prompts": len(s.prompts),
		"total_backups": len(s.backups),
		"analyses":      len(s.results),
	}
	for k, v := range s.usage {
		stats["usage_"+k] = v
	}
	return stats
}

type notFoundError struct{ msg string }

func (e *notFoundError) Error() string { return e.msg }
