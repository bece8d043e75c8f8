package prompts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractanalyzer/internal/api"
	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/notify"
	"contractanalyzer/internal/shell"
	"contractanalyzer/internal/shell/shelltest"
)

type fakeClient struct {
	mu        sync.Mutex
	texts     map[model.PromptType]string
	backups   []model.PromptBackup
	listCalls int
	netCalls  int
	err       error
	valid     bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		texts: map[model.PromptType]string{
			model.PromptContractAnalysis: "Compare {contract} with {template}",
			model.PromptChangeSummary:    "Summarise {changes}",
		},
		backups: []model.PromptBackup{{ID: "b1", PromptType: model.PromptContractAnalysis}},
		valid:   true,
	}
}

func (f *fakeClient) hit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.netCalls++
	return f.err
}

func (f *fakeClient) Prompt(_ context.Context, pt model.PromptType) (*model.PromptTemplate, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.PromptTemplate{PromptType: pt, Content: f.texts[pt]}, nil
}

func (f *fakeClient) SavePrompt(_ context.Context, pt model.PromptType, content string) (*model.OperationResponse, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.texts[pt] = content
	f.mu.Unlock()
	return &model.OperationResponse{}, nil
}

func (f *fakeClient) ValidatePrompt(context.Context, model.PromptType, string) (*model.ValidationResult, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	if !f.valid {
		return &model.ValidationResult{Valid: false, Errors: []string{"missing {contract}"}}, nil
	}
	return &model.ValidationResult{Valid: true}, nil
}

func (f *fakeClient) PreviewPrompt(_ context.Context, _ model.PromptType, content string) (*model.PromptPreview, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	return &model.PromptPreview{Rendered: "rendered: " + content}, nil
}

func (f *fakeClient) CreatePromptBackup(_ context.Context, pt model.PromptType, name string) (*model.PromptBackup, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b := model.PromptBackup{ID: "b2", PromptType: pt, Name: name}
	f.backups = append(f.backups, b)
	return &b, nil
}

func (f *fakeClient) PromptBackups(context.Context, model.PromptType) ([]model.PromptBackup, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]model.PromptBackup(nil), f.backups...), nil
}

func (f *fakeClient) RestorePromptBackup(context.Context, string) (*model.OperationResponse, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.texts[model.PromptContractAnalysis] = "restored"
	f.mu.Unlock()
	return &model.OperationResponse{}, nil
}

func (f *fakeClient) PromptStats(context.Context) (model.PromptStats, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	return model.PromptStats{"total_prompts": float64(4)}, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	shown    []string
	confirms []func()
}

func (n *fakeNotifier) add(kind, msg string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, kind+": "+msg)
	return kind
}

func (n *fakeNotifier) Success(m string, _ ...notify.Option) string { return n.add("success", m) }
func (n *fakeNotifier) Error(m string, _ ...notify.Option) string   { return n.add("error", m) }
func (n *fakeNotifier) Warning(m string, _ ...notify.Option) string { return n.add("warning", m) }
func (n *fakeNotifier) Confirm(m string, onConfirm, _ func()) string {
	n.mu.Lock()
	n.confirms = append(n.confirms, onConfirm)
	n.mu.Unlock()
	return n.add("confirm", m)
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.shown...)
}

func setup(t *testing.T) (*Module, *fakeClient, *fakeNotifier, *shelltest.Host) {
	t.Helper()
	c := newFakeClient()
	n := &fakeNotifier{}
	m := New(config.DefaultConfig(), c, n, nil)
	host := shelltest.NewHost(m)
	require.NoError(t, m.Init(context.Background(), host))
	return m, c, n, host
}

func TestSetPromptContentRoundTrip(t *testing.T) {
	m, _, _, _ := setup(t)
	f := func(s string) bool {
		m.SetPromptContent(s)
		return m.GetCurrentPromptContent() == s
	}
	require.NoError(t, quick.Check(f, nil))

	for _, s := range []string{"", "  ", "line1\nline2\r\n", "{contract} ✓ 日本語"} {
		m.SetPromptContent(s)
		assert.Equal(t, s, m.GetCurrentPromptContent())
	}
}

func TestSelectLoadsAndTracksUnsavedChanges(t *testing.T) {
	m, _, _, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, m.Select(ctx, model.PromptChangeSummary))
	assert.Equal(t, model.PromptChangeSummary, m.Selected())
	assert.Equal(t, "Summarise {changes}", m.GetCurrentPromptContent())
	assert.False(t, m.HasUnsavedChanges())

	m.SetPromptContent("Summarise {changes} ")
	assert.True(t, m.HasUnsavedChanges())
	m.SetPromptContent("Summarise {changes}")
	assert.False(t, m.HasUnsavedChanges())
}

func TestSelectRejectsUnknownType(t *testing.T) {
	m, c, n, _ := setup(t)
	err := m.Select(context.Background(), "haiku")
	require.Error(t, err)
	assert.Equal(t, 0, c.netCalls)
	assert.Len(t, n.messages(), 1)
}

func TestEmptyPromptNeverHitsNetwork(t *testing.T) {
	m, c, n, _ := setup(t)
	ctx := context.Background()
	m.SetPromptContent("   \n")

	_, err := m.Validate(ctx)
	assert.True(t, errors.Is(err, ErrEmptyPrompt))
	_, err = m.Preview(ctx)
	assert.True(t, errors.Is(err, ErrEmptyPrompt))
	assert.True(t, errors.Is(m.Save(ctx), ErrEmptyPrompt))

	assert.Equal(t, 0, c.netCalls)
	assert.Len(t, n.messages(), 3)
}

func TestValidate(t *testing.T) {
	m, c, n, _ := setup(t)
	ctx := context.Background()
	m.SetPromptContent("text")

	res, err := m.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "success: Prompt is valid", n.messages()[0])

	c.valid = false
	res, err = m.Validate(ctx)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, res, m.Validation())
	assert.Contains(t, n.messages()[1], "warning: ")
}

func TestPreview(t *testing.T) {
	m, _, _, _ := setup(t)
	m.SetPromptContent("# Heading")
	out, err := m.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rendered: # Heading", out)
	assert.Equal(t, out, m.PreviewText())
}

func TestSaveClearsUnsavedChanges(t *testing.T) {
	m, c, _, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, model.PromptContractAnalysis))

	m.SetPromptContent("new text")
	require.True(t, m.HasUnsavedChanges())
	require.NoError(t, m.Save(ctx))

	assert.False(t, m.HasUnsavedChanges())
	assert.Equal(t, "new text", c.texts[model.PromptContractAnalysis])
}

func TestServerErrorVerbatim(t *testing.T) {
	m, c, n, _ := setup(t)
	c.err = &api.Error{StatusCode: 400, Message: "Unknown variable {foo}"}
	m.SetPromptContent("{foo}")

	err := m.Save(context.Background())
	require.Error(t, err)
	assert.True(t, shell.IsHandled(err))
	assert.Equal(t, []string{"error: Unknown variable {foo}"}, n.messages())
}

func TestRequestResetConfirmsOnlyWithUnsavedChanges(t *testing.T) {
	m, _, n, host := setup(t)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, model.PromptContractAnalysis))

	m.RequestReset()
	host.Wait()
	assert.Empty(t, n.confirms)

	m.SetPromptContent("edited")
	m.RequestReset()
	require.Len(t, n.confirms, 1)
	assert.Equal(t, "edited", m.GetCurrentPromptContent())

	n.confirms[0]()
	host.Wait()
	assert.Equal(t, "Compare {contract} with {template}", m.GetCurrentPromptContent())
	assert.False(t, m.HasUnsavedChanges())
}

func TestListBackupsCached(t *testing.T) {
	m, c, _, _ := setup(t)
	ctx := context.Background()

	first, err := m.ListBackups(ctx)
	require.NoError(t, err)
	_, err = m.ListBackups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.listCalls)
	assert.Len(t, first, 1)

	cached, ok := m.CachedBackups()
	assert.True(t, ok)
	assert.Len(t, cached, 1)

	_, err = m.CreateBackup(ctx, "before-edit")
	require.NoError(t, err)
	_, ok = m.CachedBackups()
	assert.False(t, ok, "create invalidates")

	list, err := m.ListBackups(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, c.listCalls)
}

func TestRestoreReloadsAndInvalidates(t *testing.T) {
	m, c, n, host := setup(t)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, model.PromptContractAnalysis))
	_, err := m.ListBackups(ctx)
	require.NoError(t, err)

	m.RequestRestore("b1")
	require.Len(t, n.confirms, 1)
	n.confirms[0]()
	host.Wait()

	assert.Equal(t, "restored", m.GetCurrentPromptContent())
	_, ok := m.CachedBackups()
	assert.False(t, ok)
	assert.Equal(t, 1, c.listCalls)
}

func TestStats(t *testing.T) {
	m, _, _, _ := setup(t)
	stats, err := m.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(4), stats["total_prompts"])
	assert.Equal(t, stats, m.LastStats())
}

func TestOnTabActivatedLoadsOnce(t *testing.T) {
	m, c, _, host := setup(t)
	m.OnTabActivated()
	host.Wait()
	assert.Equal(t, 1, c.netCalls)

	m.OnTabActivated()
	host.Wait()
	assert.Equal(t, 1, c.netCalls)
}
