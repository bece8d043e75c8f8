package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractanalyzer/internal/api"
	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/notify"
	"contractanalyzer/internal/shell"
	"contractanalyzer/internal/shell/shelltest"
)

type fakeUploader struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
	err      error
	block    bool
	started  chan struct{}
}

func (f *fakeUploader) Upload(ctx context.Context, target model.UploadTarget, filename string, r io.Reader, size int64, progress api.ProgressFunc) (*model.UploadResponse, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	n, _ := io.Copy(io.Discard, r)
	if progress != nil {
		progress(n, size)
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.uploaded = append(f.uploaded, string(target)+":"+filename)
	f.mu.Unlock()
	return &model.UploadResponse{ID: "new"}, nil
}

func (f *fakeUploader) DeleteFile(ctx context.Context, target model.UploadTarget, id string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

type message struct {
	kind string
	text string
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []message
	confirms []func()
}

func (n *fakeNotifier) add(kind, text string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message{kind, text})
	return kind
}

func (n *fakeNotifier) Success(m string, _ ...notify.Option) string { return n.add("success", m) }
func (n *fakeNotifier) Error(m string, _ ...notify.Option) string   { return n.add("error", m) }
func (n *fakeNotifier) Info(m string, _ ...notify.Option) string    { return n.add("info", m) }
func (n *fakeNotifier) Confirm(m string, onConfirm, _ func()) string {
	n.mu.Lock()
	n.confirms = append(n.confirms, onConfirm)
	n.mu.Unlock()
	return n.add("confirm", m)
}

func (n *fakeNotifier) all() []message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]message(nil), n.messages...)
}

func writeFile(t *testing.T, name string, size int64) File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return File{Path: path, Name: name, Size: size}
}

func setup(t *testing.T, up *fakeUploader) (*Module, *fakeNotifier, *shelltest.Host) {
	t.Helper()
	n := &fakeNotifier{}
	m := New(config.DefaultConfig(), up, n, nil)
	host := shelltest.NewHost(m)
	require.NoError(t, m.Init(context.Background(), host))
	return m, n, host
}

func TestUpload_RejectsWrongTypeBeforeNetwork(t *testing.T) {
	up := &fakeUploader{}
	m, n, host := setup(t, up)

	err := m.Upload(context.Background(), Selection{Files: []File{writeFile(t, "contract.pdf", 1024)}})
	require.Error(t, err)
	assert.True(t, shell.IsHandled(err))

	assert.Empty(t, up.uploaded)
	assert.Equal(t, 0, host.Refreshes())
	msgs := n.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgs[0].kind)
	assert.Contains(t, msgs[0].text, "invalid file type")
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	up := &fakeUploader{}
	m, n, _ := setup(t, up)

	err := m.Upload(context.Background(), Selection{Files: []File{writeFile(t, "big.docx", 17*1024*1024)}})
	require.Error(t, err)
	assert.Empty(t, up.uploaded)
	assert.Contains(t, n.all()[0].text, "file too large")
}

func TestUpload_SuccessNotifiesAndRefreshes(t *testing.T) {
	up := &fakeUploader{}
	m, n, host := setup(t, up)
	m.SetTarget(model.TargetTemplate)

	err := m.Upload(context.Background(), Selection{Files: []File{
		writeFile(t, "a.docx", 1024),
		writeFile(t, "b.pdf", 10),
		writeFile(t, "c.docx", 2048),
	}})
	require.Error(t, err, "the pdf fails")

	assert.Equal(t, []string{"template:a.docx", "template:c.docx"}, up.uploaded)
	assert.Equal(t, 1, host.Refreshes())
	assert.Empty(t, m.Tasks())

	var successes int
	for _, msg := range n.all() {
		if msg.kind == "success" {
			successes++
		}
	}
	assert.Equal(t, 2, successes)
}

func TestUpload_ServerErrorVerbatim(t *testing.T) {
	up := &fakeUploader{err: &api.Error{StatusCode: 400, Message: "Only .docx files are allowed"}}
	m, n, host := setup(t, up)

	err := m.Upload(context.Background(), Selection{Files: []File{writeFile(t, "a.docx", 10)}})
	require.Error(t, err)
	assert.Equal(t, []message{{"error", "Only .docx files are allowed"}}, n.all())
	assert.Equal(t, 0, host.Refreshes())
}

func TestCancel_AbortsInFlightUpload(t *testing.T) {
	up := &fakeUploader{block: true, started: make(chan struct{})}
	m, n, _ := setup(t, up)

	sel := Selection{Files: []File{writeFile(t, "a.docx", 10)}}
	done := make(chan error, 1)
	go func() {
		done <- m.Upload(context.Background(), sel)
	}()

	<-up.started
	tasks := m.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "a.docx", tasks[0].Filename)

	assert.True(t, m.Cancel(tasks[0].ID))
	assert.Empty(t, m.Tasks())
	assert.False(t, m.Cancel(tasks[0].ID))

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("upload did not stop after cancel")
	}
	assert.Equal(t, "info", n.all()[0].kind)
}

func TestTaskProgress(t *testing.T) {
	assert.Equal(t, 0.5, Task{Sent: 50, Total: 100}.Progress())
	assert.Equal(t, 0.0, Task{}.Progress())
	assert.Equal(t, 1.0, Task{Sent: 150, Total: 100}.Progress())
}

func TestHandleEvent_TracksLists(t *testing.T) {
	m, _, _ := setup(t, &fakeUploader{})
	m.HandleEvent(shell.DataUpdated{Data: model.Data{
		Contracts: []model.Contract{{ID: "c1"}},
	}})

	assert.Len(t, m.Contracts(), 1)
	assert.Nil(t, m.Templates())
}

func TestOnTabActivated_ReloadsMissingLists(t *testing.T) {
	m, _, host := setup(t, &fakeUploader{})
	m.OnTabActivated()
	host.Wait()
	assert.Equal(t, 1, host.Refreshes())

	m.HandleEvent(shell.DataUpdated{Data: model.Data{Contracts: []model.Contract{}, Templates: []model.Template{}}})
	m.OnTabActivated()
	host.Wait()
	assert.Equal(t, 1, host.Refreshes())
}

func TestSettingsChangedUpdatesLimits(t *testing.T) {
	m, _, _ := setup(t, &fakeUploader{})
	cfg := config.DefaultConfig()
	cfg.Upload.AllowedTypes = []string{".docx", ".pdf"}
	cfg.Upload.MaxSizeMB = 1
	m.HandleEvent(shell.SettingsChanged{Config: cfg})

	assert.NoError(t, m.Validate(File{Name: "a.pdf", Size: 10}))
	assert.Error(t, m.Validate(File{Name: "a.docx", Size: 2 * 1024 * 1024}))
}

func TestRequestDelete_ConfirmsFirst(t *testing.T) {
	up := &fakeUploader{}
	m, n, host := setup(t, up)

	m.RequestDelete(model.TargetContract, "c1", "a.docx")
	assert.Empty(t, up.deleted)
	require.Len(t, n.confirms, 1)

	n.confirms[0]()
	host.Wait()

	assert.Equal(t, []string{"c1"}, up.deleted)
	assert.Equal(t, 1, host.Refreshes())
}

func TestSubmit_RunsInBackground(t *testing.T) {
	up := &fakeUploader{}
	m, _, host := setup(t, up)

	m.Submit(Selection{Files: []File{writeFile(t, "a.docx", 10)}})
	host.Wait()

	assert.Equal(t, []string{"contract:a.docx"}, up.uploaded)
	assert.Empty(t, host.AsyncErrors())
}
