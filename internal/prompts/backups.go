package prompts

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"contractanalyzer/internal/model"
)

// ListBackups returns the backups of the selected prompt. Lists are cached
// per prompt type until the TTL passes or a backup is created or restored.
func (m *Module) ListBackups(ctx context.Context) ([]model.PromptBackup, error) {
	pt := m.Selected()
	if v, ok := m.backups.Get(string(pt)); ok {
		return v.([]model.PromptBackup), nil
	}

	list, err := m.client.PromptBackups(ctx, pt)
	if err != nil {
		return nil, m.fail("list backups", err)
	}

	m.mu.Lock()
	ttl := m.backupTTL
	m.mu.Unlock()
	m.backups.Set(string(pt), list, ttl)
	m.changed()
	return list, nil
}

// CachedBackups returns the cached list for the selected prompt without a
// network call.
func (m *Module) CachedBackups() ([]model.PromptBackup, bool) {
	v, ok := m.backups.Get(string(m.Selected()))
	if !ok {
		return nil, false
	}
	return v.([]model.PromptBackup), true
}

// StartListBackups runs ListBackups in the background.
func (m *Module) StartListBackups() {
	m.background("prompt-backups", func(ctx context.Context) error {
		_, err := m.ListBackups(ctx)
		return err
	})
}

// CreateBackup snapshots the saved text of the selected prompt.
// name is optional.
func (m *Module) CreateBackup(ctx context.Context, name string) (*model.PromptBackup, error) {
	pt := m.Selected()
	b, err := m.client.CreatePromptBackup(ctx, pt, name)
	if err != nil {
		return nil, m.fail("create backup", err)
	}
	m.backups.Delete(string(pt))

	m.logger.Info("prompt backup created", zap.String("type", string(pt)), zap.String("backup_id", b.ID))
	label := b.ID
	if b.Name != "" {
		label = b.Name
	}
	m.notifier.Success(fmt.Sprintf("Backup %s created", label))
	return b, nil
}

// StartCreateBackup runs CreateBackup in the background.
func (m *Module) StartCreateBackup(name string) {
	m.background("prompt-backup", func(ctx context.Context) error {
		_, err := m.CreateBackup(ctx, name)
		return err
	})
}

// Restore overwrites the selected prompt with a backup and reloads it.
func (m *Module) Restore(ctx context.Context, backupID string) error {
	pt := m.Selected()
	if _, err := m.client.RestorePromptBackup(ctx, backupID); err != nil {
		return m.fail("restore backup", err)
	}
	m.backups.Delete(string(pt))

	m.logger.Info("prompt backup restored", zap.String("type", string(pt)), zap.String("backup_id", backupID))
	m.notifier.Success("Backup restored successfully")
	return m.load(ctx, pt)
}

// RequestRestore confirms and then runs Restore.
func (m *Module) RequestRestore(backupID string) {
	m.notifier.Confirm("Restore this backup? The current prompt will be replaced.", func() {
		m.background("prompt-restore", func(ctx context.Context) error {
			return m.Restore(ctx, backupID)
		})
	}, nil)
}
