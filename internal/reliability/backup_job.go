package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BackupJob uploads a backup and then rotates old archives.
type BackupJob struct {
	service   *BackupService
	retention time.Duration
	timeout   time.Duration
	log       zerolog.Logger
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(service *BackupService, retention time.Duration, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:   service,
		retention: retention,
		timeout:   10 * time.Minute,
		log:       log.With().Str("job", "run_backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "run_backup"
}

// Run executes the backup. A failed rotation is logged; the upload already succeeded.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	key, err := j.service.CreateAndUploadBackup(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	if _, err := j.service.RotateOldBackups(ctx, j.retention); err != nil {
		j.log.Warn().Err(err).Str("key", key).Msg("Backup rotation failed")
	}
	return nil
}
