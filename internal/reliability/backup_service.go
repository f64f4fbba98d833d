package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	archiveTimeLayout = "2006-01-02-150405"
	archiveSuffix     = ".tar.gz"
	metadataFilename  = "backup-metadata.json"
	metadataVersion   = "1"

	// DefaultPrefix names archives when Options.Prefix is empty.
	DefaultPrefix = "finance-instruments-backup-"
	// DefaultKeep is the number of newest archives rotation never deletes.
	DefaultKeep = 3
)

// Snapshotter writes a consistent copy of a database to a file.
type Snapshotter interface {
	Snapshot(ctx context.Context, dst string) error
	Name() string
}

// BackupMetadata is written into every archive next to the snapshots.
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one snapshot inside an archive.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes one archive in the object store.
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// Options configures a BackupService.
type Options struct {
	StagingDir string
	Prefix     string
	Keep       int
}

// BackupService snapshots databases into a tar.gz archive and uploads it.
type BackupService struct {
	databases  []Snapshotter
	store      ObjectStore
	stagingDir string
	prefix     string
	keep       int
	now        func() time.Time
	log        zerolog.Logger
}

// NewBackupService creates a new BackupService
func NewBackupService(store ObjectStore, opts Options, log zerolog.Logger, databases ...Snapshotter) (*BackupService, error) {
	if store == nil {
		return nil, fmt.Errorf("backup service needs an object store")
	}
	if len(databases) == 0 {
		return nil, fmt.Errorf("backup service needs at least one database")
	}
	if opts.StagingDir == "" {
		return nil, fmt.Errorf("backup staging directory is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Keep <= 0 {
		opts.Keep = DefaultKeep
	}

	return &BackupService{
		databases:  databases,
		store:      store,
		stagingDir: opts.StagingDir,
		prefix:     opts.Prefix,
		keep:       opts.Keep,
		now:        time.Now,
		log:        log.With().Str("service", "backup").Logger(),
	}, nil
}

// CreateAndUploadBackup snapshots every database and uploads the archive.
// It returns the object key.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) (string, error) {
	started := s.now()
	s.log.Info().Int("databases", len(s.databases)).Msg("Starting backup")

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	staging, err := os.MkdirTemp(s.stagingDir, "staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	metadata := BackupMetadata{
		Timestamp: started.UTC(),
		Version:   metadataVersion,
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}
	files := make([]string, 0, len(s.databases)+1)

	for _, db := range s.databases {
		filename := db.Name() + ".db"
		path := filepath.Join(staging, filename)
		if err := db.Snapshot(ctx, path); err != nil {
			return "", fmt.Errorf("failed to snapshot %s: %w", db.Name(), err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s snapshot: %w", db.Name(), err)
		}
		checksum, err := fileChecksum(path)
		if err != nil {
			return "", fmt.Errorf("failed to checksum %s snapshot: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		files = append(files, filename)
	}

	if err := writeMetadata(filepath.Join(staging, metadataFilename), metadata); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, metadataFilename)

	key := s.prefix + started.UTC().Format(archiveTimeLayout) + archiveSuffix
	// The prefix may name a folder in the bucket; locally only the file name matters.
	archivePath := filepath.Join(staging, filepath.Base(key))
	if err := createArchive(archivePath, staging, files); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	info, err := archive.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	if err := s.store.Upload(ctx, key, archive, info.Size()); err != nil {
		return "", err
	}

	s.log.Info().
		Str("key", key).
		Int64("size_bytes", info.Size()).
		Dur("duration", s.now().Sub(started)).
		Msg("Backup uploaded")

	return key, nil
}

// ListBackups returns the archives under the service prefix, newest first.
// Objects whose key does not carry an archive timestamp are ignored.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, s.prefix) || !strings.HasSuffix(obj.Key, archiveSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(obj.Key, s.prefix), archiveSuffix)
		ts, err := time.Parse(archiveTimeLayout, stamp)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("Skipping object without archive timestamp")
			continue
		}
		backups = append(backups, BackupInfo{
			Key:       obj.Key,
			Timestamp: ts,
			SizeBytes: obj.SizeBytes,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes archives older than retention. The newest Keep
// archives survive regardless of age. A zero retention deletes nothing.
func (s *BackupService) RotateOldBackups(ctx context.Context, retention time.Duration) (int, error) {
	if retention < 0 {
		return 0, fmt.Errorf("backup retention must not be negative, got %s", retention)
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if retention == 0 || len(backups) <= s.keep {
		return 0, nil
	}

	cutoff := s.now().Add(-retention)
	deleted := 0
	for _, b := range backups[s.keep:] {
		if !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, b.Key); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return deleted, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(metadata)
}

func createArchive(archivePath, sourceDir string, files []string) (err error) {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for _, name := range files {
		if err := addFileToArchive(tw, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

func addFileToArchive(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if err := tw.WriteHeader(&tar.Header{
		Name:    name,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)
	return err
}
