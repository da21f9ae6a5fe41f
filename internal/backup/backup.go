// Package backup writes encrypted SQLite snapshots to S3-compatible storage
// and restores them.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/famfin/internal/config"
)

const keyTimeLayout = "20060102T150405Z"

var ErrNotConfigured = errors.New("backup not configured: S3 bucket or credentials missing")

// objectStore is the subset of the S3 API the manager uses.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Object describes one stored snapshot.
type Object struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager takes snapshots of db and keeps them under prefix in bucket.
type Manager struct {
	db     *sql.DB
	client objectStore
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager returns a manager for cfg. When cfg is not enabled every
// operation returns ErrNotConfigured.
func NewManager(cfg config.BackupConfig, db *sql.DB, logger *slog.Logger) *Manager {
	var client objectStore
	if cfg.Enabled() {
		client = newS3Client(cfg)
	}
	return newManager(client, cfg.Bucket, cfg.Prefix, db, logger)
}

func newManager(client objectStore, bucket, prefix string, db *sql.DB, logger *slog.Logger) *Manager {
	return &Manager{
		db:     db,
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
		now:    time.Now,
	}
}

func newS3Client(cfg config.BackupConfig) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) keyPrefix() string {
	if m.prefix == "" {
		return ""
	}
	return m.prefix + "/"
}

// Run snapshots the database, encrypts it with passphrase and uploads it.
func (m *Manager) Run(ctx context.Context, passphrase string) (Object, error) {
	if m.client == nil {
		return Object{}, ErrNotConfigured
	}
	if passphrase == "" {
		return Object{}, errors.New("backup passphrase is required")
	}

	tmpDir, err := os.MkdirTemp("", "famfin-backup-")
	if err != nil {
		return Object{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// VACUUM INTO refuses to overwrite, so the target must not exist yet.
	snapshot := filepath.Join(tmpDir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return Object{}, fmt.Errorf("snapshot database: %w", err)
	}
	plain, err := os.ReadFile(snapshot)
	if err != nil {
		return Object{}, fmt.Errorf("read snapshot: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return Object{}, err
	}
	enc, err := Encrypt(plain, passphrase, salt)
	if err != nil {
		return Object{}, fmt.Errorf("encrypt: %w", err)
	}

	created := m.now().UTC()
	key := m.keyPrefix() + "famfin-" + created.Format(keyTimeLayout) + ".db.enc"
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(enc),
		ContentLength: aws.Int64(int64(len(enc))),
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload to s3: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "size", len(enc))
	return Object{Key: key, Size: int64(len(enc)), CreatedAt: created}, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	if m.client == nil {
		return nil, ErrNotConfigured
	}

	var objects []Object
	var token *string
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.bucket),
			Prefix:            aws.String(m.keyPrefix()),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, o := range out.Contents {
			key := aws.ToString(o.Key)
			if !strings.HasSuffix(key, ".db.enc") {
				continue
			}
			objects = append(objects, Object{
				Key:       key,
				Size:      aws.ToInt64(o.Size),
				CreatedAt: createdAt(key, o.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].CreatedAt.After(objects[j].CreatedAt) })
	return objects, nil
}

// createdAt reads the snapshot time from its key, falling back to the
// object's modification time.
func createdAt(key string, modified *time.Time) time.Time {
	name := strings.TrimSuffix(filepath.Base(key), ".db.enc")
	if t, err := time.Parse(keyTimeLayout, strings.TrimPrefix(name, "famfin-")); err == nil {
		return t
	}
	return aws.ToTime(modified)
}

// Restore downloads key, decrypts it, verifies it is a sound SQLite database
// and replaces the file at dbPath. The server must not be running.
func (m *Manager) Restore(ctx context.Context, key, passphrase, dbPath string) error {
	if m.client == nil {
		return ErrNotConfigured
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()

	enc, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("read download: %w", err)
	}
	plain, err := Decrypt(enc, passphrase)
	if err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	tmp := dbPath + ".restore"
	if err := os.WriteFile(tmp, plain, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace database: %w", err)
	}

	// Stale WAL files belong to the replaced database.
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")

	m.logger.Info("backup restored", "key", key, "db_path", dbPath)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Prune deletes snapshots older than retention and returns how many were removed.
func (m *Manager) Prune(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	objects, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().UTC().Add(-retention)
	removed := 0
	for _, o := range objects {
		if !o.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(o.Key),
		}); err != nil {
			m.logger.Error("delete old backup", "key", o.Key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Start runs a backup and prune every interval until ctx is cancelled or
// Stop is called.
func (m *Manager) Start(ctx context.Context, interval, retention time.Duration, passphrase string) {
	if m.client == nil || interval <= 0 {
		return
	}
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("scheduled backups started", "interval", interval, "retention", retention)

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Run(ctx, passphrase); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
					continue
				}
				if n, err := m.Prune(ctx, retention); err != nil {
					m.logger.Error("prune backups", "error", err)
				} else if n > 0 {
					m.logger.Info("old backups pruned", "count", n)
				}
			}
		}
	}()
}

// Stop halts scheduled backups and waits for an in-flight run to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
