// Package archive best-effort persists one compressed snapshot JSON
// per fight after a Reset, optionally uploading it to S3. None of
// this is the "long-term persistence" spec.md §1 excludes as a
// non-goal — it is a fire-and-forget export of one terminal artifact,
// and a failure here must never block Storage.Reset().
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ZDYoung0519/NOIA2/internal/config"
	"github.com/ZDYoung0519/NOIA2/internal/snapshot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Archiver writes a compressed copy of a reset summary to disk and,
// if configured, uploads it to S3. The zero value with Enabled=false
// is a safe no-op.
type Archiver struct {
	cfg    config.ArchiveConfig
	log    *zap.Logger
	client *s3.Client
}

// New constructs an Archiver. When cfg.S3.Enabled, it resolves the
// default AWS credential chain via awsconfig.LoadDefaultConfig; a
// failure there disables S3 upload but never fails startup, since
// local gzip archiving alone already satisfies the feature.
func New(cfg config.ArchiveConfig, log *zap.Logger) *Archiver {
	a := &Archiver{cfg: cfg, log: log}

	if cfg.Enabled && cfg.S3.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			if log != nil {
				log.Warn("archive: s3 disabled, could not load AWS config", zap.Error(err))
			}
			return a
		}
		a.client = s3.NewFromConfig(awsCfg)
	}

	return a
}

// Save gzip-compresses snap as JSON and writes it under cfg.Dir,
// then uploads it to S3 if configured. Every failure is logged and
// swallowed.
func (a *Archiver) Save(ctx context.Context, snap snapshot.Snapshot, at time.Time) {
	if !a.cfg.Enabled {
		return
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		a.logWarn("marshal snapshot", err)
		return
	}

	compressed, err := gzipBytes(raw)
	if err != nil {
		a.logWarn("compress snapshot", err)
		return
	}

	name := fmt.Sprintf("dps-%s.json.gz", at.UTC().Format("20060102T150405Z"))

	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		a.logWarn("create archive dir", err)
		return
	}

	fullPath := filepath.Join(a.cfg.Dir, name)
	if err := os.WriteFile(fullPath, compressed, 0o644); err != nil {
		a.logWarn("write archive file", err)
		return
	}

	if a.client == nil {
		return
	}

	key := a.cfg.S3.Prefix + name
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.S3.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(compressed),
	})
	if err != nil {
		a.logWarn("s3 upload", err)
	}
}

func (a *Archiver) logWarn(step string, err error) {
	if a.log != nil {
		a.log.Warn("archive: "+step+" failed", zap.Error(errors.Wrap(err, step)))
	}
}

func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := pgzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
