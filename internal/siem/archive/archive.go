// Package archive exports event batches to S3 as gzip-compressed NDJSON.
// The export is best-effort: the ingestion pipeline never blocks on it.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/vigilo/siem/internal/siem/config"
	"github.com/vigilo/siem/internal/siem/event"
	"github.com/vigilo/siem/internal/siem/logger"
)

const (
	backoffInitial = 200 * time.Millisecond
	backoffMax     = 2 * time.Second
)

type s3PutAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads event batches to an S3 bucket. Retries are handled
// here; the SDK's own retry layer is disabled so backoff stays in one
// place.
type Archiver struct {
	cli     s3PutAPI
	bucket  string
	prefix  string
	timeout time.Duration
	retries int
	log     *zap.SugaredLogger
}

// NewArchiver loads the ambient AWS credential chain for the configured
// region.
func NewArchiver(ctx context.Context, cfg config.ArchiveCfg) (*Archiver, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	cli := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
	})

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}

	return &Archiver{
		cli:     cli,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		timeout: timeout,
		retries: retries,
		log:     logger.L(),
	}, nil
}

// Export encodes the batch and uploads it under a date-partitioned key.
// Returns the object key on success.
func (a *Archiver) Export(ctx context.Context, evs []*event.Event) (string, error) {
	if len(evs) == 0 {
		return "", nil
	}
	body, err := encodeNDJSON(evs)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("%s/%04d/%02d/%02d/events-%d.ndjson.gz",
		a.prefix, now.Year(), now.Month(), now.Day(), now.UnixNano())

	if err := a.upload(ctx, key, body); err != nil {
		return "", err
	}
	a.log.Infow("archived event batch", "key", key, "events", len(evs), "bytes", len(body))
	return key, nil
}

// upload retries with exponential backoff; each attempt gets its own
// deadline so one stalled request cannot eat the whole retry budget.
func (a *Archiver) upload(ctx context.Context, key string, body []byte) error {
	var lastErr error
	backoff := backoffInitial

	for attempt := 1; attempt <= a.retries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := a.putObject(ctx, key, body); err == nil {
			return nil
		} else {
			lastErr = err
			a.log.Warnw("archive upload attempt failed",
				"key", key, "attempt", attempt, "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
		}
	}
	return fmt.Errorf("archive upload %s: %w", key, lastErr)
}

func (a *Archiver) putObject(ctx context.Context, key string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.cli.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	return err
}

// encodeNDJSON serializes one event per line and gzips the result.
func encodeNDJSON(evs []*event.Event) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}

	enc := json.NewEncoder(gz)
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			gz.Close()
			return nil, fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("finish gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}
