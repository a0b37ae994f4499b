// Package backup writes JSON snapshots of the entity tables to S3-compatible
// object storage.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"unifield-backend/internal/config"
	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
	"unifield-backend/internal/timeutil"
)

// ObjectStore is the part of *s3.Client snapshots use.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewS3Client builds a client for the configured endpoint (R2, MinIO or AWS).
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Backup.AccessKey,
			cfg.Backup.SecretKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Backup.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Backup.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Backup.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Snapshot describes one uploaded backup.
type Snapshot struct {
	Key     string         `json:"key"`
	TakenAt string         `json:"taken_at"`
	Rows    map[string]int `json:"rows"`
	Bytes   int            `json:"bytes"`
}

type Service struct {
	Gateway gateway.Gateway
	Tables  []string
	Store   ObjectStore
	Bucket  string
	Prefix  string
}

func NewService(gw gateway.Gateway, tables []string, store ObjectStore, bucket, prefix string) *Service {
	return &Service{Gateway: gw, Tables: tables, Store: store, Bucket: bucket, Prefix: prefix}
}

// Run reads every table in id order and uploads them as one JSON document
// keyed by the snapshot time.
func (s *Service) Run(ctx context.Context) (*Snapshot, error) {
	now := timeutil.Now()
	doc := struct {
		TakenAt string                  `json:"taken_at"`
		Tables  map[string][]models.Row `json:"tables"`
	}{
		TakenAt: now.Format(timeutil.DateTimeLayout),
		Tables:  make(map[string][]models.Row, len(s.Tables)),
	}
	snap := &Snapshot{TakenAt: doc.TakenAt, Rows: make(map[string]int, len(s.Tables))}

	q := gateway.Query{OrderBy: &gateway.Order{Column: models.IDField, Ascending: true}}
	results := make([][]models.Row, len(s.Tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, table := range s.Tables {
		g.Go(func() error {
			res, err := s.Gateway.Select(gctx, table, q)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", table, err)
			}
			results[i] = res.Rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, table := range s.Tables {
		doc.Tables[table] = results[i]
		snap.Rows[table] = len(results[i])
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	snap.Key = path.Join(s.Prefix, now.Format(timeutil.StampLayout)+".json")
	snap.Bytes = len(body)

	_, err = s.Store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(snap.Key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", snap.Key, err)
	}
	log.Printf("[Backup] Uploaded %s (%d bytes, %d tables)", snap.Key, snap.Bytes, len(s.Tables))
	return snap, nil
}

// List returns snapshot keys under the prefix, newest first.
func (s *Service) List(ctx context.Context) ([]string, error) {
	out, err := s.Store.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix + "/"),
	})
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}
