package warehouse

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/Archbaer/cupcake-mononoke/config"
	"github.com/Archbaer/cupcake-mononoke/internal/dataset"
	"github.com/Archbaer/cupcake-mononoke/logger"
)

// Writer mirrors merged datasets into parquet files for the warehouse
// loader. Files always land under the local warehouse directory; when S3 is
// enabled they are uploaded as well and the catalog points at the S3 copy.
type Writer struct {
	cfg     *appconfig.Config
	s3      *s3.Client
	catalog *Catalog
	now     func() time.Time
	log     *logger.Log
}

// NewWriter builds a warehouse writer from the storage configuration. The
// S3 client is only constructed when uploads are enabled.
func NewWriter(cfg *appconfig.Config) (*Writer, error) {
	log := logger.GetLogger()

	w := &Writer{
		cfg:     cfg,
		catalog: NewCatalog(cfg.Storage.Warehouse.LocalDir, cfg.Storage.Warehouse.Schema),
		now:     time.Now,
		log:     log,
	}

	if cfg.Storage.S3.Enabled {
		client, err := newS3Client(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		w.s3 = client
	}

	log.WithComponent("warehouse").WithFields(logger.Fields{
		"local_dir":   cfg.Storage.Warehouse.LocalDir,
		"catalog_dir": cfg.Storage.Warehouse.CatalogDir,
		"compression": cfg.Storage.Warehouse.Compression,
		"s3_enabled":  cfg.Storage.S3.Enabled,
	}).Info("warehouse writer initialized")

	return w, nil
}

func newS3Client(ctx context.Context, cfg *appconfig.Config) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	}), nil
}

// WithClock overrides the file timestamp source.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Publish renders every non-empty table of the dataset to parquet, uploads
// when S3 is enabled and refreshes the load catalog. It returns the number
// of files written.
func (w *Writer) Publish(ctx context.Context, ds *dataset.Dataset) (int, error) {
	tables := tableRows(ds)
	if len(tables) == 0 {
		return 0, nil
	}

	at := w.now().UTC()
	stamp := at.Format("20060102150405")
	codec := codecFor(w.cfg.Storage.Warehouse.Compression)
	dir := filepath.Join(w.cfg.Storage.Warehouse.LocalDir, ds.Domain.Dir())

	log := w.log.WithComponent("warehouse").WithFields(logger.Fields{
		"domain": string(ds.Domain),
		"tables": len(tables),
	})
	log.Info("publishing dataset to warehouse")

	written := 0
	for _, tb := range tables {
		data, err := buildParquet(tb.prototype, tb.rows, codec)
		if err != nil {
			return written, fmt.Errorf("rendering %s/%s: %w", ds.Domain.Dir(), tb.name, err)
		}

		name := fmt.Sprintf("%s_%s.parquet", tb.name, stamp)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return written, fmt.Errorf("creating %s: %w", dir, err)
		}
		localPath := filepath.Join(dir, name)
		if err := os.WriteFile(localPath, data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", localPath, err)
		}

		catalogPath := localPath
		if w.s3 != nil {
			key := filepath.ToSlash(filepath.Join("warehouse", ds.Domain.Dir(), name))
			if err := w.uploadToS3(ctx, key, data); err != nil {
				return written, fmt.Errorf("uploading %s: %w", key, err)
			}
			catalogPath = fmt.Sprintf("s3://%s/%s", w.cfg.Storage.S3.Bucket, key)
			logger.IncrementS3Write(int64(len(data)))
		}

		df := DataFile{
			Path:        catalogPath,
			Table:       fmt.Sprintf("%s_%s", ds.Domain.Dir(), tb.name),
			FileSize:    int64(len(data)),
			RecordCount: int64(len(tb.rows)),
			Partition: map[string]any{
				"domain": ds.Domain.Dir(),
				"table":  tb.name,
				"date":   at.Format("2006-01-02"),
			},
			WrittenAt: at,
		}
		if err := w.catalog.AddFile(df); err != nil {
			log.WithError(err).Warn("failed to update warehouse metadata")
		}

		log.WithFields(logger.Fields{
			"table":     tb.name,
			"rows":      len(tb.rows),
			"file_size": len(data),
			"path":      catalogPath,
		}).Info("table published")
		written++
	}

	if err := w.catalog.WriteCatalogEntry(w.cfg.Storage.Warehouse.CatalogDir); err != nil {
		return written, fmt.Errorf("writing load catalog: %w", err)
	}
	return written, nil
}

func (w *Writer) uploadToS3(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.cfg.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":     "parquet",
			"compression":      w.cfg.Storage.Warehouse.Compression,
			"mononoke-version": w.cfg.Mononoke.Version,
		},
	}

	// finish in-flight uploads even when the run is being cancelled
	_, err := w.s3.PutObject(context.WithoutCancel(ctx), input)
	if err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", w.cfg.Storage.S3.Bucket, err)
	}
	return nil
}
