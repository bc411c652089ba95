// Package publish uploads capture artifacts to S3-compatible object
// storage so a CI job can link reviewers straight to the diff images.
//
// For AWS leave Endpoint empty. For MinIO, Tigris or gofakes3 set
// Endpoint and UsePathStyle.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/roach88/twinshot/internal/engine"
)

// Config holds the settings for creating a Publisher.
type Config struct {
	// Bucket receives the artifacts. Required.
	Bucket string

	// Prefix is prepended to every object key, e.g. "ci/build-123".
	Prefix string

	// Endpoint is the S3 endpoint URL. Empty uses AWS.
	Endpoint string

	// Region defaults to "us-east-1".
	Region string

	// AccessKeyID and SecretAccessKey select static credentials. When
	// either is empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// PublicURL is the base URL objects are served from. Empty reports
	// s3://bucket/key locations instead.
	PublicURL string

	// UsePathStyle enables path-style addressing.
	UsePathStyle bool
}

// Publisher uploads artifacts under one bucket and prefix.
type Publisher struct {
	client    *s3.Client
	bucket    string
	prefix    string
	publicURL string
}

// Published holds the locations of one capture's uploaded artifacts.
type Published struct {
	Base string `json:"base"`
	Test string `json:"test"`
	Diff string `json:"diff"`
}

// New creates a Publisher from cfg.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("publish: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewFromS3Client(client, cfg.Bucket, cfg.Prefix, cfg.PublicURL), nil
}

// NewFromS3Client wraps an existing client.
func NewFromS3Client(client *s3.Client, bucket, prefix, publicURL string) *Publisher {
	return &Publisher{
		client:    client,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Key returns the object key for a file uploaded under scenario.
func (p *Publisher) Key(scenario, file string) string {
	return path.Join(p.prefix, scenario, filepath.Base(file))
}

// URL returns where the object at key can be found.
func (p *Publisher) URL(key string) string {
	if p.publicURL == "" {
		return "s3://" + p.bucket + "/" + key
	}
	return p.publicURL + "/" + key
}

// Upload stores the PNG at file under scenario and returns its location.
func (p *Publisher) Upload(ctx context.Context, scenario, file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("publish: read %s: %w", file, err)
	}

	key := p.Key(scenario, file)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("publish: put %q: %w", key, err)
	}
	return p.URL(key), nil
}

// PublishCapture uploads the base, test and diff artifacts of c.
func (p *Publisher) PublishCapture(ctx context.Context, scenario string, c engine.Comparison) (Published, error) {
	var out Published
	for _, a := range []struct {
		path string
		dst  *string
	}{
		{c.BasePath, &out.Base},
		{c.TestPath, &out.Test},
		{c.DiffPath, &out.Diff},
	} {
		loc, err := p.Upload(ctx, scenario, a.path)
		if err != nil {
			return Published{}, fmt.Errorf("capture %q: %w", c.Name, err)
		}
		*a.dst = loc
	}
	return out, nil
}
