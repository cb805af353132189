package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/platinummonkey/pawndoc/pkg/config"
	"github.com/sirupsen/logrus"
)

// ObjectPutter is the part of the S3 client the publisher uses
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// File is a plugin artifact to upload
type File struct {
	// Rel is the path relative to the SourceMod root, e.g. plugins/x.smx
	Rel string

	// Local is the file on disk
	Local string
}

// Request describes everything published for one plugin
type Request struct {
	Name string

	// Manifest is the rendered update manifest on disk
	Manifest string

	Files []File
}

// S3Publisher uploads update manifests and plugin files to a bucket laid
// out the way the Updater extension downloads them
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *logrus.Logger
}

// NewS3Publisher creates a publisher from the publish settings. Static
// credentials are used when both keys are set, otherwise the default AWS
// credential chain.
func NewS3Publisher(ctx context.Context, cfg config.S3Config, logger *logrus.Logger) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3PublisherWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3PublisherWithClient creates a publisher around an existing client
func NewS3PublisherWithClient(client ObjectPutter, bucket, prefix string, logger *logrus.Logger) *S3Publisher {
	if logger == nil {
		logger = logrus.New()
	}
	return &S3Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// ManifestKey returns the object key of a plugin's update manifest
func (p *S3Publisher) ManifestKey(name string) string {
	return p.key("update-" + name + ".txt")
}

// FileKey returns the object key of a plugin artifact
func (p *S3Publisher) FileKey(rel string) string {
	return p.key(rel)
}

func (p *S3Publisher) key(rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if p.prefix == "" {
		return rel
	}
	return p.prefix + "/" + rel
}

// Publish uploads every file of req and then the manifest. The manifest goes
// last so Updater clients never see a Latest version whose files are not in
// place yet. It stops at the first failure and returns the keys written so far.
func (p *S3Publisher) Publish(ctx context.Context, req *Request) ([]string, error) {
	if req == nil {
		return nil, fmt.Errorf("publish request cannot be nil")
	}

	var keys []string

	for _, f := range req.Files {
		key := p.FileKey(f.Rel)
		if err := p.upload(ctx, key, f.Local, contentType(f.Rel)); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}

	manifest := p.ManifestKey(req.Name)
	if err := p.upload(ctx, manifest, req.Manifest, "text/plain; charset=utf-8"); err != nil {
		return keys, err
	}
	keys = append(keys, manifest)

	p.logger.WithFields(logrus.Fields{
		"plugin": req.Name,
		"bucket": p.bucket,
		"keys":   len(keys),
	}).Info("Published plugin")

	return keys, nil
}

func (p *S3Publisher) upload(ctx context.Context, key, local, contentType string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUploadFailed, key, err)
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUploadFailed, key, err)
	}
	return nil
}

func contentType(rel string) string {
	switch path.Ext(rel) {
	case ".smx":
		return "application/octet-stream"
	default:
		return "text/plain; charset=utf-8"
	}
}
