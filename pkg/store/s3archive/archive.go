package s3archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultRegion = "us-east-1"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// PutObjectAPI is the subset of the S3 client the archive needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Settings struct {
	Bucket string
	Prefix string
	Region string
}

// Archive stores report JSON documents under <prefix>/<source>/<fingerprint>.json.
type Archive struct {
	client PutObjectAPI
	bucket string
	prefix string
}

func NewArchive(client PutObjectAPI, bucket, prefix string) (*Archive, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Archive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// New builds an archive backed by the default AWS credential chain.
func New(ctx context.Context, settings Settings) (*Archive, error) {
	opts := []func(*config.LoadOptions) error{config.WithDefaultRegion(DefaultRegion)}
	if settings.Region != "" {
		opts = append(opts, config.WithRegion(settings.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return NewArchive(s3.NewFromConfig(cfg), settings.Bucket, settings.Prefix)
}

func (a *Archive) Key(sourceReference, fingerprint string) string {
	source := unsafeKeyChars.ReplaceAllString(sourceReference, "_")
	if source == "" {
		source = "unnamed"
	}
	return path.Join(a.prefix, source, fingerprint+".json")
}

// Put uploads payload and returns the object key.
func (a *Archive) Put(ctx context.Context, sourceReference, fingerprint string, payload []byte) (string, error) {
	key := a.Key(sourceReference, fingerprint)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"source":      sourceReference,
			"fingerprint": fingerprint,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return key, nil
}
