/*
Copyright The CodePush Server Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package s3 implements the object store over any S3-compatible service.
// It is exercised against AWS S3 and MinIO.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/objstore"
)

var _ objstore.ObjectStore = (*Store)(nil)

// DriverName is the string name of this object store.
const DriverName = "S3"

// deleteBatchSize is the S3 DeleteObjects limit.
const deleteBatchSize = 1000

// Config selects the bucket and, for non-AWS endpoints, the static
// credentials and endpoint URL to use.
type Config struct {
	Bucket string
	Region string

	// EndpointURL points at an S3-compatible service such as MinIO;
	// empty means AWS with the default credential chain.
	EndpointURL string
	AccessKeyID string
	SecretKey   string

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible servers.
	UsePathStyle bool
}

// Store is the S3 object store implementation.
type Store struct {
	bucket  string
	client  *s3.Client
	presign *s3.PresignClient
}

// New connects an S3 object store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var client *s3.Client
	if cfg.EndpointURL != "" {
		client = s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")
			o.UsePathStyle = cfg.UsePathStyle
		})
	} else {
		awscfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, errs.Wrap(err, errs.Internal, "loading aws sdk configuration")
		}
		client = s3.NewFromConfig(awscfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &Store{
		bucket:  cfg.Bucket,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

// Name returns the name of the driver.
func (s *Store) Name() string { return DriverName }

func (s *Store) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: metadata,
	})
	if err != nil {
		return classify(err, "putting object %s", key)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(err, "getting object %s", key)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errs.Wrap(err, errs.ConnectionFailed, "reading object %s", key)
	}
	return data, nil
}

func (s *Store) Head(ctx context.Context, key string) (*objstore.Metadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(err, "heading object %s", key)
	}
	md := &objstore.Metadata{Custom: out.Metadata}
	if out.ContentLength != nil {
		md.Size = *out.ContentLength
	}
	if out.ETag != nil {
		md.ETag = strings.Trim(*out.ETag, `"`)
	}
	return md, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "listing prefix %s", prefix)
		}
		for _, obj := range page.Contents {
			keys = append(keys, *obj.Key)
		}
	}
	return keys, nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			batch = append(batch, types.ObjectIdentifier{Key: aws.String(key)})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: batch,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return classify(err, "deleting %d objects", end-start)
		}
	}
	return nil
}

func (s *Store) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", classify(err, "presigning %s", key)
	}
	return req.URL, nil
}

// classify maps SDK failures onto the shared error kinds. Missing keys are
// NotFound; credential problems are Fatal; everything else is treated as a
// transient connection failure.
func classify(err error, format string, args ...interface{}) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return errs.Wrap(err, errs.NotFound, format, args...)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return errs.Wrap(err, errs.NotFound, format, args...)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errs.Wrap(err, errs.Internal, format, args...)
		}
	}
	return errs.Wrap(err, errs.ConnectionFailed, format, args...)
}
