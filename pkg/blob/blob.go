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

// Package blob provides content storage for bundle archives, manifests,
// and diff archives on top of an object store, plus short-lived signed
// download URLs with a process-local cache.
package blob

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"

	"codepush.sh/codepush/pkg/cache"
	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/objstore"
)

const (
	// signedURLTTL is how long a handed-out download URL stays valid.
	signedURLTTL = time.Hour
	// urlCacheTTL keeps cached URLs comfortably shorter-lived than the
	// URLs themselves.
	urlCacheTTL = 30 * time.Minute
	// deleteBatchSize caps one delete call when clearing a prefix.
	deleteBatchSize = 1000

	urlCachePrefix = "bloburl:"
)

// Service stores and serves blobs by key.
type Service struct {
	store objstore.ObjectStore
	urls  cache.Cache
	Log   func(string, ...interface{})
}

// NewService wires a blob service. urls may be nil, disabling URL caching.
func NewService(store objstore.ObjectStore, urls cache.Cache) *Service {
	return &Service{
		store: store,
		urls:  urls,
		Log:   func(string, ...interface{}) {},
	}
}

// AddBlob writes data under key with its size recorded as object metadata.
func (s *Service) AddBlob(ctx context.Context, key string, data []byte) error {
	err := s.store.Put(ctx, key, data, map[string]string{
		"size": strconv.Itoa(len(data)),
	})
	if err != nil {
		return errs.Wrap(err, errs.ConnectionFailed, "adding blob %s", key)
	}
	return nil
}

// GetBlob reads a blob's bytes back.
func (s *Service) GetBlob(ctx context.Context, key string) ([]byte, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, err
		}
		return nil, errs.Wrap(err, errs.ConnectionFailed, "getting blob %s", key)
	}
	return data, nil
}

// GetBlobURL returns a signed download URL for key. URLs are valid for one
// hour and cached for thirty minutes, so concurrent update checks against
// the same release sign once.
func (s *Service) GetBlobURL(ctx context.Context, key string) (string, error) {
	cacheKey := urlCachePrefix + key
	if s.urls != nil {
		if url, ok, err := s.urls.Get(ctx, cacheKey); err == nil && ok {
			return url, nil
		}
	}

	url, err := s.store.SignURL(ctx, key, signedURLTTL)
	if err != nil {
		if errs.IsNotFound(err) {
			return "", err
		}
		return "", errs.Wrap(err, errs.ConnectionFailed, "signing url for %s", key)
	}

	if s.urls != nil {
		if err := s.urls.Set(ctx, cacheKey, url, urlCacheTTL); err != nil {
			s.Log("caching signed url for %s failed: %v", key, err)
		}
	}
	return url, nil
}

// MoveBlob copies src to dst and then removes src. Once the destination
// write succeeds the move is considered done; the source delete is
// best-effort and retried once.
func (s *Service) MoveBlob(ctx context.Context, src, dst string) error {
	data, err := s.store.Get(ctx, src)
	if err != nil {
		if errs.IsNotFound(err) {
			return err
		}
		return errs.Wrap(err, errs.ConnectionFailed, "reading blob %s for move", src)
	}
	if err := s.AddBlob(ctx, dst, data); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, src); err != nil {
		if err = s.store.Delete(ctx, src); err != nil {
			s.Log("orphaned blob %s after move to %s: %v", src, dst, err)
		}
	}
	s.invalidate(ctx, src)
	return nil
}

// RemoveBlob deletes a single blob and drops its cached URL.
func (s *Service) RemoveBlob(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return errs.Wrap(err, errs.ConnectionFailed, "removing blob %s", key)
	}
	s.invalidate(ctx, key)
	return nil
}

// DeletePath removes every blob under prefix in bounded batches. Partial
// failures are aggregated; surviving keys can be retried by calling again.
func (s *Service) DeletePath(ctx context.Context, prefix string) error {
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return errs.Wrap(err, errs.ConnectionFailed, "listing %s for delete", prefix)
	}

	var result *multierror.Error
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]
		if err := s.store.Delete(ctx, batch...); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		s.invalidate(ctx, batch...)
	}
	if err := result.ErrorOrNil(); err != nil {
		return errs.Wrap(err, errs.ConnectionFailed, "deleting path %s", prefix)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.urls == nil {
		return
	}
	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = urlCachePrefix + key
	}
	if err := s.urls.Delete(ctx, cacheKeys...); err != nil {
		s.Log("dropping cached urls failed: %v", err)
	}
}
