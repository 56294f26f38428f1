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

// Package objstore defines the byte-level object store contract the blob
// service builds on. Implementations classify failures with the shared
// error kinds: a missing key is NotFound, retryable I/O is
// ConnectionFailed, anything else is Internal.
package objstore

import (
	"context"
	"time"
)

// Metadata describes a stored object without its bytes.
type Metadata struct {
	Size   int64
	ETag   string
	Custom map[string]string
}

// Putter is the interface that wraps the Put method.
type Putter interface {
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
}

// Getter is the interface that wraps the read methods.
//
// Get returns the object's bytes or a NotFound error. Head returns only
// metadata. List returns every key under the given prefix.
type Getter interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Head(ctx context.Context, key string) (*Metadata, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Deleter is the interface that wraps the Delete method. Deleting a key
// that does not exist is not an error.
type Deleter interface {
	Delete(ctx context.Context, keys ...string) error
}

// URLSigner is the interface that wraps the SignURL method, producing a
// pre-authorized download URL valid for the given duration.
type URLSigner interface {
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ObjectStore is the composed contract consumed by the blob service.
type ObjectStore interface {
	Putter
	Getter
	Deleter
	URLSigner
	Name() string
}
