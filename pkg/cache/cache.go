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

// Package cache provides the small TTL cache used for signed blob URLs and
// other derivable values. Entries may vanish at any time; every user must
// be able to recompute what it stores.
package cache

import (
	"context"
	"time"
)

// Cache is a string key/value cache with per-entry TTL.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key for the given duration.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes entries. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
