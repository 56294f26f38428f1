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

package cache

import (
	"context"
	"time"

	"github.com/bluele/gcache"
)

// defaultInMemorySize bounds the LRU so a long-running server cannot grow
// without limit; one entry per live blob path is far below this.
const defaultInMemorySize = 8192

type inMemory struct {
	gc gcache.Cache
}

// NewInMemory returns a process-local LRU cache with per-entry TTL,
// safe for concurrent use.
func NewInMemory() Cache {
	return &inMemory{
		gc: gcache.New(defaultInMemorySize).LRU().Build(),
	}
}

func (c *inMemory) Get(_ context.Context, key string) (string, bool, error) {
	v, err := c.gc.Get(key)
	if err != nil {
		// gcache reports both missing and expired keys as KeyNotFoundError.
		return "", false, nil
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (c *inMemory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return c.gc.Set(key, value)
	}
	return c.gc.SetWithExpire(key, value, ttl)
}

func (c *inMemory) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.gc.Remove(key)
	}
	return nil
}
