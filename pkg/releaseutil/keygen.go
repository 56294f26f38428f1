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

package releaseutil

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// GenerateKey returns prefix followed by 32 hex characters from a
// cryptographic RNG.
func GenerateKey(prefix string) string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// nothing sensible can be served in that state.
		panic(err)
	}
	return prefix + hex.EncodeToString(buf)
}

// GenerateDeploymentKey returns a fresh public deployment key.
func GenerateDeploymentKey() string {
	return GenerateKey("dk_")
}

// GenerateAccessKey returns a fresh secret access-key token.
func GenerateAccessKey() string {
	return GenerateKey("ck_")
}

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}
