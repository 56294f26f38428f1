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

package release

import (
	"codepush.sh/codepush/pkg/time"
)

// Account is an administrator identity. Accounts are created by the external
// auth collaborator; the core only ever attaches new linked providers.
type Account struct {
	ID              string    `json:"id,omitempty"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	LinkedProviders []string  `json:"linkedProviders,omitempty"`
	CreatedTime     time.Time `json:"createdTime"`
}

// AccessKeyMask replaces the secret token in listings.
const AccessKeyMask = "(hidden)"

// AccessKey authenticates a single account. Name is the secret bearer token
// and must be masked in every listing.
type AccessKey struct {
	ID           string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	FriendlyName string    `json:"friendlyName"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedTime  time.Time `json:"createdTime"`
	Expires      time.Time `json:"expires"`
	IsSession    bool      `json:"isSession,omitempty"`
}

// Expired reports whether the key is past its deadline at the given instant.
func (k *AccessKey) Expired(now time.Time) bool {
	return !k.Expires.IsZero() && !now.Before(k.Expires.Time)
}

// Masked returns a copy safe for listings.
func (k AccessKey) Masked() AccessKey {
	k.Name = AccessKeyMask
	return k
}
