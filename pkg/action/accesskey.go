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

package action

import (
	"context"

	"codepush.sh/codepush/pkg/access"
	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/releaseutil"
	"codepush.sh/codepush/pkg/time"
)

// defaultAccessKeyTTL applies when a key is created without an expiry.
const defaultAccessKeyTTL = 60 * time.Day

// CreateAccessKey mints a bearer token for the calling account. The secret
// is only ever returned from this call.
type CreateAccessKey struct {
	cfg *Configuration

	FriendlyName string
	CreatedBy    string
	// TTL bounds the key's life. Zero applies the default sixty days.
	TTL       time.Duration
	IsSession bool
}

// NewCreateAccessKey creates a new CreateAccessKey object with the given
// configuration.
func NewCreateAccessKey(cfg *Configuration) *CreateAccessKey {
	return &CreateAccessKey{cfg: cfg}
}

// Run creates the key and returns it unmasked.
func (c *CreateAccessKey) Run(ctx context.Context, accountID string) (*release.AccessKey, error) {
	if c.FriendlyName == "" {
		return nil, errs.ErrInvalid("friendlyName is required")
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultAccessKeyTTL
	}
	now := Timestamper()
	key := &release.AccessKey{
		Name:         releaseutil.GenerateAccessKey(),
		FriendlyName: c.FriendlyName,
		CreatedBy:    c.CreatedBy,
		CreatedTime:  now,
		Expires:      now.Add(ttl),
		IsSession:    c.IsSession,
	}
	if err := c.cfg.Storage.AddAccessKey(ctx, accountID, key); err != nil {
		return nil, err
	}
	return key, nil
}

// ListAccessKeys lists the caller's keys with secrets masked.
type ListAccessKeys struct {
	cfg *Configuration
}

// NewListAccessKeys creates a new ListAccessKeys object with the given
// configuration.
func NewListAccessKeys(cfg *Configuration) *ListAccessKeys {
	return &ListAccessKeys{cfg: cfg}
}

// Run returns the caller's access keys.
func (l *ListAccessKeys) Run(ctx context.Context, accountID string) ([]release.AccessKey, error) {
	keys, err := l.cfg.Storage.GetAccessKeys(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return access.MaskKeys(keys), nil
}

// PatchAccessKey renames a key or moves its expiry.
type PatchAccessKey struct {
	cfg *Configuration

	FriendlyName *string
	TTL          *time.Duration
}

// NewPatchAccessKey creates a new PatchAccessKey object with the given
// configuration.
func NewPatchAccessKey(cfg *Configuration) *PatchAccessKey {
	return &PatchAccessKey{cfg: cfg}
}

// Run patches the key identified by its current friendly name and returns
// it masked.
func (p *PatchAccessKey) Run(ctx context.Context, accountID, friendlyName string) (*release.AccessKey, error) {
	if p.FriendlyName == nil && p.TTL == nil {
		return nil, errs.ErrInvalid("no updates provided")
	}
	key, err := p.cfg.findKey(ctx, accountID, friendlyName)
	if err != nil {
		return nil, err
	}
	if p.FriendlyName != nil {
		if *p.FriendlyName == "" {
			return nil, errs.ErrInvalid("friendlyName cannot be empty")
		}
		key.FriendlyName = *p.FriendlyName
	}
	if p.TTL != nil {
		key.Expires = Timestamper().Add(*p.TTL)
	}
	if err := p.cfg.Storage.UpdateAccessKey(ctx, accountID, key); err != nil {
		return nil, err
	}
	masked := key.Masked()
	return &masked, nil
}

// RemoveAccessKey revokes a key by friendly name.
type RemoveAccessKey struct {
	cfg *Configuration
}

// NewRemoveAccessKey creates a new RemoveAccessKey object with the given
// configuration.
func NewRemoveAccessKey(cfg *Configuration) *RemoveAccessKey {
	return &RemoveAccessKey{cfg: cfg}
}

// Run removes the key identified by its friendly name.
func (r *RemoveAccessKey) Run(ctx context.Context, accountID, friendlyName string) error {
	key, err := r.cfg.findKey(ctx, accountID, friendlyName)
	if err != nil {
		return err
	}
	return r.cfg.Storage.RemoveAccessKey(ctx, accountID, key.ID)
}

func (cfg *Configuration) findKey(ctx context.Context, accountID, friendlyName string) (*release.AccessKey, error) {
	keys, err := cfg.Storage.GetAccessKeys(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		if keys[i].FriendlyName == friendlyName {
			return &keys[i], nil
		}
	}
	return nil, errs.ErrNotFound("access key %s not found", friendlyName)
}
