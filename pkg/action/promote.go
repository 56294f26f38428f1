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

	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/releaseutil"
)

// Promote copies the current release of one deployment into another. No
// bytes move: the new package references the source's blobs.
type Promote struct {
	cfg *Configuration

	// Optional overrides. Nil fields inherit from the source release.
	AppVersion  *string
	Description *string
	IsDisabled  *bool
	IsMandatory *bool
	Rollout     *int

	ReleasedBy string
}

// NewPromote creates a new Promote object with the given configuration.
func NewPromote(cfg *Configuration) *Promote {
	return &Promote{cfg: cfg}
}

// Run promotes the current release of src into dst and returns the new
// package.
func (p *Promote) Run(ctx context.Context, accountID, appName, src, dst string) (*release.Package, error) {
	if p.Rollout != nil && (*p.Rollout < 0 || *p.Rollout > 100) {
		return nil, errs.ErrInvalid("rollout must be between 0 and 100")
	}
	if p.AppVersion != nil && !releaseutil.IsValidVersionField(*p.AppVersion) {
		return nil, errs.ErrInvalid("invalid app version %q", *p.AppVersion)
	}

	app, err := p.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return nil, err
	}
	srcDep, err := p.cfg.deploymentByName(ctx, app.ID, src)
	if err != nil {
		return nil, err
	}
	dstDep, err := p.cfg.deploymentByName(ctx, app.ID, dst)
	if err != nil {
		return nil, err
	}
	if srcDep.Package == nil {
		return nil, errs.ErrNotFound("deployment %s has no releases", src)
	}

	source := srcDep.Package
	pkg := &release.Package{
		AppVersion:         source.AppVersion,
		Description:        source.Description,
		IsDisabled:         source.IsDisabled,
		IsMandatory:        source.IsMandatory,
		Rollout:            p.Rollout,
		Size:               source.Size,
		PackageHash:        source.PackageHash,
		BlobPath:           source.BlobPath,
		ManifestBlobPath:   source.ManifestBlobPath,
		ReleaseMethod:      release.Promote,
		OriginalLabel:      source.Label,
		OriginalDeployment: src,
		ReleasedBy:         p.ReleasedBy,
		UploadTime:         Timestamper(),
	}
	if p.AppVersion != nil {
		pkg.AppVersion = *p.AppVersion
	}
	if p.Description != nil {
		pkg.Description = *p.Description
	}
	if p.IsDisabled != nil {
		pkg.IsDisabled = *p.IsDisabled
	}
	if p.IsMandatory != nil {
		pkg.IsMandatory = *p.IsMandatory
	}

	committed, err := p.cfg.Storage.CommitPackage(ctx, dstDep.ID, pkg, storageChecksForUpload)
	if err != nil {
		return nil, err
	}
	if err := p.cfg.attachURLs(ctx, committed); err != nil {
		return nil, err
	}
	return committed, nil
}
