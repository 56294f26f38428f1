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

	"codepush.sh/codepush/pkg/blob"
	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/manifest"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/releaseutil"
)

// Release performs the upload operation: it hashes an uploaded bundle,
// stores the bundle and its manifest, and commits a new package to a
// deployment's history.
type Release struct {
	cfg *Configuration

	AppVersion  string
	Description string
	IsDisabled  bool
	IsMandatory bool
	// Rollout is the initial rollout percentage, nil for a full rollout.
	Rollout    *int
	ReleasedBy string
}

// NewRelease creates a new Release object with the given configuration.
func NewRelease(cfg *Configuration) *Release {
	return &Release{cfg: cfg}
}

// Run uploads bundle as a new release of the named deployment.
func (r *Release) Run(ctx context.Context, accountID, appName, deploymentName string, bundle []byte) (*release.Package, error) {
	if len(bundle) == 0 {
		return nil, errs.ErrInvalid("a package file is required")
	}
	if !releaseutil.IsValidVersionField(r.AppVersion) {
		return nil, errs.ErrInvalid("invalid app version %q", r.AppVersion)
	}
	if r.Rollout != nil && (*r.Rollout < 0 || *r.Rollout > 100) {
		return nil, errs.ErrInvalid("rollout must be between 0 and 100")
	}

	app, err := r.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return nil, err
	}
	dep, err := r.cfg.deploymentByName(ctx, app.ID, deploymentName)
	if err != nil {
		return nil, err
	}

	// Fail before moving any bytes if the previous rollout is still open.
	// The commit below re-checks inside the transaction.
	if dep.Package != nil && !dep.Package.IsDisabled && releaseutil.IsUnfinishedRollout(dep.Package.Rollout) {
		return nil, errs.ErrConflict("please update the previous rollout or promote a new release")
	}

	m, err := manifest.GenerateFromZip(bundle)
	if err != nil {
		return nil, errs.Wrap(err, errs.Invalid, "reading uploaded bundle")
	}
	hash, err := m.Hash()
	if err != nil {
		return nil, errs.Wrap(err, errs.Internal, "hashing bundle")
	}
	if dep.Package != nil && dep.Package.PackageHash == hash && dep.Package.AppVersion == r.AppVersion {
		return nil, errs.ErrConflict("the uploaded package was already released")
	}

	packageID := releaseutil.NewID()
	blobPath := blob.PackagePath(app.ID, dep.ID, packageID)
	manifestPath := blob.ManifestPath(app.ID, dep.ID, packageID)

	if err := r.cfg.Blobs.AddBlob(ctx, blobPath, bundle); err != nil {
		return nil, err
	}
	serialized, err := m.Serialize()
	if err != nil {
		return nil, errs.Wrap(err, errs.Internal, "serializing manifest")
	}
	if err := r.cfg.Blobs.AddBlob(ctx, manifestPath, serialized); err != nil {
		r.cleanup(ctx, blobPath)
		return nil, err
	}

	pkg := &release.Package{
		ID:               packageID,
		AppVersion:       r.AppVersion,
		Description:      r.Description,
		IsDisabled:       r.IsDisabled,
		IsMandatory:      r.IsMandatory,
		Rollout:          r.Rollout,
		Size:             int64(len(bundle)),
		PackageHash:      hash,
		BlobPath:         blobPath,
		ManifestBlobPath: manifestPath,
		ReleaseMethod:    release.Upload,
		ReleasedBy:       r.ReleasedBy,
		UploadTime:       Timestamper(),
	}
	committed, err := r.cfg.Storage.CommitPackage(ctx, dep.ID, pkg, storageChecksForUpload)
	if err != nil {
		r.cleanup(ctx, blobPath, manifestPath)
		return nil, err
	}

	if err := generateDiffs(ctx, r.cfg, app.ID, dep.ID, committed, m, bundle); err != nil {
		// Diffs are an optimization. Clients fall back to full bundles.
		r.cfg.log("diff generation for %s %s failed: %v", deploymentName, committed.Label, err)
	}

	if err := r.cfg.attachURLs(ctx, committed); err != nil {
		return nil, err
	}
	return committed, nil
}

func (r *Release) cleanup(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := r.cfg.Blobs.RemoveBlob(ctx, key); err != nil {
			r.cfg.log("removing orphaned blob %s failed: %v", key, err)
		}
	}
}
