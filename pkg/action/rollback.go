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
)

// Rollback re-releases an earlier package of the same deployment. Like
// promotion it copies blob references and never moves bytes.
type Rollback struct {
	cfg *Configuration

	// TargetLabel selects the release to roll back to. Empty picks the
	// second-most-recent release.
	TargetLabel string
	ReleasedBy  string
}

// NewRollback creates a new Rollback object with the given configuration.
func NewRollback(cfg *Configuration) *Rollback {
	return &Rollback{cfg: cfg}
}

// Run appends a rollback release to the named deployment and returns it.
func (r *Rollback) Run(ctx context.Context, accountID, appName, deploymentName string) (*release.Package, error) {
	app, err := r.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return nil, err
	}
	dep, err := r.cfg.deploymentByName(ctx, app.ID, deploymentName)
	if err != nil {
		return nil, err
	}

	history, err := r.cfg.Storage.GetPackageHistory(ctx, dep.ID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errs.ErrNotFound("deployment %s has no releases", deploymentName)
	}
	current := &history[len(history)-1]

	var target *release.Package
	if r.TargetLabel == "" {
		if len(history) < 2 {
			return nil, errs.ErrNotFound("deployment %s has no prior release to roll back to", deploymentName)
		}
		target = &history[len(history)-2]
	} else {
		if r.TargetLabel == current.Label {
			return nil, errs.ErrConflict("deployment is already running %s", r.TargetLabel)
		}
		for i := range history {
			if history[i].Label == r.TargetLabel {
				target = &history[i]
				break
			}
		}
		if target == nil {
			return nil, errs.ErrNotFound("release %s not found", r.TargetLabel)
		}
	}

	if target.AppVersion != current.AppVersion {
		return nil, errs.ErrConflict("cannot roll back to a different binary version (%s vs %s)", target.AppVersion, current.AppVersion)
	}

	pkg := &release.Package{
		AppVersion:       target.AppVersion,
		Description:      target.Description,
		IsMandatory:      target.IsMandatory,
		Size:             target.Size,
		PackageHash:      target.PackageHash,
		BlobPath:         target.BlobPath,
		ManifestBlobPath: target.ManifestBlobPath,
		ReleaseMethod:    release.Rollback,
		OriginalLabel:    target.Label,
		ReleasedBy:       r.ReleasedBy,
		UploadTime:       Timestamper(),
	}
	committed, err := r.cfg.Storage.CommitPackage(ctx, dep.ID, pkg, storageChecksForRollback)
	if err != nil {
		return nil, err
	}
	if err := r.cfg.attachURLs(ctx, committed); err != nil {
		return nil, err
	}
	return committed, nil
}
