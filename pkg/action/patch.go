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

// UpdateRelease patches the metadata of an existing release. It never
// produces a new label or blob.
type UpdateRelease struct {
	cfg *Configuration

	// Label selects the release to patch. Empty patches the latest.
	Label string

	AppVersion  *string
	Description *string
	IsDisabled  *bool
	IsMandatory *bool
	Rollout     *int
}

// NewUpdateRelease creates a new UpdateRelease object with the given
// configuration.
func NewUpdateRelease(cfg *Configuration) *UpdateRelease {
	return &UpdateRelease{cfg: cfg}
}

// Run applies the patch and returns the updated package.
func (u *UpdateRelease) Run(ctx context.Context, accountID, appName, deploymentName string) (*release.Package, error) {
	if u.AppVersion == nil && u.Description == nil && u.IsDisabled == nil && u.IsMandatory == nil && u.Rollout == nil {
		return nil, errs.ErrInvalid("no updates provided")
	}
	if u.AppVersion != nil && !releaseutil.IsValidVersionField(*u.AppVersion) {
		return nil, errs.ErrInvalid("invalid app version %q", *u.AppVersion)
	}

	app, err := u.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return nil, err
	}
	dep, err := u.cfg.deploymentByName(ctx, app.ID, deploymentName)
	if err != nil {
		return nil, err
	}
	history, err := u.cfg.Storage.GetPackageHistory(ctx, dep.ID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errs.ErrNotFound("deployment %s has no releases", deploymentName)
	}

	var pkg *release.Package
	if u.Label == "" {
		pkg = &history[len(history)-1]
	} else {
		for i := range history {
			if history[i].Label == u.Label {
				pkg = &history[i]
				break
			}
		}
		if pkg == nil {
			return nil, errs.ErrNotFound("release %s not found", u.Label)
		}
	}

	if u.Rollout != nil {
		if *u.Rollout < 0 || *u.Rollout > 100 {
			return nil, errs.ErrInvalid("rollout must be between 0 and 100")
		}
		// A finished rollout cannot reopen, and a rollout only widens:
		// shrinking would strand devices already serving the release.
		if !releaseutil.IsUnfinishedRollout(pkg.Rollout) {
			return nil, errs.ErrConflict("release %s is already fully rolled out", pkg.Label)
		}
		if *u.Rollout <= *pkg.Rollout {
			return nil, errs.ErrConflict("rollout can only increase (currently %d)", *pkg.Rollout)
		}
		pkg.Rollout = u.Rollout
	}
	if u.AppVersion != nil {
		pkg.AppVersion = *u.AppVersion
	}
	if u.Description != nil {
		pkg.Description = *u.Description
	}
	if u.IsDisabled != nil {
		pkg.IsDisabled = *u.IsDisabled
	}
	if u.IsMandatory != nil {
		pkg.IsMandatory = *u.IsMandatory
	}

	if err := u.cfg.Storage.UpdatePackage(ctx, pkg); err != nil {
		return nil, err
	}
	if err := u.cfg.attachURLs(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}
