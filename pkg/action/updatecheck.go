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

// UpdateQuery is what a device presents when asking for an update.
type UpdateQuery struct {
	DeploymentKey  string
	AppVersion     string
	PackageHash    string
	Label          string
	ClientUniqueID string
	// IsCompanion marks the CodePush companion app, which hosts arbitrary
	// bundles and therefore skips binary-version matching.
	IsCompanion bool
}

// UpdateCheck resolves what, if anything, a device should install. This is
// the hot path every client polls.
type UpdateCheck struct {
	cfg *Configuration
}

// NewUpdateCheck creates a new UpdateCheck object with the given
// configuration.
func NewUpdateCheck(cfg *Configuration) *UpdateCheck {
	return &UpdateCheck{cfg: cfg}
}

// Run resolves the query. An unknown deployment key is NotFound; transient
// storage failures degrade to a no-update answer because client SDKs retry
// aggressively on non-200s.
func (u *UpdateCheck) Run(ctx context.Context, q UpdateQuery) (*release.UpdateInfo, error) {
	if q.DeploymentKey == "" || q.AppVersion == "" {
		return nil, errs.ErrInvalid("deploymentKey and appVersion are required")
	}

	info, err := u.cfg.Storage.GetDeploymentInfo(ctx, q.DeploymentKey)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, err
		}
		return u.safeResponse(q, err), nil
	}
	packages, err := u.cfg.Storage.GetPackageHistory(ctx, info.DeploymentID)
	if err != nil {
		return u.safeResponse(q, err), nil
	}
	if len(packages) == 0 {
		return &release.UpdateInfo{
			IsAvailable:            false,
			ShouldRunBinaryVersion: true,
			AppVersion:             q.AppVersion,
		}, nil
	}

	history := make([]*release.Package, len(packages))
	for i := range packages {
		history[i] = &packages[i]
	}
	releaseutil.SortByUploadTime(history)

	normalized := releaseutil.NormalizeVersion(q.AppVersion)
	prerelease := releaseutil.HasPrerelease(normalized)

	var latestEnabled, latestSatisfying *release.Package
	foundRequest := false
	forceMandatory := false
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if !foundRequest {
			foundRequest = (q.Label == "" && q.PackageHash == "") ||
				(q.Label != "" && entry.Label == q.Label) ||
				(q.Label == "" && entry.PackageHash == q.PackageHash)
		}
		if entry.IsDisabled {
			continue
		}
		if latestEnabled == nil {
			latestEnabled = entry
		}
		if !q.IsCompanion && !prerelease && !releaseutil.Satisfies(normalized, entry.AppVersion) {
			continue
		}
		if latestSatisfying == nil {
			latestSatisfying = entry
		}
		if foundRequest {
			break
		}
		if entry.IsMandatory {
			forceMandatory = true
			break
		}
	}

	if latestEnabled == nil || latestSatisfying == nil {
		return &release.UpdateInfo{
			IsAvailable:            false,
			ShouldRunBinaryVersion: true,
			AppVersion:             q.AppVersion,
		}, nil
	}

	if latestSatisfying.PackageHash == q.PackageHash && q.PackageHash != "" {
		// Up to date: the bundle shipped in the binary (or last installed)
		// is the one to run.
		out := &release.UpdateInfo{
			IsAvailable:            false,
			ShouldRunBinaryVersion: true,
			AppVersion:             q.AppVersion,
		}
		if releaseutil.GreaterThanRange(normalized, latestEnabled.AppVersion) {
			out.AppVersion = latestEnabled.AppVersion
		} else if !releaseutil.Satisfies(normalized, latestEnabled.AppVersion) {
			out.UpdateAppVersion = true
			out.AppVersion = latestEnabled.AppVersion
		}
		return out, nil
	}

	downloadPath := latestSatisfying.BlobPath
	packageSize := latestSatisfying.Size
	if q.PackageHash != "" {
		if diff, ok := latestSatisfying.DiffPackageMap[q.PackageHash]; ok {
			downloadPath = diff.BlobPath
			packageSize = diff.Size
		}
	}

	if releaseutil.IsUnfinishedRollout(latestSatisfying.Rollout) {
		if q.ClientUniqueID == "" ||
			!releaseutil.IsSelectedForRollout(q.ClientUniqueID, latestSatisfying.PackageHash, *latestSatisfying.Rollout) {
			return &release.UpdateInfo{IsAvailable: false, AppVersion: q.AppVersion}, nil
		}
	}

	downloadURL, err := u.cfg.Blobs.GetBlobURL(ctx, downloadPath)
	if err != nil {
		return u.safeResponse(q, err), nil
	}

	return &release.UpdateInfo{
		IsAvailable: true,
		IsMandatory: forceMandatory || latestSatisfying.IsMandatory,
		AppVersion:  q.AppVersion,
		PackageHash: latestSatisfying.PackageHash,
		Label:       latestSatisfying.Label,
		PackageSize: packageSize,
		Description: latestSatisfying.Description,
		DownloadURL: downloadURL,
	}, nil
}

func (u *UpdateCheck) safeResponse(q UpdateQuery, err error) *release.UpdateInfo {
	u.cfg.log("update check for %s degraded: %v", q.DeploymentKey, err)
	return &release.UpdateInfo{IsAvailable: false, AppVersion: q.AppVersion}
}
