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
	"codepush.sh/codepush/pkg/manifest"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/releaseutil"
)

// maxDiffSources caps how many prior releases get a diff archive against a
// new release.
const maxDiffSources = 5

// generateDiffs builds diff archives from recent prior releases up to the
// newly committed one and records them. Priors without a stored manifest or
// targeting a different binary population are skipped.
func generateDiffs(ctx context.Context, cfg *Configuration, appID, deploymentID string, committed *release.Package, newManifest manifest.PackageManifest, bundle []byte) error {
	history, err := cfg.Storage.GetPackageHistory(ctx, deploymentID)
	if err != nil {
		return err
	}
	// Newest first, excluding the release just committed.
	var priors []*release.Package
	for i := len(history) - 1; i >= 0 && len(priors) < maxDiffSources; i-- {
		prior := &history[i]
		if prior.ID == committed.ID || prior.PackageHash == committed.PackageHash {
			continue
		}
		if prior.ManifestBlobPath == "" {
			continue
		}
		if !releaseutil.RangesCompatible(prior.AppVersion, committed.AppVersion) {
			continue
		}
		priors = append(priors, prior)
	}

	for _, prior := range priors {
		if _, done := committed.DiffPackageMap[prior.PackageHash]; done {
			continue
		}
		serialized, err := cfg.Blobs.GetBlob(ctx, prior.ManifestBlobPath)
		if err != nil {
			cfg.log("reading manifest of %s failed: %v", prior.Label, err)
			continue
		}
		priorManifest, err := manifest.Deserialize(serialized)
		if err != nil {
			cfg.log("parsing manifest of %s failed: %v", prior.Label, err)
			continue
		}

		archive, err := manifest.BuildDiffArchive(bundle, manifest.ComputeDiff(priorManifest, newManifest))
		if err != nil {
			cfg.log("building diff from %s failed: %v", prior.Label, err)
			continue
		}

		diffPath := blob.DiffPath(appID, deploymentID, prior.PackageHash)
		if err := cfg.Blobs.AddBlob(ctx, diffPath, archive); err != nil {
			cfg.log("storing diff from %s failed: %v", prior.Label, err)
			continue
		}
		if err := cfg.Storage.AddPackageDiff(ctx, &release.PackageDiff{
			PackageID:         committed.ID,
			SourcePackageHash: prior.PackageHash,
			Size:              int64(len(archive)),
			BlobPath:          diffPath,
		}); err != nil {
			cfg.log("recording diff from %s failed: %v", prior.Label, err)
			continue
		}
		if committed.DiffPackageMap == nil {
			committed.DiffPackageMap = map[string]release.DiffInfo{}
		}
		committed.DiffPackageMap[prior.PackageHash] = release.DiffInfo{
			Size:     int64(len(archive)),
			BlobPath: diffPath,
		}
	}
	return nil
}
