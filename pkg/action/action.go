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

// Package action holds every operation the server performs on behalf of a
// caller: releasing, promoting and rolling back packages, resolving update
// checks, recording client metrics, and managing apps, deployments, and
// access keys. Each operation is a struct configured by the caller and
// executed with Run.
package action

import (
	"context"

	"codepush.sh/codepush/pkg/access"
	"codepush.sh/codepush/pkg/blob"
	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/storage"
	"codepush.sh/codepush/pkg/time"
)

// Timestamper is a function capable of producing a timestamp.
//
// By default, this is time.Now. It can be overridden for testing so that
// upload times are predictable.
var Timestamper = time.Now

var (
	// storageChecksForUpload guards uploads and promotions: the previous
	// rollout must be finished and the content must be new.
	storageChecksForUpload = storage.CommitChecks{
		EnsureNoUnfinishedRollout: true,
		EnsureUniqueHash:          true,
	}
	// storageChecksForRollback skips both checks. A rollback deliberately
	// re-releases an old hash, and its preconditions are validated against
	// explicit labels before the commit.
	storageChecksForRollback = storage.CommitChecks{}
)

// Configuration injects the dependencies that all actions share.
type Configuration struct {
	// Storage is the relational store holding accounts, apps, deployments,
	// and package histories.
	Storage storage.Storage

	// Blobs stores bundle archives, manifests, and diff archives.
	Blobs *blob.Service

	Log func(string, ...interface{})
}

func (cfg *Configuration) log(format string, v ...interface{}) {
	if cfg.Log != nil {
		cfg.Log(format, v...)
	}
}

// appByName finds an app the account can see by its name.
func (cfg *Configuration) appByName(ctx context.Context, accountID, appName string) (*release.App, error) {
	apps, err := cfg.Storage.GetApps(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].Name == appName {
			return &apps[i], nil
		}
	}
	return nil, errs.ErrNotFound("app %s not found", appName)
}

// requireApp resolves an app by name and checks the caller's permission.
func (cfg *Configuration) requireApp(ctx context.Context, accountID, appName string, required release.Permission) (*release.App, error) {
	app, err := cfg.appByName(ctx, accountID, appName)
	if err != nil {
		return nil, err
	}
	if err := access.Require(app, accountID, required); err != nil {
		return nil, err
	}
	return app, nil
}

// deploymentByName finds a deployment of an app by its name.
func (cfg *Configuration) deploymentByName(ctx context.Context, appID, name string) (*release.Deployment, error) {
	deployments, err := cfg.Storage.GetDeployments(ctx, appID)
	if err != nil {
		return nil, err
	}
	for i := range deployments {
		if deployments[i].Name == name {
			return &deployments[i], nil
		}
	}
	return nil, errs.ErrNotFound("deployment %s not found", name)
}

// attachURLs fills the signed download URLs of a package and its diff map.
// URL failures on the diff map are logged, not fatal: a client can always
// fall back to the full bundle.
func (cfg *Configuration) attachURLs(ctx context.Context, pkg *release.Package) error {
	if pkg == nil {
		return nil
	}
	if pkg.BlobPath != "" {
		url, err := cfg.Blobs.GetBlobURL(ctx, pkg.BlobPath)
		if err != nil {
			return err
		}
		pkg.BlobURL = url
	}
	if pkg.ManifestBlobPath != "" {
		url, err := cfg.Blobs.GetBlobURL(ctx, pkg.ManifestBlobPath)
		if err != nil {
			if !errs.IsNotFound(err) {
				return err
			}
		} else {
			pkg.ManifestBlobURL = url
		}
	}
	for hash, diff := range pkg.DiffPackageMap {
		url, err := cfg.Blobs.GetBlobURL(ctx, diff.BlobPath)
		if err != nil {
			cfg.log("signing diff url for %s failed: %v", diff.BlobPath, err)
			delete(pkg.DiffPackageMap, hash)
			continue
		}
		diff.URL = url
		pkg.DiffPackageMap[hash] = diff
	}
	return nil
}
