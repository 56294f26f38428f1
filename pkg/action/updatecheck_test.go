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
	"fmt"
	"testing"

	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/releaseutil"
	"codepush.sh/codepush/pkg/storage"
)

// deploymentKey resolves the public key of one of the app's deployments.
func (f *fixture) deploymentKey(appName, depName string) string {
	f.t.Helper()
	ctx := context.Background()
	app, err := f.cfg.appByName(ctx, f.owner.ID, appName)
	if err != nil {
		f.t.Fatal(err)
	}
	dep, err := f.cfg.deploymentByName(ctx, app.ID, depName)
	if err != nil {
		f.t.Fatal(err)
	}
	return dep.Key
}

func (f *fixture) check(q UpdateQuery) *release.UpdateInfo {
	f.t.Helper()
	info, err := NewUpdateCheck(f.cfg).Run(context.Background(), q)
	if err != nil {
		f.t.Fatal(err)
	}
	return info
}

func TestUpdateCheckValidation(t *testing.T) {
	f := newFixture(t)
	uc := NewUpdateCheck(f.cfg)

	if _, err := uc.Run(context.Background(), UpdateQuery{AppVersion: "1.0.0"}); !errs.IsKind(err, errs.Invalid) {
		t.Errorf("missing key: got %v, want Invalid", err)
	}
	if _, err := uc.Run(context.Background(), UpdateQuery{DeploymentKey: "dk_x"}); !errs.IsKind(err, errs.Invalid) {
		t.Errorf("missing app version: got %v, want Invalid", err)
	}
}

func TestUpdateCheckUnknownKey(t *testing.T) {
	f := newFixture(t)
	_, err := NewUpdateCheck(f.cfg).Run(context.Background(), UpdateQuery{
		DeploymentKey: "dk_unknown",
		AppVersion:    "1.0.0",
	})
	if !errs.IsNotFound(err) {
		t.Fatalf("unknown deployment key: got %v, want NotFound", err)
	}
}

func TestUpdateCheckEmptyHistory(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")

	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0"})
	if info.IsAvailable || !info.ShouldRunBinaryVersion {
		t.Fatalf("empty history: %+v", info)
	}
	if info.AppVersion != "1.0.0" {
		t.Errorf("app version must echo the query, got %q", info.AppVersion)
	}
}

func TestUpdateCheckServesLatest(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")
	pkg := f.mustRelease("Puma", "Staging", "1.0.0", buildZip(t, map[string]string{"index.js": "one"}))

	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0"})
	if !info.IsAvailable {
		t.Fatalf("expected an update: %+v", info)
	}
	if info.Label != "v1" || info.PackageHash != pkg.PackageHash {
		t.Errorf("wrong release offered: %+v", info)
	}
	if info.DownloadURL == "" || info.PackageSize != pkg.Size {
		t.Errorf("incomplete download info: %+v", info)
	}
}

func TestUpdateCheckClientUpToDate(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")
	pkg := f.mustRelease("Puma", "Staging", "1.0.0", buildZip(t, map[string]string{"index.js": "one"}))

	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0", PackageHash: pkg.PackageHash})
	if info.IsAvailable || info.UpdateAppVersion {
		t.Fatalf("up-to-date client: %+v", info)
	}
	if !info.ShouldRunBinaryVersion || info.AppVersion != "1.0.0" {
		t.Errorf("current client should be told to run its own bundle: %+v", info)
	}
}

func TestUpdateCheckBinaryMismatch(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")
	f.mustRelease("Puma", "Staging", "2.0.0", buildZip(t, map[string]string{"index.js": "one"}))

	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0"})
	if info.IsAvailable || !info.ShouldRunBinaryVersion {
		t.Fatalf("older binary with no matching release: %+v", info)
	}
}

func TestUpdateCheckAdvisesNewBinary(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")
	pkg1 := f.mustRelease("Puma", "Staging", "1.0.0", buildZip(t, map[string]string{"index.js": "one"}))
	f.mustRelease("Puma", "Staging", "2.0.0", buildZip(t, map[string]string{"index.js": "two"}))

	// A client current for its own binary hears about the newer binary.
	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0", PackageHash: pkg1.PackageHash})
	if info.IsAvailable {
		t.Fatalf("nothing installable should be offered: %+v", info)
	}
	if !info.UpdateAppVersion || info.AppVersion != "2.0.0" {
		t.Errorf("expected a binary-update advisory for 2.0.0: %+v", info)
	}
}

func TestUpdateCheckSkipsDisabled(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")
	ctx := context.Background()

	f.mustRelease("Puma", "Staging", "1.0.0", buildZip(t, map[string]string{"index.js": "one"}))
	f.mustRelease("Puma", "Staging", "1.0.0", buildZip(t, map[string]string{"index.js": "two"}))
	u := NewUpdateRelease(f.cfg)
	u.Label = "v2"
	u.IsDisabled = boolp(true)
	if _, err := u.Run(ctx, f.owner.ID, "Puma", "Staging"); err != nil {
		t.Fatal(err)
	}

	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0"})
	if !info.IsAvailable || info.Label != "v1" {
		t.Fatalf("disabled release must be skipped: %+v", info)
	}

	u = NewUpdateRelease(f.cfg)
	u.Label = "v1"
	u.IsDisabled = boolp(true)
	if _, err := u.Run(ctx, f.owner.ID, "Puma", "Staging"); err != nil {
		t.Fatal(err)
	}
	info = f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0"})
	if info.IsAvailable || !info.ShouldRunBinaryVersion {
		t.Fatalf("fully disabled history: %+v", info)
	}
}

func TestUpdateCheckMandatoryCarriesForward(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")

	pkg1 := f.mustRelease("Puma", "Staging", "1.0.0", buildZip(t, map[string]string{"index.js": "one"}))
	r := NewRelease(f.cfg)
	r.AppVersion = "1.0.0"
	r.IsMandatory = true
	if _, err := r.Run(context.Background(), f.owner.ID, "Puma", "Staging", buildZip(t, map[string]string{"index.js": "two"})); err != nil {
		t.Fatal(err)
	}
	pkg3 := f.mustRelease("Puma", "Staging", "1.0.0", buildZip(t, map[string]string{"index.js": "three"}))

	// The client skipped a mandatory release on the way to the latest, so
	// the latest is offered as mandatory even though it is optional itself.
	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0", PackageHash: pkg1.PackageHash})
	if !info.IsAvailable || info.Label != "v3" || info.PackageHash != pkg3.PackageHash {
		t.Fatalf("expected the latest release: %+v", info)
	}
	if !info.IsMandatory {
		t.Errorf("mandatory flag must carry forward: %+v", info)
	}

	// A fresh install never crossed the mandatory release.
	info = f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0"})
	if !info.IsAvailable || info.IsMandatory {
		t.Errorf("fresh install should get an optional update: %+v", info)
	}
}

func TestUpdateCheckPrereleaseBinary(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")
	f.mustRelease("Puma", "Staging", "2.0.0", buildZip(t, map[string]string{"index.js": "one"}))

	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "2.1.0-beta.1"})
	if !info.IsAvailable {
		t.Fatalf("pre-release binaries skip version matching: %+v", info)
	}
}

func TestUpdateCheckCompanionApp(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")
	f.mustRelease("Puma", "Staging", "2.0.0", buildZip(t, map[string]string{"index.js": "one"}))

	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0", IsCompanion: true})
	if !info.IsAvailable {
		t.Fatalf("companion app skips version matching: %+v", info)
	}
}

func TestUpdateCheckOffersDiff(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")

	pkg1 := f.mustRelease("Puma", "Staging", "1.0.0", buildZip(t, map[string]string{
		"index.js":  "one",
		"vendor.js": "shared",
	}))
	pkg2 := f.mustRelease("Puma", "Staging", "1.0.0", buildZip(t, map[string]string{
		"index.js":  "two",
		"vendor.js": "shared",
	}))
	diff, ok := pkg2.DiffPackageMap[pkg1.PackageHash]
	if !ok {
		t.Fatal("expected a diff against the previous release")
	}

	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0", PackageHash: pkg1.PackageHash})
	if !info.IsAvailable || info.PackageHash != pkg2.PackageHash {
		t.Fatalf("expected the new release: %+v", info)
	}
	if info.PackageSize != diff.Size {
		t.Errorf("diff archive should be offered: got size %d, want %d", info.PackageSize, diff.Size)
	}

	// A client with an unknown hash falls back to the full bundle.
	info = f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0", PackageHash: "unknown-hash"})
	if !info.IsAvailable || info.PackageSize != pkg2.Size {
		t.Errorf("full bundle fallback: %+v", info)
	}
}

func TestUpdateCheckRolloutGating(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")

	r := NewRelease(f.cfg)
	r.AppVersion = "1.0.0"
	r.Rollout = intp(50)
	pkg, err := r.Run(context.Background(), f.owner.ID, "Puma", "Staging", buildZip(t, map[string]string{"index.js": "one"}))
	if err != nil {
		t.Fatal(err)
	}

	// Without a client id the device cannot be bucketed and is excluded.
	info := f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0"})
	if info.IsAvailable {
		t.Fatalf("anonymous client inside a partial rollout: %+v", info)
	}

	// Bucketing is deterministic per (clientID, packageHash): find one
	// device on each side of the fence and confirm the resolver agrees.
	var inside, outside string
	for i := 0; inside == "" || outside == ""; i++ {
		id := fmt.Sprintf("device-%d", i)
		if releaseutil.IsSelectedForRollout(id, pkg.PackageHash, 50) {
			inside = id
		} else {
			outside = id
		}
	}
	info = f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0", ClientUniqueID: inside})
	if !info.IsAvailable {
		t.Errorf("device %s should be inside the rollout: %+v", inside, info)
	}
	info = f.check(UpdateQuery{DeploymentKey: key, AppVersion: "1.0.0", ClientUniqueID: outside})
	if info.IsAvailable {
		t.Errorf("device %s should be outside the rollout: %+v", outside, info)
	}
}

// flakyStorage fails history reads to exercise the degraded response path.
type flakyStorage struct {
	storage.Storage
}

func (fs *flakyStorage) GetPackageHistory(ctx context.Context, deploymentID string) ([]release.Package, error) {
	return nil, errs.ErrConnectionFailed("storage offline")
}

func TestUpdateCheckDegradesOnStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.createApp("Puma")
	key := f.deploymentKey("Puma", "Staging")
	f.mustRelease("Puma", "Staging", "1.0.0", buildZip(t, map[string]string{"index.js": "one"}))

	f.cfg.Storage = &flakyStorage{Storage: f.store}
	info, err := NewUpdateCheck(f.cfg).Run(context.Background(), UpdateQuery{
		DeploymentKey: key,
		AppVersion:    "1.0.0",
	})
	if err != nil {
		t.Fatalf("storage failures must not surface to clients: %v", err)
	}
	if info.IsAvailable || info.AppVersion != "1.0.0" {
		t.Errorf("degraded response: %+v", info)
	}
}
