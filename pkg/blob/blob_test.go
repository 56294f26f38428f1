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

package blob

import (
	"context"
	"testing"

	"codepush.sh/codepush/pkg/cache"
	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/objstore/memory"
)

func TestAddAndGetBlob(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(store, nil)

	if err := svc.AddBlob(ctx, "apps/a/deployments/d/p.zip", []byte("bundle")); err != nil {
		t.Fatal(err)
	}
	md, err := store.Head(ctx, "apps/a/deployments/d/p.zip")
	if err != nil {
		t.Fatal(err)
	}
	if md.Custom["size"] != "6" {
		t.Errorf("size metadata = %q, want 6", md.Custom["size"])
	}

	data, err := svc.GetBlob(ctx, "apps/a/deployments/d/p.zip")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "bundle" {
		t.Errorf("got %q", data)
	}
}

func TestGetBlobURLIsCached(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(store, cache.NewInMemory())

	if err := svc.AddBlob(ctx, "k", []byte("x")); err != nil {
		t.Fatal(err)
	}

	first, err := svc.GetBlobURL(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	// The memory store embeds the signing instant in the URL; a cached
	// result is byte-identical even if time advances.
	second, err := svc.GetBlobURL(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("expected cached URL, got %q then %q", first, second)
	}
}

func TestGetBlobURLMissingKey(t *testing.T) {
	svc := NewService(memory.New(), cache.NewInMemory())
	if _, err := svc.GetBlobURL(context.Background(), "missing"); !errs.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestMoveBlob(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(store, cache.NewInMemory())

	if err := svc.AddBlob(ctx, "src", []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := svc.MoveBlob(ctx, "src", "dst"); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, "src"); !errs.IsNotFound(err) {
		t.Errorf("source should be gone, got %v", err)
	}
	data, err := store.Get(ctx, "dst")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("got %q", data)
	}
}

func TestDeletePath(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(store, nil)

	for _, key := range []string{
		"apps/a/deployments/d/1.zip",
		"apps/a/deployments/d/2.zip",
		"apps/a/deployments/other/3.zip",
	} {
		if err := svc.AddBlob(ctx, key, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.DeletePath(ctx, DeploymentPath("a", "d")); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Errorf("expected only the other deployment's blob to survive, have %d", store.Len())
	}
}

func TestPaths(t *testing.T) {
	if got := PackagePath("app1", "dep1", "pkg1"); got != "apps/app1/deployments/dep1/pkg1.zip" {
		t.Errorf("PackagePath = %q", got)
	}
	if got := ManifestPath("app1", "dep1", "pkg1"); got != "apps/app1/deployments/dep1/pkg1-manifest.json" {
		t.Errorf("ManifestPath = %q", got)
	}
	if got := DiffPath("app1", "dep1", "abc123"); got != "apps/app1/deployments/dep1/diff_abc123.zip" {
		t.Errorf("DiffPath = %q", got)
	}
}
