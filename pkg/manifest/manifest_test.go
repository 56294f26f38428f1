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

package manifest

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"reflect"
	"testing"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func hexSHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestGenerateFromZip(t *testing.T) {
	data := buildZip(t, map[string]string{
		"index.android.bundle":   "bundle-code",
		"assets/logo.png":        "png-bytes",
		".DS_Store":              "junk",
		"assets/.DS_Store":       "junk",
		"__MACOSX/index.bundle":  "resource fork",
		"CodePush/.codepushrelease": "release-metadata",
	})

	m, err := GenerateFromZip(data)
	if err != nil {
		t.Fatal(err)
	}

	want := PackageManifest{
		"index.android.bundle":      hexSHA256("bundle-code"),
		"assets/logo.png":           hexSHA256("png-bytes"),
		"CodePush/.codepushrelease": hexSHA256("release-metadata"),
	}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("manifest mismatch:\n got %v\nwant %v", m, want)
	}
}

func TestGenerateFromZipFallback(t *testing.T) {
	raw := []byte("definitely not a zip archive")
	m, err := GenerateFromZip(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 1 || m["/"] != HashBytes(raw) {
		t.Errorf("expected single-entry fallback manifest, got %v", m)
	}
}

func TestHashExcludesReleaseMetadata(t *testing.T) {
	m := PackageManifest{
		"a.txt": hexSHA256("a"),
		"b.txt": hexSHA256("b"),
	}
	base, err := m.Hash()
	if err != nil {
		t.Fatal(err)
	}

	m[ReleaseMetadataFile] = hexSHA256("metadata")
	withMeta, err := m.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if base != withMeta {
		t.Error("release metadata entry must not affect the package hash")
	}

	m["c.txt"] = hexSHA256("c")
	changed, err := m.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if base == changed {
		t.Error("adding a file must change the package hash")
	}
}

func TestHashIsCanonical(t *testing.T) {
	// The hash covers JSON.stringify of the sorted "path:hash" entries.
	m := PackageManifest{"a.txt": "1111", "b/c.txt": "2222"}
	got, err := m.Hash()
	if err != nil {
		t.Fatal(err)
	}
	want := HashBytes([]byte(`["a.txt:1111","b/c.txt:2222"]`))
	if got != want {
		t.Errorf("hash = %s, want %s", got, want)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	m := PackageManifest{
		"index.bundle": hexSHA256("x"),
		"assets/a.png": hexSHA256("y"),
	}
	b, err := m.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Deserialize(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m, got) {
		t.Errorf("round trip mismatch: %v != %v", got, m)
	}
}
