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
	"encoding/json"
	"io"
	"reflect"
	"testing"
)

func TestComputeDiff(t *testing.T) {
	old := PackageManifest{
		"kept.txt":    "aaaa",
		"changed.txt": "bbbb",
		"removed.txt": "cccc",
	}
	new := PackageManifest{
		"kept.txt":    "aaaa",
		"changed.txt": "dddd",
		"added.txt":   "eeee",
	}

	d := ComputeDiff(old, new)
	if !reflect.DeepEqual(d.DeletedFiles, []string{"removed.txt"}) {
		t.Errorf("deleted = %v", d.DeletedFiles)
	}
	if !reflect.DeepEqual(d.ChangedFiles, []string{"added.txt", "changed.txt"}) {
		t.Errorf("changed = %v", d.ChangedFiles)
	}
}

func TestComputeDiffIdentical(t *testing.T) {
	m := PackageManifest{"a.txt": "1111"}
	d := ComputeDiff(m, m)
	if len(d.DeletedFiles) != 0 || len(d.ChangedFiles) != 0 {
		t.Errorf("identical manifests must produce an empty diff, got %+v", d)
	}
}

// applyDiff replays a diff archive on top of an old file set and returns the
// resulting content map, mimicking what the client SDK does on device.
func applyDiff(t *testing.T, old map[string]string, archive []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatal(err)
	}

	result := map[string]string{}
	for name, content := range old {
		result[name] = content
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		if NormalizePath(f.Name) == HotCodePushFile {
			var meta struct {
				DeletedFiles []string `json:"deletedFiles"`
			}
			if err := json.Unmarshal(content, &meta); err != nil {
				t.Fatal(err)
			}
			for _, name := range meta.DeletedFiles {
				delete(result, name)
			}
			continue
		}
		result[NormalizePath(f.Name)] = string(content)
	}
	return result
}

func TestBuildDiffArchiveRoundTrip(t *testing.T) {
	oldFiles := map[string]string{
		"kept.txt":    "same old content",
		"changed.txt": "old content",
		"removed.txt": "goes away",
	}
	newFiles := map[string]string{
		"kept.txt":    "same old content",
		"changed.txt": "new content",
		"added.txt":   "brand new",
	}

	oldManifest, err := GenerateFromZip(buildZip(t, oldFiles))
	if err != nil {
		t.Fatal(err)
	}
	newZip := buildZip(t, newFiles)
	newManifest, err := GenerateFromZip(newZip)
	if err != nil {
		t.Fatal(err)
	}

	archive, err := BuildDiffArchive(newZip, ComputeDiff(oldManifest, newManifest))
	if err != nil {
		t.Fatal(err)
	}

	got := applyDiff(t, oldFiles, archive)
	if !reflect.DeepEqual(got, newFiles) {
		t.Errorf("applying diff did not reproduce new content:\n got %v\nwant %v", got, newFiles)
	}
}

func TestBuildDiffArchiveEmptyDeletions(t *testing.T) {
	newZip := buildZip(t, map[string]string{"a.txt": "content"})
	archive, err := BuildDiffArchive(newZip, Diff{ChangedFiles: []string{"a.txt"}})
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatal(err)
	}
	var sawMeta bool
	for _, f := range zr.File {
		if f.Name == HotCodePushFile {
			sawMeta = true
			rc, _ := f.Open()
			content, _ := io.ReadAll(rc)
			rc.Close()
			if string(content) != `{"deletedFiles":[]}` {
				t.Errorf("unexpected metadata %s", content)
			}
		}
	}
	if !sawMeta {
		t.Error("diff archive is missing hotcodepush.json")
	}
}
