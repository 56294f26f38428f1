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
	"io"
	"sort"

	"github.com/pkg/errors"
)

// HotCodePushFile is the archive entry listing files a client must delete
// when applying a diff.
const HotCodePushFile = "hotcodepush.json"

type hotCodePush struct {
	DeletedFiles []string `json:"deletedFiles"`
}

// Diff describes how to go from an older release's content to a newer one.
type Diff struct {
	// DeletedFiles are present in the old manifest and absent in the new.
	DeletedFiles []string
	// ChangedFiles are new or have different content in the new manifest.
	ChangedFiles []string
}

// ComputeDiff compares two manifests. Both orderings of the result slices
// are sorted so diff archives are reproducible.
func ComputeDiff(old, new PackageManifest) Diff {
	var d Diff
	for name := range old {
		if name == ReleaseMetadataFile {
			continue
		}
		if _, ok := new[name]; !ok {
			d.DeletedFiles = append(d.DeletedFiles, name)
		}
	}
	for name, hash := range new {
		if name == ReleaseMetadataFile {
			continue
		}
		if oldHash, ok := old[name]; !ok || oldHash != hash {
			d.ChangedFiles = append(d.ChangedFiles, name)
		}
	}
	sort.Strings(d.DeletedFiles)
	sort.Strings(d.ChangedFiles)
	return d
}

// BuildDiffArchive produces a ZIP containing the hotcodepush.json deletion
// list plus each changed file's bytes copied out of the new bundle.
func BuildDiffArchive(newZip []byte, d Diff) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(newZip), int64(len(newZip)))
	if err != nil {
		return nil, errors.Wrap(err, "reading new bundle")
	}

	entries := map[string]*zip.File{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries[NormalizePath(f.Name)] = f
	}

	deleted := d.DeletedFiles
	if deleted == nil {
		deleted = []string{}
	}
	meta, err := stringify(hotCodePush{DeletedFiles: deleted})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(HotCodePushFile)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(meta); err != nil {
		return nil, err
	}

	for _, name := range d.ChangedFiles {
		f, ok := entries[name]
		if !ok {
			return nil, errors.Errorf("changed file %q missing from new bundle", name)
		}
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening %q", name)
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "copying %q", name)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
