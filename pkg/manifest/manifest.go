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

// Package manifest turns uploaded bundle archives into per-file hash
// manifests. The manifest is the canonical identity of a release: the
// package hash is derived from it, and diffs between two releases are
// computed by comparing manifests.
package manifest

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ReleaseMetadataFile is injected into bundles by some CLI versions. It
// never participates in the package hash so that re-releasing identical
// content is detected as a duplicate.
const ReleaseMetadataFile = ".codepushrelease"

// PackageManifest maps a normalized forward-slash file path to the hex
// SHA-256 of the file's contents.
type PackageManifest map[string]string

// GenerateFromZip decompresses a bundle archive and hashes every file
// entry. Input that is not a valid ZIP is treated as a single opaque file
// and yields the one-entry manifest {"/": sha256(bytes)}.
func GenerateFromZip(data []byte) (PackageManifest, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return PackageManifest{"/": HashBytes(data)}, nil
	}

	m := PackageManifest{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := NormalizePath(f.Name)
		if name == "" || isIgnored(name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening zip entry %q", f.Name)
		}
		h := sha256.New()
		_, err = io.Copy(h, rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "hashing zip entry %q", f.Name)
		}
		m[name] = hex.EncodeToString(h.Sum(nil))
	}
	return m, nil
}

// NormalizePath converts archive entry names to the canonical manifest
// form: forward slashes, no leading "/" or "./".
func NormalizePath(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimPrefix(name, "./")
	return strings.TrimPrefix(name, "/")
}

func isIgnored(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	return path.Base(name) == ".DS_Store"
}

// Hash computes the package hash: the SHA-256 of the JSON array of sorted
// "path:hash" strings, excluding the release metadata entry. This is the
// content identity of a release and must be byte-compatible with the
// hashes client CLIs compute locally.
func (m PackageManifest) Hash() (string, error) {
	entries := make([]string, 0, len(m))
	for name, hash := range m {
		if name == ReleaseMetadataFile {
			continue
		}
		entries = append(entries, name+":"+hash)
	}
	sort.Strings(entries)

	encoded, err := stringify(entries)
	if err != nil {
		return "", err
	}
	return HashBytes(encoded), nil
}

// stringify matches JSON.stringify: compact output, no HTML escaping.
func stringify(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// HashBytes returns the hex SHA-256 of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Serialize renders the manifest for blob storage.
func (m PackageManifest) Serialize() ([]byte, error) {
	return stringify(map[string]string(m))
}

// Deserialize parses a stored manifest blob.
func Deserialize(b []byte) (PackageManifest, error) {
	var m PackageManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "parsing package manifest")
	}
	return m, nil
}
