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

// Package release describes the entities the code-push server manages: apps,
// deployments, the per-deployment package history, accounts, access keys,
// and the acquisition-side update response.
package release

import (
	"codepush.sh/codepush/pkg/time"
)

// ReleaseMethod records how a package entered a deployment's history.
type ReleaseMethod string

const (
	// Upload is a package released from uploaded bundle bytes.
	Upload ReleaseMethod = "Upload"
	// Promote is a package copied from another deployment.
	Promote ReleaseMethod = "Promote"
	// Rollback is a package copied from an earlier release of the same
	// deployment.
	Rollback ReleaseMethod = "Rollback"
)

// Package is a single release in a deployment's history. Blob fields refer
// to keys in the object store; signed URLs are computed on read and never
// persisted.
type Package struct {
	ID           string `json:"-"`
	DeploymentID string `json:"-"`

	Label       string `json:"label,omitempty"`
	AppVersion  string `json:"appVersion"`
	Description string `json:"description,omitempty"`
	IsDisabled  bool   `json:"isDisabled"`
	IsMandatory bool   `json:"isMandatory"`

	// Rollout is the percentage of clients this release is served to.
	// nil means fully rolled out.
	Rollout *int `json:"rollout,omitempty"`

	Size        int64  `json:"size"`
	PackageHash string `json:"packageHash"`

	BlobPath         string `json:"-"`
	ManifestBlobPath string `json:"-"`

	// BlobURL and ManifestBlobURL carry short-lived signed URLs. They are
	// populated by the blob service when history is read.
	BlobURL         string `json:"blobUrl,omitempty"`
	ManifestBlobURL string `json:"manifestBlobUrl,omitempty"`

	ReleaseMethod      ReleaseMethod `json:"releaseMethod,omitempty"`
	OriginalLabel      string        `json:"originalLabel,omitempty"`
	OriginalDeployment string        `json:"originalDeployment,omitempty"`
	ReleasedBy         string        `json:"releasedBy,omitempty"`

	UploadTime time.Time `json:"uploadTime"`

	// DiffPackageMap maps an older release's package hash to the archive
	// that patches it up to this release.
	DiffPackageMap map[string]DiffInfo `json:"diffPackageMap,omitempty"`
}

// FullRollout reports whether the package is served to every client.
func (p *Package) FullRollout() bool {
	return p.Rollout == nil || *p.Rollout >= 100
}

// DiffInfo points at a stored diff archive.
type DiffInfo struct {
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	BlobPath string `json:"-"`
}

// PackageDiff is the stored record of a diff archive from an older package
// hash to the package identified by PackageID. Unique on
// (PackageID, SourcePackageHash).
type PackageDiff struct {
	ID                string
	PackageID         string
	SourcePackageHash string
	Size              int64
	BlobPath          string
}

// UpdateInfo is the resolver's answer to an update-check query. Field names
// follow the acquisition wire contract.
type UpdateInfo struct {
	IsAvailable            bool   `json:"isAvailable"`
	IsMandatory            bool   `json:"isMandatory"`
	AppVersion             string `json:"appVersion"`
	ShouldRunBinaryVersion bool   `json:"shouldRunBinaryVersion,omitempty"`
	UpdateAppVersion       bool   `json:"updateAppVersion,omitempty"`
	PackageHash            string `json:"packageHash,omitempty"`
	Label                  string `json:"label,omitempty"`
	PackageSize            int64  `json:"packageSize,omitempty"`
	Description            string `json:"description,omitempty"`
	DownloadURL            string `json:"downloadURL,omitempty"`
}
