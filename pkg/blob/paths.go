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

import "fmt"

// The object-store layout is part of the persisted contract: keys written
// by one server version must stay readable by the next.

// AppPath is the prefix holding every blob of an app.
func AppPath(appID string) string {
	return fmt.Sprintf("apps/%s", appID)
}

// DeploymentPath is the prefix holding every blob of a deployment.
func DeploymentPath(appID, deploymentID string) string {
	return fmt.Sprintf("apps/%s/deployments/%s", appID, deploymentID)
}

// PackagePath is the key of a release's full bundle archive.
func PackagePath(appID, deploymentID, packageID string) string {
	return fmt.Sprintf("%s/%s.zip", DeploymentPath(appID, deploymentID), packageID)
}

// ManifestPath is the key of a release's stored manifest.
func ManifestPath(appID, deploymentID, packageID string) string {
	return fmt.Sprintf("%s/%s-manifest.json", DeploymentPath(appID, deploymentID), packageID)
}

// DiffPath is the key of the diff archive from the release with the given
// source package hash up to the newest release of the deployment.
func DiffPath(appID, deploymentID, sourcePackageHash string) string {
	return fmt.Sprintf("%s/diff_%s.zip", DeploymentPath(appID, deploymentID), sourcePackageHash)
}
