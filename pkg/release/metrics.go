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

package release

// MetricType names one of the per-label counters kept for a deployment.
type MetricType string

const (
	// MetricActive counts devices currently running a label.
	MetricActive MetricType = "active"
	// MetricDownloaded counts completed bundle downloads.
	MetricDownloaded MetricType = "downloaded"
	// MetricSucceeded counts successful installs.
	MetricSucceeded MetricType = "deployment_succeeded"
	// MetricFailed counts failed installs.
	MetricFailed MetricType = "deployment_failed"
)

// DeploymentStatus is the status a client SDK reports after applying an
// update.
type DeploymentStatus string

const (
	// StatusSucceeded indicates the update was applied and the app booted.
	StatusSucceeded DeploymentStatus = "DeploymentSucceeded"
	// StatusFailed indicates the update crashed and was rolled back on
	// device.
	StatusFailed DeploymentStatus = "DeploymentFailed"
)

// Metrics aggregates the raw counters of one label for reporting.
type Metrics struct {
	Active    int64 `json:"active"`
	Downloads int64 `json:"downloads,omitempty"`
	Installed int64 `json:"installed,omitempty"`
	Failed    int64 `json:"failed,omitempty"`
}
