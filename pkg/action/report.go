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

	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
)

// Report records the status beacons client SDKs send: bundle downloads,
// install outcomes, and label transitions. Counters are advisory and their
// storage failures never fail the request that carried them.
type Report struct {
	cfg *Configuration
}

// NewReport creates a new Report object with the given configuration.
func NewReport(cfg *Configuration) *Report {
	return &Report{cfg: cfg}
}

// Download records a completed bundle download.
func (r *Report) Download(ctx context.Context, deploymentKey, label, clientID string) error {
	if deploymentKey == "" || label == "" {
		return errs.ErrInvalid("deploymentKey and label are required")
	}
	return r.cfg.Storage.IncrementMetric(ctx, deploymentKey, label, release.MetricDownloaded)
}

// DeploymentStatus records the outcome a device reports after applying an
// update.
func (r *Report) DeploymentStatus(ctx context.Context, deploymentKey, label, clientID string, status release.DeploymentStatus) error {
	if deploymentKey == "" || label == "" {
		return errs.ErrInvalid("deploymentKey and label are required")
	}
	switch status {
	case release.StatusSucceeded:
		if clientID != "" {
			if err := r.cfg.Storage.SetClientLabel(ctx, deploymentKey, clientID, label); err != nil {
				r.cfg.log("recording client label failed: %v", err)
			}
		}
		if err := r.cfg.Storage.IncrementMetric(ctx, deploymentKey, label, release.MetricSucceeded); err != nil {
			return err
		}
		return r.cfg.Storage.IncrementMetric(ctx, deploymentKey, label, release.MetricActive)
	case release.StatusFailed:
		return r.cfg.Storage.IncrementMetric(ctx, deploymentKey, label, release.MetricFailed)
	default:
		return errs.ErrInvalid("unknown deployment status %q", status)
	}
}

// Deployment records a device switching onto a label: the previous label's
// active count is released (never below zero) and the new one claimed.
func (r *Report) Deployment(ctx context.Context, deploymentKey, label, clientID, previousKey, previousLabel string) error {
	if deploymentKey == "" || label == "" {
		return errs.ErrInvalid("deploymentKey and label are required")
	}
	if previousKey != "" && previousLabel != "" {
		if err := r.cfg.Storage.DecrementMetric(ctx, previousKey, previousLabel, release.MetricActive); err != nil {
			r.cfg.log("releasing active count for %s/%s failed: %v", previousKey, previousLabel, err)
		}
	}
	if clientID != "" {
		if err := r.cfg.Storage.SetClientLabel(ctx, deploymentKey, clientID, label); err != nil {
			r.cfg.log("recording client label failed: %v", err)
		}
	}
	return r.cfg.Storage.IncrementMetric(ctx, deploymentKey, label, release.MetricActive)
}
