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

	"codepush.sh/codepush/pkg/blob"
	"codepush.sh/codepush/pkg/release"
)

// History reads a deployment's full release history with signed download
// URLs attached.
type History struct {
	cfg *Configuration
}

// NewHistory creates a new History object with the given configuration.
func NewHistory(cfg *Configuration) *History {
	return &History{cfg: cfg}
}

// Run returns the history ascending by label.
func (h *History) Run(ctx context.Context, accountID, appName, deploymentName string) ([]release.Package, error) {
	app, err := h.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return nil, err
	}
	dep, err := h.cfg.deploymentByName(ctx, app.ID, deploymentName)
	if err != nil {
		return nil, err
	}
	history, err := h.cfg.Storage.GetPackageHistory(ctx, dep.ID)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if err := h.cfg.attachURLs(ctx, &history[i]); err != nil {
			return nil, err
		}
	}
	return history, nil
}

// ClearHistory wipes a deployment's releases and their stored blobs. Only
// the app owner may do this.
type ClearHistory struct {
	cfg *Configuration
}

// NewClearHistory creates a new ClearHistory object with the given
// configuration.
func NewClearHistory(cfg *Configuration) *ClearHistory {
	return &ClearHistory{cfg: cfg}
}

// Run clears the history of the named deployment.
func (c *ClearHistory) Run(ctx context.Context, accountID, appName, deploymentName string) error {
	app, err := c.cfg.requireApp(ctx, accountID, appName, release.PermissionOwner)
	if err != nil {
		return err
	}
	dep, err := c.cfg.deploymentByName(ctx, app.ID, deploymentName)
	if err != nil {
		return err
	}
	if err := c.cfg.Storage.ClearPackageHistory(ctx, dep.ID); err != nil {
		return err
	}
	if err := c.cfg.Blobs.DeletePath(ctx, blob.DeploymentPath(app.ID, dep.ID)); err != nil {
		// History is already gone; orphaned blobs only cost storage.
		c.cfg.log("deleting blobs of %s failed: %v", deploymentName, err)
	}
	return nil
}

// DeploymentMetrics aggregates the acquisition counters of one deployment.
type DeploymentMetrics struct {
	cfg *Configuration
}

// NewDeploymentMetrics creates a new DeploymentMetrics object with the
// given configuration.
func NewDeploymentMetrics(cfg *Configuration) *DeploymentMetrics {
	return &DeploymentMetrics{cfg: cfg}
}

// Run returns the per-label counters of the named deployment.
func (d *DeploymentMetrics) Run(ctx context.Context, accountID, appName, deploymentName string) (map[string]release.Metrics, error) {
	app, err := d.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return nil, err
	}
	dep, err := d.cfg.deploymentByName(ctx, app.ID, deploymentName)
	if err != nil {
		return nil, err
	}
	return d.cfg.Storage.GetMetrics(ctx, dep.Key)
}
