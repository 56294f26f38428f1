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
	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/releaseutil"
)

// CreateDeployment adds a release channel to an app.
type CreateDeployment struct {
	cfg *Configuration

	// Key overrides the generated deployment key. Used by migrations that
	// must preserve keys already burned into shipped binaries.
	Key string
}

// NewCreateDeployment creates a new CreateDeployment object with the given
// configuration.
func NewCreateDeployment(cfg *Configuration) *CreateDeployment {
	return &CreateDeployment{cfg: cfg}
}

// Run creates the deployment and returns it.
func (c *CreateDeployment) Run(ctx context.Context, accountID, appName, name string) (*release.Deployment, error) {
	if name == "" {
		return nil, errs.ErrInvalid("deployment name is required")
	}
	app, err := c.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return nil, err
	}
	key := c.Key
	if key == "" {
		key = releaseutil.GenerateDeploymentKey()
	}
	dep := &release.Deployment{
		Name:        name,
		Key:         key,
		CreatedTime: Timestamper(),
	}
	if err := c.cfg.Storage.AddDeployment(ctx, app.ID, dep); err != nil {
		return nil, err
	}
	return dep, nil
}

// ListDeployments lists an app's deployments with their current release.
type ListDeployments struct {
	cfg *Configuration
}

// NewListDeployments creates a new ListDeployments object with the given
// configuration.
func NewListDeployments(cfg *Configuration) *ListDeployments {
	return &ListDeployments{cfg: cfg}
}

// Run returns the deployments of the named app.
func (l *ListDeployments) Run(ctx context.Context, accountID, appName string) ([]release.Deployment, error) {
	app, err := l.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return nil, err
	}
	deployments, err := l.cfg.Storage.GetDeployments(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	for i := range deployments {
		if err := l.cfg.attachURLs(ctx, deployments[i].Package); err != nil {
			return nil, err
		}
	}
	return deployments, nil
}

// GetDeployment reads one deployment by name.
type GetDeployment struct {
	cfg *Configuration
}

// NewGetDeployment creates a new GetDeployment object with the given
// configuration.
func NewGetDeployment(cfg *Configuration) *GetDeployment {
	return &GetDeployment{cfg: cfg}
}

// Run returns the named deployment with its current release.
func (g *GetDeployment) Run(ctx context.Context, accountID, appName, name string) (*release.Deployment, error) {
	app, err := g.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return nil, err
	}
	dep, err := g.cfg.deploymentByName(ctx, app.ID, name)
	if err != nil {
		return nil, err
	}
	if err := g.cfg.attachURLs(ctx, dep.Package); err != nil {
		return nil, err
	}
	return dep, nil
}

// RenameDeployment renames a deployment. Owner only.
type RenameDeployment struct {
	cfg *Configuration

	NewName string
}

// NewRenameDeployment creates a new RenameDeployment object with the given
// configuration.
func NewRenameDeployment(cfg *Configuration) *RenameDeployment {
	return &RenameDeployment{cfg: cfg}
}

// Run renames the deployment.
func (r *RenameDeployment) Run(ctx context.Context, accountID, appName, name string) (*release.Deployment, error) {
	if r.NewName == "" {
		return nil, errs.ErrInvalid("deployment name is required")
	}
	app, err := r.cfg.requireApp(ctx, accountID, appName, release.PermissionOwner)
	if err != nil {
		return nil, err
	}
	dep, err := r.cfg.deploymentByName(ctx, app.ID, name)
	if err != nil {
		return nil, err
	}
	dep.Name = r.NewName
	if err := r.cfg.Storage.UpdateDeployment(ctx, app.ID, dep); err != nil {
		return nil, err
	}
	return dep, nil
}

// RemoveDeployment deletes a deployment, its history, and its blobs. Owner
// only.
type RemoveDeployment struct {
	cfg *Configuration
}

// NewRemoveDeployment creates a new RemoveDeployment object with the given
// configuration.
func NewRemoveDeployment(cfg *Configuration) *RemoveDeployment {
	return &RemoveDeployment{cfg: cfg}
}

// Run removes the named deployment.
func (r *RemoveDeployment) Run(ctx context.Context, accountID, appName, name string) error {
	app, err := r.cfg.requireApp(ctx, accountID, appName, release.PermissionOwner)
	if err != nil {
		return err
	}
	dep, err := r.cfg.deploymentByName(ctx, app.ID, name)
	if err != nil {
		return err
	}
	if err := r.cfg.Storage.RemoveDeployment(ctx, app.ID, dep.ID); err != nil {
		return err
	}
	if err := r.cfg.Blobs.DeletePath(ctx, blob.DeploymentPath(app.ID, dep.ID)); err != nil {
		r.cfg.log("deleting blobs of %s failed: %v", name, err)
	}
	return nil
}
