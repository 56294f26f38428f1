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

	"codepush.sh/codepush/pkg/access"
	"codepush.sh/codepush/pkg/blob"
	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/releaseutil"
)

// defaultDeployments are created with every new app.
var defaultDeployments = []string{"Production", "Staging"}

// CreateApp registers a new app owned by the calling account, with the
// standard deployments pre-created.
type CreateApp struct {
	cfg *Configuration
}

// NewCreateApp creates a new CreateApp object with the given configuration.
func NewCreateApp(cfg *Configuration) *CreateApp {
	return &CreateApp{cfg: cfg}
}

// Run creates the app and returns it with its deployments.
func (c *CreateApp) Run(ctx context.Context, accountID, name string) (*release.App, error) {
	if name == "" {
		return nil, errs.ErrInvalid("app name is required")
	}
	account, err := c.cfg.Storage.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	app := &release.App{
		Name: name,
		Collaborators: release.CollaboratorMap{
			account.Email: {AccountID: accountID, Permission: release.PermissionOwner},
		},
		CreatedTime: Timestamper(),
	}
	if err := c.cfg.Storage.AddApp(ctx, app); err != nil {
		return nil, err
	}

	for _, depName := range defaultDeployments {
		dep := &release.Deployment{
			Name:        depName,
			Key:         releaseutil.GenerateDeploymentKey(),
			CreatedTime: Timestamper(),
		}
		if err := c.cfg.Storage.AddDeployment(ctx, app.ID, dep); err != nil {
			return nil, err
		}
		app.Deployments = append(app.Deployments, depName)
	}
	access.MarkCurrentAccount(app, accountID)
	return app, nil
}

// ListApps lists every app the account can see.
type ListApps struct {
	cfg *Configuration
}

// NewListApps creates a new ListApps object with the given configuration.
func NewListApps(cfg *Configuration) *ListApps {
	return &ListApps{cfg: cfg}
}

// Run returns the caller's apps with deployment names filled in.
func (l *ListApps) Run(ctx context.Context, accountID string) ([]release.App, error) {
	apps, err := l.cfg.Storage.GetApps(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if err := l.cfg.fillDeploymentNames(ctx, &apps[i]); err != nil {
			return nil, err
		}
		access.MarkCurrentAccount(&apps[i], accountID)
	}
	return apps, nil
}

// GetApp reads a single app by name.
type GetApp struct {
	cfg *Configuration
}

// NewGetApp creates a new GetApp object with the given configuration.
func NewGetApp(cfg *Configuration) *GetApp {
	return &GetApp{cfg: cfg}
}

// Run returns the named app.
func (g *GetApp) Run(ctx context.Context, accountID, name string) (*release.App, error) {
	app, err := g.cfg.appByName(ctx, accountID, name)
	if err != nil {
		return nil, err
	}
	if err := g.cfg.fillDeploymentNames(ctx, app); err != nil {
		return nil, err
	}
	access.MarkCurrentAccount(app, accountID)
	return app, nil
}

// RenameApp renames an app. Owner only.
type RenameApp struct {
	cfg *Configuration

	NewName string
}

// NewRenameApp creates a new RenameApp object with the given configuration.
func NewRenameApp(cfg *Configuration) *RenameApp {
	return &RenameApp{cfg: cfg}
}

// Run renames the app.
func (r *RenameApp) Run(ctx context.Context, accountID, name string) (*release.App, error) {
	if r.NewName == "" {
		return nil, errs.ErrInvalid("app name is required")
	}
	app, err := r.cfg.requireApp(ctx, accountID, name, release.PermissionOwner)
	if err != nil {
		return nil, err
	}
	if _, err := r.cfg.appByName(ctx, accountID, r.NewName); err == nil {
		return nil, errs.ErrAlreadyExists("app %s already exists", r.NewName)
	}
	app.Name = r.NewName
	if err := r.cfg.Storage.UpdateApp(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// RemoveApp deletes an app, its deployments, and all stored blobs. Owner
// only.
type RemoveApp struct {
	cfg *Configuration
}

// NewRemoveApp creates a new RemoveApp object with the given configuration.
func NewRemoveApp(cfg *Configuration) *RemoveApp {
	return &RemoveApp{cfg: cfg}
}

// Run removes the named app.
func (r *RemoveApp) Run(ctx context.Context, accountID, name string) error {
	app, err := r.cfg.requireApp(ctx, accountID, name, release.PermissionOwner)
	if err != nil {
		return err
	}
	if err := r.cfg.Storage.RemoveApp(ctx, app.ID); err != nil {
		return err
	}
	if err := r.cfg.Blobs.DeletePath(ctx, blob.AppPath(app.ID)); err != nil {
		r.cfg.log("deleting blobs of app %s failed: %v", name, err)
	}
	return nil
}

// TransferApp moves app ownership to another account. Owner only.
type TransferApp struct {
	cfg *Configuration
}

// NewTransferApp creates a new TransferApp object with the given
// configuration.
func NewTransferApp(cfg *Configuration) *TransferApp {
	return &TransferApp{cfg: cfg}
}

// Run transfers the named app to the account registered under email.
func (t *TransferApp) Run(ctx context.Context, accountID, name, email string) error {
	app, err := t.cfg.requireApp(ctx, accountID, name, release.PermissionOwner)
	if err != nil {
		return err
	}
	target, err := t.cfg.Storage.GetAccountByEmail(ctx, email)
	if err != nil {
		return err
	}
	return t.cfg.Storage.TransferApp(ctx, app.ID, target)
}

// fillDeploymentNames loads the app's deployment name list.
func (cfg *Configuration) fillDeploymentNames(ctx context.Context, app *release.App) error {
	deployments, err := cfg.Storage.GetDeployments(ctx, app.ID)
	if err != nil {
		return err
	}
	app.Deployments = make([]string, 0, len(deployments))
	for _, dep := range deployments {
		app.Deployments = append(app.Deployments, dep.Name)
	}
	return nil
}
