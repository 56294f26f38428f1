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
	"codepush.sh/codepush/pkg/release"
)

// ListCollaborators lists an app's collaborator map.
type ListCollaborators struct {
	cfg *Configuration
}

// NewListCollaborators creates a new ListCollaborators object with the
// given configuration.
func NewListCollaborators(cfg *Configuration) *ListCollaborators {
	return &ListCollaborators{cfg: cfg}
}

// Run returns the collaborators of the named app.
func (l *ListCollaborators) Run(ctx context.Context, accountID, appName string) (release.CollaboratorMap, error) {
	app, err := l.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return nil, err
	}
	access.MarkCurrentAccount(app, accountID)
	return app.Collaborators, nil
}

// AddCollaborator grants another account access to an app. Owner only.
type AddCollaborator struct {
	cfg *Configuration
}

// NewAddCollaborator creates a new AddCollaborator object with the given
// configuration.
func NewAddCollaborator(cfg *Configuration) *AddCollaborator {
	return &AddCollaborator{cfg: cfg}
}

// Run adds the account registered under email as a collaborator.
func (a *AddCollaborator) Run(ctx context.Context, accountID, appName, email string) error {
	app, err := a.cfg.requireApp(ctx, accountID, appName, release.PermissionOwner)
	if err != nil {
		return err
	}
	target, err := a.cfg.Storage.GetAccountByEmail(ctx, email)
	if err != nil {
		return err
	}
	return a.cfg.Storage.AddCollaborator(ctx, app.ID, target.Email, target.ID)
}

// RemoveCollaborator revokes a collaborator entry. Owners may remove
// anyone but themselves; collaborators may remove only themselves.
type RemoveCollaborator struct {
	cfg *Configuration
}

// NewRemoveCollaborator creates a new RemoveCollaborator object with the
// given configuration.
func NewRemoveCollaborator(cfg *Configuration) *RemoveCollaborator {
	return &RemoveCollaborator{cfg: cfg}
}

// Run removes the collaborator registered under email.
func (r *RemoveCollaborator) Run(ctx context.Context, accountID, appName, email string) error {
	app, err := r.cfg.requireApp(ctx, accountID, appName, release.PermissionCollaborator)
	if err != nil {
		return err
	}
	if err := access.CheckRemoveCollaborator(app, accountID, email); err != nil {
		return err
	}
	return r.cfg.Storage.RemoveCollaborator(ctx, app.ID, email)
}
