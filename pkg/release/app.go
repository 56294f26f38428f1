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

import (
	"codepush.sh/codepush/pkg/time"
)

// Permission is an account's level of access to an app. Owner implies
// Collaborator.
type Permission string

const (
	// PermissionOwner marks the single owning collaborator of an app.
	PermissionOwner Permission = "Owner"
	// PermissionCollaborator marks a non-owning collaborator.
	PermissionCollaborator Permission = "Collaborator"
)

// Covers reports whether p grants at least the required permission.
func (p Permission) Covers(required Permission) bool {
	if p == PermissionOwner {
		return true
	}
	return p == required
}

// CollaboratorProperties describes one collaborator entry of an app.
type CollaboratorProperties struct {
	AccountID        string     `json:"accountId,omitempty"`
	Permission       Permission `json:"permission"`
	IsCurrentAccount bool       `json:"isCurrentAccount,omitempty"`
}

// CollaboratorMap maps a collaborator's email to their properties. Every app
// has exactly one entry with Owner permission.
type CollaboratorMap map[string]CollaboratorProperties

// Owner returns the email holding Owner permission, or "".
func (m CollaboratorMap) Owner() string {
	for email, props := range m {
		if props.Permission == PermissionOwner {
			return email
		}
	}
	return ""
}

// App is a registered application. Name is unique per owning account.
type App struct {
	ID            string          `json:"-"`
	Name          string          `json:"name"`
	Collaborators CollaboratorMap `json:"collaborators,omitempty"`
	Deployments   []string        `json:"deployments,omitempty"`
	CreatedTime   time.Time       `json:"createdTime"`
}

// Deployment is a named release channel within an app. Key is the public
// identifier clients present when asking for updates.
type Deployment struct {
	ID          string    `json:"-"`
	AppID       string    `json:"-"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	CreatedTime time.Time `json:"createdTime"`

	// Package is the latest live release, if any.
	Package *Package `json:"package"`
}

// DeploymentInfo locates a deployment from its public key.
type DeploymentInfo struct {
	AppID        string
	DeploymentID string
}
