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

// Package storage defines the relational store every driver implements:
// accounts and access keys, apps with their collaborator maps, deployments,
// the append-only package history, diff records, and acquisition metrics.
package storage

import (
	"context"

	"codepush.sh/codepush/pkg/release"
)

// AccountStore manages administrator identities.
type AccountStore interface {
	// CreateAccount stores a new account. The email must be unused.
	CreateAccount(ctx context.Context, account *release.Account) error
	// GetAccount returns the account with the given id.
	GetAccount(ctx context.Context, accountID string) (*release.Account, error)
	// GetAccountByEmail returns the account registered under email.
	GetAccountByEmail(ctx context.Context, email string) (*release.Account, error)
	// UpdateAccount persists changed account fields, such as newly linked
	// auth providers.
	UpdateAccount(ctx context.Context, account *release.Account) error
}

// AccessKeyStore manages bearer tokens.
type AccessKeyStore interface {
	// AddAccessKey stores a new key for the account. The key name (the
	// token itself) and the friendly name must both be unused.
	AddAccessKey(ctx context.Context, accountID string, key *release.AccessKey) error
	// GetAccessKeys lists the account's keys, unmasked.
	GetAccessKeys(ctx context.Context, accountID string) ([]release.AccessKey, error)
	// GetAccessKey returns one key by id.
	GetAccessKey(ctx context.Context, accountID, keyID string) (*release.AccessKey, error)
	// UpdateAccessKey persists a changed friendly name or expiry.
	UpdateAccessKey(ctx context.Context, accountID string, key *release.AccessKey) error
	// RemoveAccessKey deletes a key.
	RemoveAccessKey(ctx context.Context, accountID, keyID string) error
	// GetAccountIDFromAccessKey resolves a presented token to its account.
	// Unknown tokens yield NotFound; expired ones yield Expired.
	GetAccountIDFromAccessKey(ctx context.Context, keyName string) (string, error)
}

// AppStore manages apps and their collaborator maps.
type AppStore interface {
	// AddApp stores a new app along with its collaborator map, which must
	// contain exactly one Owner entry.
	AddApp(ctx context.Context, app *release.App) error
	// GetApps lists every app the account owns or collaborates on.
	GetApps(ctx context.Context, accountID string) ([]release.App, error)
	// GetApp returns an app the account can see. Apps the account is no
	// collaborator of yield NotFound.
	GetApp(ctx context.Context, accountID, appID string) (*release.App, error)
	// UpdateApp persists a changed name.
	UpdateApp(ctx context.Context, app *release.App) error
	// RemoveApp deletes an app and everything under it.
	RemoveApp(ctx context.Context, appID string) error
	// TransferApp makes toAccount the app's single Owner and demotes the
	// previous owner to Collaborator, atomically.
	TransferApp(ctx context.Context, appID string, toAccount *release.Account) error
	// AddCollaborator grants an account Collaborator access.
	AddCollaborator(ctx context.Context, appID, email, accountID string) error
	// RemoveCollaborator revokes a non-owner collaborator entry.
	RemoveCollaborator(ctx context.Context, appID, email string) error
}

// DeploymentStore manages the release channels of an app.
type DeploymentStore interface {
	// AddDeployment stores a new deployment. The name must be unused
	// within the app and the key unused globally.
	AddDeployment(ctx context.Context, appID string, deployment *release.Deployment) error
	// GetDeployments lists the app's deployments with their latest package.
	GetDeployments(ctx context.Context, appID string) ([]release.Deployment, error)
	// GetDeployment returns one deployment with its latest package.
	GetDeployment(ctx context.Context, appID, deploymentID string) (*release.Deployment, error)
	// UpdateDeployment persists a changed name.
	UpdateDeployment(ctx context.Context, appID string, deployment *release.Deployment) error
	// RemoveDeployment deletes a deployment and its history.
	RemoveDeployment(ctx context.Context, appID, deploymentID string) error
	// GetDeploymentInfo resolves a public deployment key to its ids.
	GetDeploymentInfo(ctx context.Context, deploymentKey string) (*release.DeploymentInfo, error)
}

// CommitChecks selects which history invariants CommitPackage enforces for
// the release method at hand. Uploads and promotions check both; rollbacks
// check neither, their preconditions are validated against explicit labels
// by the caller.
type CommitChecks struct {
	// EnsureNoUnfinishedRollout rejects the commit with Conflict while the
	// latest release has a rollout below 100.
	EnsureNoUnfinishedRollout bool
	// EnsureUniqueHash rejects the commit with Conflict when the latest
	// release already carries the same package hash and app version.
	EnsureUniqueHash bool
}

// PackageStore manages each deployment's append-only history.
type PackageStore interface {
	// CommitPackage appends pkg to the deployment's history inside one
	// transaction: it validates checks against the current latest release,
	// assigns the next label, and inserts. The stored package is returned.
	CommitPackage(ctx context.Context, deploymentID string, pkg *release.Package, checks CommitChecks) (*release.Package, error)
	// GetPackageHistory returns the deployment's releases in ascending
	// label order with their diff maps attached.
	GetPackageHistory(ctx context.Context, deploymentID string) ([]release.Package, error)
	// UpdatePackage persists edited metadata of one release: description,
	// disabled and mandatory flags, rollout, and target app version.
	UpdatePackage(ctx context.Context, pkg *release.Package) error
	// ClearPackageHistory removes every release of the deployment.
	ClearPackageHistory(ctx context.Context, deploymentID string) error
	// AddPackageDiff records a stored diff archive. Replays on the same
	// (package, source hash) pair overwrite the previous record.
	AddPackageDiff(ctx context.Context, diff *release.PackageDiff) error
}

// MetricsStore keeps the acquisition counters. Counters are advisory: their
// writes must never fail a client-facing request.
type MetricsStore interface {
	// IncrementMetric adds one to a per-label counter, creating it at 1.
	IncrementMetric(ctx context.Context, deploymentKey, label string, metric release.MetricType) error
	// DecrementMetric subtracts one from a counter, clamping at zero.
	DecrementMetric(ctx context.Context, deploymentKey, label string, metric release.MetricType) error
	// GetMetrics returns every counter of the deployment grouped by label.
	GetMetrics(ctx context.Context, deploymentKey string) (map[string]release.Metrics, error)
	// GetClientLabel returns the label a device last reported active, or
	// "" when the device is unknown.
	GetClientLabel(ctx context.Context, deploymentKey, clientID string) (string, error)
	// SetClientLabel records the label a device now runs.
	SetClientLabel(ctx context.Context, deploymentKey, clientID, label string) error
}

// Storage is the full relational store.
type Storage interface {
	AccountStore
	AccessKeyStore
	AppStore
	DeploymentStore
	PackageStore
	MetricsStore

	// Name returns the name of the driver.
	Name() string
}
