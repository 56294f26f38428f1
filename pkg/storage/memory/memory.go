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

// Package memory implements storage in process memory. It backs tests and
// single-node development setups; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/releaseutil"
	"codepush.sh/codepush/pkg/storage"
	"codepush.sh/codepush/pkg/time"
)

var _ storage.Storage = (*Memory)(nil)

// DriverName is the string name of this driver.
const DriverName = "Memory"

type keyRef struct {
	accountID string
	keyID     string
}

type counters struct {
	active     int64
	downloaded int64
	succeeded  int64
	failed     int64
}

// Memory is the in-memory storage driver implementation.
type Memory struct {
	sync.RWMutex

	accounts     map[string]*release.Account
	emails       map[string]string
	accessKeys   map[string]map[string]*release.AccessKey
	keyNames     map[string]keyRef
	apps         map[string]*release.App
	deployments  map[string]*release.Deployment
	depsByApp    map[string][]string
	depsByKey    map[string]string
	packages     map[string][]*release.Package
	diffs        map[string]map[string]*release.PackageDiff
	metrics      map[string]map[string]*counters
	clientLabels map[string]map[string]string
}

// NewMemory initializes a new memory driver.
func NewMemory() *Memory {
	return &Memory{
		accounts:     map[string]*release.Account{},
		emails:       map[string]string{},
		accessKeys:   map[string]map[string]*release.AccessKey{},
		keyNames:     map[string]keyRef{},
		apps:         map[string]*release.App{},
		deployments:  map[string]*release.Deployment{},
		depsByApp:    map[string][]string{},
		depsByKey:    map[string]string{},
		packages:     map[string][]*release.Package{},
		diffs:        map[string]map[string]*release.PackageDiff{},
		metrics:      map[string]map[string]*counters{},
		clientLabels: map[string]map[string]string{},
	}
}

// Name returns the name of the driver.
func (mem *Memory) Name() string { return DriverName }

func (mem *Memory) CreateAccount(_ context.Context, account *release.Account) error {
	mem.Lock()
	defer mem.Unlock()
	// Emails are unique case-folded; the stored casing is whatever the
	// account registered with.
	if _, ok := mem.emails[strings.ToLower(account.Email)]; ok {
		return errs.ErrAlreadyExists("account %s already exists", account.Email)
	}
	if account.ID == "" {
		account.ID = releaseutil.NewID()
	}
	cp := *account
	mem.accounts[account.ID] = &cp
	mem.emails[strings.ToLower(account.Email)] = account.ID
	return nil
}

func (mem *Memory) GetAccount(_ context.Context, accountID string) (*release.Account, error) {
	mem.RLock()
	defer mem.RUnlock()
	account, ok := mem.accounts[accountID]
	if !ok {
		return nil, errs.ErrNotFound("account %s not found", accountID)
	}
	cp := *account
	return &cp, nil
}

func (mem *Memory) GetAccountByEmail(_ context.Context, email string) (*release.Account, error) {
	mem.RLock()
	defer mem.RUnlock()
	id, ok := mem.emails[strings.ToLower(email)]
	if !ok {
		return nil, errs.ErrNotFound("account %s not found", email)
	}
	cp := *mem.accounts[id]
	return &cp, nil
}

func (mem *Memory) UpdateAccount(_ context.Context, account *release.Account) error {
	mem.Lock()
	defer mem.Unlock()
	stored, ok := mem.accounts[account.ID]
	if !ok {
		return errs.ErrNotFound("account %s not found", account.ID)
	}
	cp := *account
	cp.Email = stored.Email
	mem.accounts[account.ID] = &cp
	return nil
}

func (mem *Memory) AddAccessKey(_ context.Context, accountID string, key *release.AccessKey) error {
	mem.Lock()
	defer mem.Unlock()
	if _, ok := mem.accounts[accountID]; !ok {
		return errs.ErrNotFound("account %s not found", accountID)
	}
	if _, ok := mem.keyNames[key.Name]; ok {
		return errs.ErrAlreadyExists("access key already exists")
	}
	for _, existing := range mem.accessKeys[accountID] {
		if existing.FriendlyName == key.FriendlyName {
			return errs.ErrAlreadyExists("access key %s already exists", key.FriendlyName)
		}
	}
	if key.ID == "" {
		key.ID = releaseutil.NewID()
	}
	if mem.accessKeys[accountID] == nil {
		mem.accessKeys[accountID] = map[string]*release.AccessKey{}
	}
	cp := *key
	mem.accessKeys[accountID][key.ID] = &cp
	mem.keyNames[key.Name] = keyRef{accountID: accountID, keyID: key.ID}
	return nil
}

func (mem *Memory) GetAccessKeys(_ context.Context, accountID string) ([]release.AccessKey, error) {
	mem.RLock()
	defer mem.RUnlock()
	var keys []release.AccessKey
	for _, key := range mem.accessKeys[accountID] {
		keys = append(keys, *key)
	}
	return keys, nil
}

func (mem *Memory) GetAccessKey(_ context.Context, accountID, keyID string) (*release.AccessKey, error) {
	mem.RLock()
	defer mem.RUnlock()
	key, ok := mem.accessKeys[accountID][keyID]
	if !ok {
		return nil, errs.ErrNotFound("access key %s not found", keyID)
	}
	cp := *key
	return &cp, nil
}

func (mem *Memory) UpdateAccessKey(_ context.Context, accountID string, key *release.AccessKey) error {
	mem.Lock()
	defer mem.Unlock()
	stored, ok := mem.accessKeys[accountID][key.ID]
	if !ok {
		return errs.ErrNotFound("access key %s not found", key.ID)
	}
	for _, existing := range mem.accessKeys[accountID] {
		if existing.ID != key.ID && existing.FriendlyName == key.FriendlyName {
			return errs.ErrAlreadyExists("access key %s already exists", key.FriendlyName)
		}
	}
	cp := *key
	cp.Name = stored.Name
	mem.accessKeys[accountID][key.ID] = &cp
	return nil
}

func (mem *Memory) RemoveAccessKey(_ context.Context, accountID, keyID string) error {
	mem.Lock()
	defer mem.Unlock()
	key, ok := mem.accessKeys[accountID][keyID]
	if !ok {
		return errs.ErrNotFound("access key %s not found", keyID)
	}
	delete(mem.keyNames, key.Name)
	delete(mem.accessKeys[accountID], keyID)
	return nil
}

func (mem *Memory) GetAccountIDFromAccessKey(_ context.Context, keyName string) (string, error) {
	mem.RLock()
	defer mem.RUnlock()
	ref, ok := mem.keyNames[keyName]
	if !ok {
		return "", errs.ErrNotFound("access key not found")
	}
	key := mem.accessKeys[ref.accountID][ref.keyID]
	if key.Expired(time.Now()) {
		return "", errs.ErrExpired("access key expired")
	}
	return ref.accountID, nil
}

func (mem *Memory) AddApp(_ context.Context, app *release.App) error {
	mem.Lock()
	defer mem.Unlock()
	owner := app.Collaborators.Owner()
	if owner == "" {
		return errs.ErrInvalid("app requires an owner")
	}
	ownerID := app.Collaborators[owner].AccountID
	for _, existing := range mem.apps {
		if existing.Name == app.Name && existing.Collaborators[existing.Collaborators.Owner()].AccountID == ownerID {
			return errs.ErrAlreadyExists("app %s already exists", app.Name)
		}
	}
	if app.ID == "" {
		app.ID = releaseutil.NewID()
	}
	mem.apps[app.ID] = cloneApp(app)
	return nil
}

func (mem *Memory) GetApps(_ context.Context, accountID string) ([]release.App, error) {
	mem.RLock()
	defer mem.RUnlock()
	var apps []release.App
	for _, app := range mem.apps {
		if collaboratorOf(app, accountID) != "" {
			apps = append(apps, *cloneApp(app))
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps, nil
}

func (mem *Memory) GetApp(_ context.Context, accountID, appID string) (*release.App, error) {
	mem.RLock()
	defer mem.RUnlock()
	app, ok := mem.apps[appID]
	if !ok || collaboratorOf(app, accountID) == "" {
		return nil, errs.ErrNotFound("app %s not found", appID)
	}
	return cloneApp(app), nil
}

func (mem *Memory) UpdateApp(_ context.Context, app *release.App) error {
	mem.Lock()
	defer mem.Unlock()
	stored, ok := mem.apps[app.ID]
	if !ok {
		return errs.ErrNotFound("app %s not found", app.ID)
	}
	stored.Name = app.Name
	return nil
}

func (mem *Memory) RemoveApp(_ context.Context, appID string) error {
	mem.Lock()
	defer mem.Unlock()
	if _, ok := mem.apps[appID]; !ok {
		return errs.ErrNotFound("app %s not found", appID)
	}
	for _, depID := range mem.depsByApp[appID] {
		mem.dropDeployment(depID)
	}
	delete(mem.depsByApp, appID)
	delete(mem.apps, appID)
	return nil
}

func (mem *Memory) TransferApp(_ context.Context, appID string, toAccount *release.Account) error {
	mem.Lock()
	defer mem.Unlock()
	app, ok := mem.apps[appID]
	if !ok {
		return errs.ErrNotFound("app %s not found", appID)
	}
	ownerEmail := app.Collaborators.Owner()
	if ownerEmail == toAccount.Email {
		return errs.ErrAlreadyExists("account %s already owns the app", toAccount.Email)
	}
	oldOwner := app.Collaborators[ownerEmail]
	oldOwner.Permission = release.PermissionCollaborator
	app.Collaborators[ownerEmail] = oldOwner
	app.Collaborators[toAccount.Email] = release.CollaboratorProperties{
		AccountID:  toAccount.ID,
		Permission: release.PermissionOwner,
	}
	return nil
}

func (mem *Memory) AddCollaborator(_ context.Context, appID, email, accountID string) error {
	mem.Lock()
	defer mem.Unlock()
	app, ok := mem.apps[appID]
	if !ok {
		return errs.ErrNotFound("app %s not found", appID)
	}
	if _, ok := app.Collaborators[email]; ok {
		return errs.ErrAlreadyExists("%s is already a collaborator", email)
	}
	app.Collaborators[email] = release.CollaboratorProperties{
		AccountID:  accountID,
		Permission: release.PermissionCollaborator,
	}
	return nil
}

func (mem *Memory) RemoveCollaborator(_ context.Context, appID, email string) error {
	mem.Lock()
	defer mem.Unlock()
	app, ok := mem.apps[appID]
	if !ok {
		return errs.ErrNotFound("app %s not found", appID)
	}
	props, ok := app.Collaborators[email]
	if !ok {
		return errs.ErrNotFound("collaborator %s not found", email)
	}
	if props.Permission == release.PermissionOwner {
		return errs.ErrForbidden("cannot remove the app owner")
	}
	delete(app.Collaborators, email)
	return nil
}

func (mem *Memory) AddDeployment(_ context.Context, appID string, deployment *release.Deployment) error {
	mem.Lock()
	defer mem.Unlock()
	if _, ok := mem.apps[appID]; !ok {
		return errs.ErrNotFound("app %s not found", appID)
	}
	for _, depID := range mem.depsByApp[appID] {
		if mem.deployments[depID].Name == deployment.Name {
			return errs.ErrAlreadyExists("deployment %s already exists", deployment.Name)
		}
	}
	if _, ok := mem.depsByKey[deployment.Key]; ok {
		return errs.ErrAlreadyExists("deployment key already in use")
	}
	if deployment.ID == "" {
		deployment.ID = releaseutil.NewID()
	}
	deployment.AppID = appID
	cp := *deployment
	cp.Package = nil
	mem.deployments[deployment.ID] = &cp
	mem.depsByApp[appID] = append(mem.depsByApp[appID], deployment.ID)
	mem.depsByKey[deployment.Key] = deployment.ID
	return nil
}

func (mem *Memory) GetDeployments(_ context.Context, appID string) ([]release.Deployment, error) {
	mem.RLock()
	defer mem.RUnlock()
	if _, ok := mem.apps[appID]; !ok {
		return nil, errs.ErrNotFound("app %s not found", appID)
	}
	var deployments []release.Deployment
	for _, depID := range mem.depsByApp[appID] {
		deployments = append(deployments, *mem.deploymentWithPackage(depID))
	}
	return deployments, nil
}

func (mem *Memory) GetDeployment(_ context.Context, appID, deploymentID string) (*release.Deployment, error) {
	mem.RLock()
	defer mem.RUnlock()
	dep, ok := mem.deployments[deploymentID]
	if !ok || dep.AppID != appID {
		return nil, errs.ErrNotFound("deployment %s not found", deploymentID)
	}
	return mem.deploymentWithPackage(deploymentID), nil
}

func (mem *Memory) UpdateDeployment(_ context.Context, appID string, deployment *release.Deployment) error {
	mem.Lock()
	defer mem.Unlock()
	stored, ok := mem.deployments[deployment.ID]
	if !ok || stored.AppID != appID {
		return errs.ErrNotFound("deployment %s not found", deployment.ID)
	}
	for _, depID := range mem.depsByApp[appID] {
		if depID != deployment.ID && mem.deployments[depID].Name == deployment.Name {
			return errs.ErrAlreadyExists("deployment %s already exists", deployment.Name)
		}
	}
	stored.Name = deployment.Name
	return nil
}

func (mem *Memory) RemoveDeployment(_ context.Context, appID, deploymentID string) error {
	mem.Lock()
	defer mem.Unlock()
	dep, ok := mem.deployments[deploymentID]
	if !ok || dep.AppID != appID {
		return errs.ErrNotFound("deployment %s not found", deploymentID)
	}
	ids := mem.depsByApp[appID]
	for i, id := range ids {
		if id == deploymentID {
			mem.depsByApp[appID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	mem.dropDeployment(deploymentID)
	return nil
}

func (mem *Memory) GetDeploymentInfo(_ context.Context, deploymentKey string) (*release.DeploymentInfo, error) {
	mem.RLock()
	defer mem.RUnlock()
	depID, ok := mem.depsByKey[deploymentKey]
	if !ok {
		return nil, errs.ErrNotFound("deployment key not found")
	}
	return &release.DeploymentInfo{
		AppID:        mem.deployments[depID].AppID,
		DeploymentID: depID,
	}, nil
}

func (mem *Memory) CommitPackage(_ context.Context, deploymentID string, pkg *release.Package, checks storage.CommitChecks) (*release.Package, error) {
	mem.Lock()
	defer mem.Unlock()
	if _, ok := mem.deployments[deploymentID]; !ok {
		return nil, errs.ErrNotFound("deployment %s not found", deploymentID)
	}
	history := mem.packages[deploymentID]
	if len(history) > 0 {
		latest := history[len(history)-1]
		if checks.EnsureNoUnfinishedRollout && !latest.IsDisabled && releaseutil.IsUnfinishedRollout(latest.Rollout) {
			return nil, errs.ErrConflict("please update the previous rollout or promote a new release")
		}
		if checks.EnsureUniqueHash && latest.PackageHash == pkg.PackageHash && latest.AppVersion == pkg.AppVersion {
			return nil, errs.ErrConflict("the uploaded package was already released")
		}
	}

	cp := *pkg
	if cp.ID == "" {
		cp.ID = releaseutil.NewID()
	}
	cp.DeploymentID = deploymentID
	cp.Label = releaseutil.NextLabel(len(history))
	cp.DiffPackageMap = nil
	mem.packages[deploymentID] = append(history, &cp)

	out := cp
	return &out, nil
}

func (mem *Memory) GetPackageHistory(_ context.Context, deploymentID string) ([]release.Package, error) {
	mem.RLock()
	defer mem.RUnlock()
	if _, ok := mem.deployments[deploymentID]; !ok {
		return nil, errs.ErrNotFound("deployment %s not found", deploymentID)
	}
	history := make([]release.Package, 0, len(mem.packages[deploymentID]))
	for _, pkg := range mem.packages[deploymentID] {
		history = append(history, *mem.packageWithDiffs(pkg))
	}
	return history, nil
}

func (mem *Memory) UpdatePackage(_ context.Context, pkg *release.Package) error {
	mem.Lock()
	defer mem.Unlock()
	for _, stored := range mem.packages[pkg.DeploymentID] {
		if stored.ID == pkg.ID {
			stored.AppVersion = pkg.AppVersion
			stored.Description = pkg.Description
			stored.IsDisabled = pkg.IsDisabled
			stored.IsMandatory = pkg.IsMandatory
			stored.Rollout = pkg.Rollout
			return nil
		}
	}
	return errs.ErrNotFound("package %s not found", pkg.ID)
}

func (mem *Memory) ClearPackageHistory(_ context.Context, deploymentID string) error {
	mem.Lock()
	defer mem.Unlock()
	if _, ok := mem.deployments[deploymentID]; !ok {
		return errs.ErrNotFound("deployment %s not found", deploymentID)
	}
	for _, pkg := range mem.packages[deploymentID] {
		delete(mem.diffs, pkg.ID)
	}
	delete(mem.packages, deploymentID)
	return nil
}

func (mem *Memory) AddPackageDiff(_ context.Context, diff *release.PackageDiff) error {
	mem.Lock()
	defer mem.Unlock()
	if diff.ID == "" {
		diff.ID = releaseutil.NewID()
	}
	if mem.diffs[diff.PackageID] == nil {
		mem.diffs[diff.PackageID] = map[string]*release.PackageDiff{}
	}
	cp := *diff
	mem.diffs[diff.PackageID][diff.SourcePackageHash] = &cp
	return nil
}

func (mem *Memory) IncrementMetric(_ context.Context, deploymentKey, label string, metric release.MetricType) error {
	mem.Lock()
	defer mem.Unlock()
	*mem.counter(deploymentKey, label, metric)++
	return nil
}

func (mem *Memory) DecrementMetric(_ context.Context, deploymentKey, label string, metric release.MetricType) error {
	mem.Lock()
	defer mem.Unlock()
	c := mem.counter(deploymentKey, label, metric)
	if *c > 0 {
		*c--
	}
	return nil
}

func (mem *Memory) GetMetrics(_ context.Context, deploymentKey string) (map[string]release.Metrics, error) {
	mem.RLock()
	defer mem.RUnlock()
	out := map[string]release.Metrics{}
	for label, c := range mem.metrics[deploymentKey] {
		out[label] = release.Metrics{
			Active:    c.active,
			Downloads: c.downloaded,
			Installed: c.succeeded,
			Failed:    c.failed,
		}
	}
	return out, nil
}

func (mem *Memory) GetClientLabel(_ context.Context, deploymentKey, clientID string) (string, error) {
	mem.RLock()
	defer mem.RUnlock()
	return mem.clientLabels[deploymentKey][clientID], nil
}

func (mem *Memory) SetClientLabel(_ context.Context, deploymentKey, clientID, label string) error {
	mem.Lock()
	defer mem.Unlock()
	if mem.clientLabels[deploymentKey] == nil {
		mem.clientLabels[deploymentKey] = map[string]string{}
	}
	mem.clientLabels[deploymentKey][clientID] = label
	return nil
}

// counter returns the addressed counter, creating it at zero. Callers hold
// the write lock.
func (mem *Memory) counter(deploymentKey, label string, metric release.MetricType) *int64 {
	if mem.metrics[deploymentKey] == nil {
		mem.metrics[deploymentKey] = map[string]*counters{}
	}
	c, ok := mem.metrics[deploymentKey][label]
	if !ok {
		c = &counters{}
		mem.metrics[deploymentKey][label] = c
	}
	switch metric {
	case release.MetricActive:
		return &c.active
	case release.MetricDownloaded:
		return &c.downloaded
	case release.MetricSucceeded:
		return &c.succeeded
	default:
		return &c.failed
	}
}

// dropDeployment removes a deployment and everything hanging off it. Callers
// hold the write lock.
func (mem *Memory) dropDeployment(deploymentID string) {
	dep, ok := mem.deployments[deploymentID]
	if !ok {
		return
	}
	for _, pkg := range mem.packages[deploymentID] {
		delete(mem.diffs, pkg.ID)
	}
	delete(mem.packages, deploymentID)
	delete(mem.metrics, dep.Key)
	delete(mem.clientLabels, dep.Key)
	delete(mem.depsByKey, dep.Key)
	delete(mem.deployments, deploymentID)
}

// deploymentWithPackage clones a deployment and attaches its latest release.
// Callers hold at least the read lock.
func (mem *Memory) deploymentWithPackage(deploymentID string) *release.Deployment {
	cp := *mem.deployments[deploymentID]
	if history := mem.packages[deploymentID]; len(history) > 0 {
		cp.Package = mem.packageWithDiffs(history[len(history)-1])
	}
	return &cp
}

func (mem *Memory) packageWithDiffs(pkg *release.Package) *release.Package {
	cp := *pkg
	if diffs := mem.diffs[pkg.ID]; len(diffs) > 0 {
		cp.DiffPackageMap = map[string]release.DiffInfo{}
		for sourceHash, diff := range diffs {
			cp.DiffPackageMap[sourceHash] = release.DiffInfo{
				Size:     diff.Size,
				BlobPath: diff.BlobPath,
			}
		}
	}
	return &cp
}

func cloneApp(app *release.App) *release.App {
	cp := *app
	cp.Collaborators = release.CollaboratorMap{}
	for email, props := range app.Collaborators {
		cp.Collaborators[email] = props
	}
	cp.Deployments = append([]string(nil), app.Deployments...)
	return &cp
}

func collaboratorOf(app *release.App, accountID string) string {
	for email, props := range app.Collaborators {
		if props.AccountID == accountID {
			return email
		}
	}
	return ""
}
