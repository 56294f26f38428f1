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

// Package access decides what an authenticated account may do to an app.
// Authentication itself happens in the HTTP layer; everything here works on
// an already-resolved account id.
package access

import (
	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
)

// PermissionOf returns the account's permission on the app along with the
// collaborator email it is registered under.
func PermissionOf(app *release.App, accountID string) (release.Permission, string, bool) {
	for email, props := range app.Collaborators {
		if props.AccountID == accountID {
			return props.Permission, email, true
		}
	}
	return "", "", false
}

// Require fails with Forbidden unless the account holds at least the
// required permission on the app.
func Require(app *release.App, accountID string, required release.Permission) error {
	permission, _, ok := PermissionOf(app, accountID)
	if !ok || !permission.Covers(required) {
		return errs.ErrForbidden("account does not have %s permission on app %s", required, app.Name)
	}
	return nil
}

// CheckRemoveCollaborator applies the collaborator-removal rules: the owner
// entry can never be removed, a collaborator may always remove themselves,
// and removing anyone else takes Owner permission.
func CheckRemoveCollaborator(app *release.App, accountID, targetEmail string) error {
	target, ok := app.Collaborators[targetEmail]
	if !ok {
		return errs.ErrNotFound("collaborator %s not found", targetEmail)
	}
	if target.Permission == release.PermissionOwner {
		return errs.ErrForbidden("cannot remove the app owner")
	}
	if target.AccountID == accountID {
		return nil
	}
	return Require(app, accountID, release.PermissionOwner)
}

// MaskKeys hides the secret token of every key for listings.
func MaskKeys(keys []release.AccessKey) []release.AccessKey {
	masked := make([]release.AccessKey, len(keys))
	for i, key := range keys {
		masked[i] = key.Masked()
	}
	return masked
}

// MarkCurrentAccount flags the caller's own entry in a collaborator map so
// clients can render "you" without comparing ids.
func MarkCurrentAccount(app *release.App, accountID string) {
	for email, props := range app.Collaborators {
		props.IsCurrentAccount = props.AccountID == accountID
		app.Collaborators[email] = props
	}
}
