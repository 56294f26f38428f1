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

package access

import (
	"testing"

	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
)

func testApp() *release.App {
	return &release.App{
		Name: "MyApp",
		Collaborators: release.CollaboratorMap{
			"owner@example.com":  {AccountID: "acc-owner", Permission: release.PermissionOwner},
			"collab@example.com": {AccountID: "acc-collab", Permission: release.PermissionCollaborator},
		},
	}
}

func TestRequire(t *testing.T) {
	app := testApp()

	tests := []struct {
		name      string
		accountID string
		required  release.Permission
		wantErr   bool
	}{
		{"owner may do owner things", "acc-owner", release.PermissionOwner, false},
		{"owner covers collaborator", "acc-owner", release.PermissionCollaborator, false},
		{"collaborator may collaborate", "acc-collab", release.PermissionCollaborator, false},
		{"collaborator is not owner", "acc-collab", release.PermissionOwner, true},
		{"stranger has nothing", "acc-stranger", release.PermissionCollaborator, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Require(app, tt.accountID, tt.required)
			if (err != nil) != tt.wantErr {
				t.Errorf("Require() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errs.IsKind(err, errs.Forbidden) {
				t.Errorf("error kind = %v, want Forbidden", errs.KindOf(err))
			}
		})
	}
}

func TestCheckRemoveCollaborator(t *testing.T) {
	app := testApp()

	if err := CheckRemoveCollaborator(app, "acc-owner", "owner@example.com"); !errs.IsKind(err, errs.Forbidden) {
		t.Errorf("removing the owner: got %v, want Forbidden", err)
	}
	if err := CheckRemoveCollaborator(app, "acc-collab", "collab@example.com"); err != nil {
		t.Errorf("self-removal should be allowed, got %v", err)
	}
	if err := CheckRemoveCollaborator(app, "acc-owner", "collab@example.com"); err != nil {
		t.Errorf("owner removing a collaborator should be allowed, got %v", err)
	}
	if err := CheckRemoveCollaborator(app, "acc-collab", "owner@example.com"); !errs.IsKind(err, errs.Forbidden) {
		t.Errorf("collaborator removing the owner: got %v, want Forbidden", err)
	}
	if err := CheckRemoveCollaborator(app, "acc-owner", "ghost@example.com"); !errs.IsNotFound(err) {
		t.Errorf("unknown collaborator: got %v, want NotFound", err)
	}
}

func TestMaskKeys(t *testing.T) {
	keys := []release.AccessKey{
		{Name: "ck_secret1", FriendlyName: "one"},
		{Name: "ck_secret2", FriendlyName: "two"},
	}
	masked := MaskKeys(keys)
	for i, key := range masked {
		if key.Name != release.AccessKeyMask {
			t.Errorf("key %d name = %q, want %q", i, key.Name, release.AccessKeyMask)
		}
	}
	if keys[0].Name != "ck_secret1" {
		t.Error("masking must not mutate the input")
	}
}

func TestMarkCurrentAccount(t *testing.T) {
	app := testApp()
	MarkCurrentAccount(app, "acc-collab")
	if !app.Collaborators["collab@example.com"].IsCurrentAccount {
		t.Error("caller's entry should be flagged")
	}
	if app.Collaborators["owner@example.com"].IsCurrentAccount {
		t.Error("other entries must stay unflagged")
	}
}
