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

package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/releaseutil"
	"codepush.sh/codepush/pkg/time"
)

type appRecord struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	CreatedTime time.Time `db:"created_time"`
}

type collaboratorRecord struct {
	AppID      string `db:"app_id"`
	AccountID  string `db:"account_id"`
	Email      string `db:"email"`
	Permission string `db:"permission"`
}

func (s *Postgres) AddApp(ctx context.Context, app *release.App) error {
	owner := app.Collaborators.Owner()
	if owner == "" {
		return errs.ErrInvalid("app requires an owner")
	}
	if app.ID == "" {
		app.ID = releaseutil.NewID()
	}
	return s.withTx(func(tx *sqlx.Tx) error {
		ownerID := app.Collaborators[owner].AccountID
		var count int
		err := tx.GetContext(ctx, &count, `
			SELECT COUNT(*) FROM apps a
			JOIN collaborators c ON c.app_id = a.id
			WHERE a.name = $1 AND c.account_id = $2 AND c.permission = 'Owner'
				AND a.deleted_time IS NULL`,
			app.Name, ownerID)
		if err != nil {
			return classify(err, "checking app name %s", app.Name)
		}
		if count > 0 {
			return errs.ErrAlreadyExists("app %s already exists", app.Name)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO apps (id, name, created_time) VALUES ($1, $2, $3)",
			app.ID, app.Name, app.CreatedTime); err != nil {
			return classify(err, "adding app %s", app.Name)
		}
		for email, props := range app.Collaborators {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO collaborators (app_id, account_id, email, permission)
				VALUES ($1, $2, $3, $4)`,
				app.ID, props.AccountID, email, props.Permission); err != nil {
				return classify(err, "adding collaborator %s", email)
			}
		}
		return nil
	})
}

func (s *Postgres) GetApps(ctx context.Context, accountID string) ([]release.App, error) {
	var records []appRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT a.id, a.name, a.created_time FROM apps a
		JOIN collaborators c ON c.app_id = a.id
		WHERE c.account_id = $1 AND a.deleted_time IS NULL ORDER BY a.name`, accountID)
	if err != nil {
		return nil, classify(err, "listing apps")
	}

	apps := make([]release.App, 0, len(records))
	for _, record := range records {
		collaborators, err := s.getCollaborators(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		apps = append(apps, release.App{
			ID:            record.ID,
			Name:          record.Name,
			Collaborators: collaborators,
			CreatedTime:   record.CreatedTime,
		})
	}
	return apps, nil
}

func (s *Postgres) GetApp(ctx context.Context, accountID, appID string) (*release.App, error) {
	var record appRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT a.id, a.name, a.created_time FROM apps a
		JOIN collaborators c ON c.app_id = a.id
		WHERE a.id = $1 AND c.account_id = $2 AND a.deleted_time IS NULL`, appID, accountID)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNotFound("app %s not found", appID)
	}
	if err != nil {
		return nil, classify(err, "getting app %s", appID)
	}
	collaborators, err := s.getCollaborators(ctx, appID)
	if err != nil {
		return nil, err
	}
	return &release.App{
		ID:            record.ID,
		Name:          record.Name,
		Collaborators: collaborators,
		CreatedTime:   record.CreatedTime,
	}, nil
}

func (s *Postgres) UpdateApp(ctx context.Context, app *release.App) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE apps SET name = $1 WHERE id = $2 AND deleted_time IS NULL", app.Name, app.ID)
	if err != nil {
		return classify(err, "renaming app %s", app.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound("app %s not found", app.ID)
	}
	return nil
}

// RemoveApp soft-deletes the app and its deployments. Rows stay behind so
// references from retained history never dangle.
func (s *Postgres) RemoveApp(ctx context.Context, appID string) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		if err := s.dropAcquisitionState(ctx, tx,
			"SELECT key FROM deployments WHERE app_id = $1 AND deleted_time IS NULL", appID); err != nil {
			return err
		}
		now := time.Now()
		res, err := tx.ExecContext(ctx,
			"UPDATE apps SET deleted_time = $1 WHERE id = $2 AND deleted_time IS NULL", now, appID)
		if err != nil {
			return classify(err, "removing app %s", appID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.ErrNotFound("app %s not found", appID)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE deployments SET deleted_time = $1 WHERE app_id = $2 AND deleted_time IS NULL", now, appID)
		return classify(err, "removing deployments of %s", appID)
	})
}

func (s *Postgres) TransferApp(ctx context.Context, appID string, toAccount *release.Account) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		var owner collaboratorRecord
		err := tx.GetContext(ctx, &owner, `
			SELECT app_id, account_id, email, permission FROM collaborators
			WHERE app_id = $1 AND permission = 'Owner' FOR UPDATE`, appID)
		if err == sql.ErrNoRows {
			return errs.ErrNotFound("app %s not found", appID)
		}
		if err != nil {
			return classify(err, "getting owner of app %s", appID)
		}
		if owner.Email == toAccount.Email {
			return errs.ErrAlreadyExists("account %s already owns the app", toAccount.Email)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE collaborators SET permission = 'Collaborator'
			WHERE app_id = $1 AND email = $2`, appID, owner.Email); err != nil {
			return classify(err, "demoting owner of app %s", appID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collaborators (app_id, account_id, email, permission)
			VALUES ($1, $2, $3, 'Owner')
			ON CONFLICT (app_id, email) DO UPDATE SET permission = 'Owner'`,
			appID, toAccount.ID, toAccount.Email); err != nil {
			return classify(err, "promoting new owner of app %s", appID)
		}
		return nil
	})
}

func (s *Postgres) AddCollaborator(ctx context.Context, appID, email, accountID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collaborators (app_id, account_id, email, permission)
		VALUES ($1, $2, $3, 'Collaborator')`, appID, accountID, email)
	if err != nil {
		return classify(err, "%s is already a collaborator", email)
	}
	return nil
}

func (s *Postgres) RemoveCollaborator(ctx context.Context, appID, email string) error {
	var record collaboratorRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT app_id, account_id, email, permission FROM collaborators
		WHERE app_id = $1 AND email = $2`, appID, email)
	if err == sql.ErrNoRows {
		return errs.ErrNotFound("collaborator %s not found", email)
	}
	if err != nil {
		return classify(err, "getting collaborator %s", email)
	}
	if record.Permission == string(release.PermissionOwner) {
		return errs.ErrForbidden("cannot remove the app owner")
	}
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM collaborators WHERE app_id = $1 AND email = $2", appID, email)
	return classify(err, "removing collaborator %s", email)
}

func (s *Postgres) getCollaborators(ctx context.Context, appID string) (release.CollaboratorMap, error) {
	var records []collaboratorRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT app_id, account_id, email, permission FROM collaborators WHERE app_id = $1", appID)
	if err != nil {
		return nil, classify(err, "listing collaborators of %s", appID)
	}
	collaborators := release.CollaboratorMap{}
	for _, record := range records {
		collaborators[record.Email] = release.CollaboratorProperties{
			AccountID:  record.AccountID,
			Permission: release.Permission(record.Permission),
		}
	}
	return collaborators, nil
}
