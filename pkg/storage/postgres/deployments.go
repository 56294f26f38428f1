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

type deploymentRecord struct {
	ID          string    `db:"id"`
	AppID       string    `db:"app_id"`
	Name        string    `db:"name"`
	Key         string    `db:"key"`
	CreatedTime time.Time `db:"created_time"`
}

func (r deploymentRecord) toDeployment() *release.Deployment {
	return &release.Deployment{
		ID:          r.ID,
		AppID:       r.AppID,
		Name:        r.Name,
		Key:         r.Key,
		CreatedTime: r.CreatedTime,
	}
}

func (s *Postgres) AddDeployment(ctx context.Context, appID string, deployment *release.Deployment) error {
	if deployment.ID == "" {
		deployment.ID = releaseutil.NewID()
	}
	deployment.AppID = appID
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (id, app_id, name, key, created_time)
		VALUES ($1, $2, $3, $4, $5)`,
		deployment.ID, appID, deployment.Name, deployment.Key, deployment.CreatedTime)
	return classify(err, "deployment %s already exists", deployment.Name)
}

func (s *Postgres) GetDeployments(ctx context.Context, appID string) ([]release.Deployment, error) {
	var exists int
	if err := s.db.GetContext(ctx, &exists,
		"SELECT COUNT(*) FROM apps WHERE id = $1 AND deleted_time IS NULL", appID); err != nil {
		return nil, classify(err, "getting app %s", appID)
	}
	if exists == 0 {
		return nil, errs.ErrNotFound("app %s not found", appID)
	}

	var records []deploymentRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, app_id, name, key, created_time FROM deployments
		WHERE app_id = $1 AND deleted_time IS NULL ORDER BY created_time`, appID)
	if err != nil {
		return nil, classify(err, "listing deployments of %s", appID)
	}

	deployments := make([]release.Deployment, 0, len(records))
	for _, record := range records {
		deployment := record.toDeployment()
		pkg, err := s.latestPackage(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		deployment.Package = pkg
		deployments = append(deployments, *deployment)
	}
	return deployments, nil
}

func (s *Postgres) GetDeployment(ctx context.Context, appID, deploymentID string) (*release.Deployment, error) {
	var record deploymentRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT id, app_id, name, key, created_time FROM deployments
		WHERE id = $1 AND app_id = $2 AND deleted_time IS NULL`, deploymentID, appID)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNotFound("deployment %s not found", deploymentID)
	}
	if err != nil {
		return nil, classify(err, "getting deployment %s", deploymentID)
	}
	deployment := record.toDeployment()
	if deployment.Package, err = s.latestPackage(ctx, deploymentID); err != nil {
		return nil, err
	}
	return deployment, nil
}

func (s *Postgres) UpdateDeployment(ctx context.Context, appID string, deployment *release.Deployment) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE deployments SET name = $1 WHERE id = $2 AND app_id = $3 AND deleted_time IS NULL",
		deployment.Name, deployment.ID, appID)
	if err != nil {
		return classify(err, "deployment %s already exists", deployment.Name)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound("deployment %s not found", deployment.ID)
	}
	return nil
}

func (s *Postgres) RemoveDeployment(ctx context.Context, appID, deploymentID string) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		if err := s.dropAcquisitionState(ctx, tx,
			"SELECT key FROM deployments WHERE id = $1 AND deleted_time IS NULL", deploymentID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE deployments SET deleted_time = $1
			WHERE id = $2 AND app_id = $3 AND deleted_time IS NULL`,
			time.Now(), deploymentID, appID)
		if err != nil {
			return classify(err, "removing deployment %s", deploymentID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.ErrNotFound("deployment %s not found", deploymentID)
		}
		return nil
	})
}

func (s *Postgres) GetDeploymentInfo(ctx context.Context, deploymentKey string) (*release.DeploymentInfo, error) {
	var record deploymentRecord
	err := s.db.GetContext(ctx, &record,
		"SELECT id, app_id FROM deployments WHERE key = $1 AND deleted_time IS NULL", deploymentKey)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNotFound("deployment key not found")
	}
	if err != nil {
		return nil, classify(err, "resolving deployment key")
	}
	return &release.DeploymentInfo{AppID: record.AppID, DeploymentID: record.ID}, nil
}

// dropAcquisitionState removes the metrics and client labels of every
// deployment key returned by keyQuery. Metrics are keyed by the public
// deployment key, so cascading row deletes would leave them behind.
func (s *Postgres) dropAcquisitionState(ctx context.Context, tx *sqlx.Tx, keyQuery string, args ...interface{}) error {
	var keys []string
	if err := tx.SelectContext(ctx, &keys, keyQuery, args...); err != nil {
		return classify(err, "listing deployment keys")
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM metrics WHERE deployment_key = $1", key); err != nil {
			return classify(err, "dropping metrics of %s", key)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM client_labels WHERE deployment_key = $1", key); err != nil {
			return classify(err, "dropping client labels of %s", key)
		}
	}
	return nil
}
