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
	"codepush.sh/codepush/pkg/storage"
	"codepush.sh/codepush/pkg/time"
)

const packageColumns = `id, deployment_id, label, label_num, app_version, description,
	is_disabled, is_mandatory, rollout, size, package_hash, blob_path,
	manifest_blob_path, release_method, original_label, original_deployment,
	released_by, upload_time`

type packageRecord struct {
	ID                 string    `db:"id"`
	DeploymentID       string    `db:"deployment_id"`
	Label              string    `db:"label"`
	LabelNum           int       `db:"label_num"`
	AppVersion         string    `db:"app_version"`
	Description        string    `db:"description"`
	IsDisabled         bool      `db:"is_disabled"`
	IsMandatory        bool      `db:"is_mandatory"`
	Rollout            *int      `db:"rollout"`
	Size               int64     `db:"size"`
	PackageHash        string    `db:"package_hash"`
	BlobPath           string    `db:"blob_path"`
	ManifestBlobPath   string    `db:"manifest_blob_path"`
	ReleaseMethod      string    `db:"release_method"`
	OriginalLabel      string    `db:"original_label"`
	OriginalDeployment string    `db:"original_deployment"`
	ReleasedBy         string    `db:"released_by"`
	UploadTime         time.Time `db:"upload_time"`
}

func (r packageRecord) toPackage() *release.Package {
	return &release.Package{
		ID:                 r.ID,
		DeploymentID:       r.DeploymentID,
		Label:              r.Label,
		AppVersion:         r.AppVersion,
		Description:        r.Description,
		IsDisabled:         r.IsDisabled,
		IsMandatory:        r.IsMandatory,
		Rollout:            r.Rollout,
		Size:               r.Size,
		PackageHash:        r.PackageHash,
		BlobPath:           r.BlobPath,
		ManifestBlobPath:   r.ManifestBlobPath,
		ReleaseMethod:      release.ReleaseMethod(r.ReleaseMethod),
		OriginalLabel:      r.OriginalLabel,
		OriginalDeployment: r.OriginalDeployment,
		ReleasedBy:         r.ReleasedBy,
		UploadTime:         r.UploadTime,
	}
}

func (s *Postgres) CommitPackage(ctx context.Context, deploymentID string, pkg *release.Package, checks storage.CommitChecks) (*release.Package, error) {
	var committed *release.Package
	err := s.withTx(func(tx *sqlx.Tx) error {
		// The deployment row is the commit lock: concurrent releases to
		// the same deployment serialize here, so label numbers never
		// collide.
		var depID string
		err := tx.GetContext(ctx, &depID,
			"SELECT id FROM deployments WHERE id = $1 AND deleted_time IS NULL FOR UPDATE", deploymentID)
		if err == sql.ErrNoRows {
			return errs.ErrNotFound("deployment %s not found", deploymentID)
		}
		if err != nil {
			return classify(err, "locking deployment %s", deploymentID)
		}

		var latest packageRecord
		haveLatest := true
		err = tx.GetContext(ctx, &latest, `
			SELECT `+packageColumns+` FROM packages
			WHERE deployment_id = $1 AND deleted_time IS NULL
			ORDER BY label_num DESC LIMIT 1`, deploymentID)
		if err == sql.ErrNoRows {
			haveLatest = false
		} else if err != nil {
			return classify(err, "reading history of %s", deploymentID)
		}

		labelNum := 1
		if haveLatest {
			if checks.EnsureNoUnfinishedRollout && !latest.IsDisabled && releaseutil.IsUnfinishedRollout(latest.Rollout) {
				return errs.ErrConflict("please update the previous rollout or promote a new release")
			}
			if checks.EnsureUniqueHash && latest.PackageHash == pkg.PackageHash && latest.AppVersion == pkg.AppVersion {
				return errs.ErrConflict("the uploaded package was already released")
			}
			labelNum = latest.LabelNum + 1
		}

		cp := *pkg
		if cp.ID == "" {
			cp.ID = releaseutil.NewID()
		}
		cp.DeploymentID = deploymentID
		cp.Label = releaseutil.FormatLabel(labelNum)
		cp.DiffPackageMap = nil

		_, err = tx.ExecContext(ctx, `
			INSERT INTO packages (`+packageColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			cp.ID, cp.DeploymentID, cp.Label, labelNum, cp.AppVersion, cp.Description,
			cp.IsDisabled, cp.IsMandatory, cp.Rollout, cp.Size, cp.PackageHash, cp.BlobPath,
			cp.ManifestBlobPath, cp.ReleaseMethod, cp.OriginalLabel, cp.OriginalDeployment,
			cp.ReleasedBy, cp.UploadTime)
		if err != nil {
			return classify(err, "committing release %s", cp.Label)
		}
		committed = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *Postgres) GetPackageHistory(ctx context.Context, deploymentID string) ([]release.Package, error) {
	var exists int
	if err := s.db.GetContext(ctx, &exists,
		"SELECT COUNT(*) FROM deployments WHERE id = $1 AND deleted_time IS NULL", deploymentID); err != nil {
		return nil, classify(err, "getting deployment %s", deploymentID)
	}
	if exists == 0 {
		return nil, errs.ErrNotFound("deployment %s not found", deploymentID)
	}

	var records []packageRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT `+packageColumns+` FROM packages
		WHERE deployment_id = $1 AND deleted_time IS NULL ORDER BY label_num`, deploymentID)
	if err != nil {
		return nil, classify(err, "reading history of %s", deploymentID)
	}
	if len(records) == 0 {
		return []release.Package{}, nil
	}

	history := make([]release.Package, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, record := range records {
		history = append(history, *record.toPackage())
		ids = append(ids, record.ID)
	}
	if err := s.attachDiffs(ctx, history, ids); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Postgres) UpdatePackage(ctx context.Context, pkg *release.Package) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE packages SET app_version = $1, description = $2, is_disabled = $3,
			is_mandatory = $4, rollout = $5
		WHERE id = $6 AND deployment_id = $7 AND deleted_time IS NULL`,
		pkg.AppVersion, pkg.Description, pkg.IsDisabled, pkg.IsMandatory, pkg.Rollout,
		pkg.ID, pkg.DeploymentID)
	if err != nil {
		return classify(err, "updating release %s", pkg.Label)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound("package %s not found", pkg.ID)
	}
	return nil
}

func (s *Postgres) ClearPackageHistory(ctx context.Context, deploymentID string) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		var depID string
		err := tx.GetContext(ctx, &depID,
			"SELECT id FROM deployments WHERE id = $1 AND deleted_time IS NULL FOR UPDATE", deploymentID)
		if err == sql.ErrNoRows {
			return errs.ErrNotFound("deployment %s not found", deploymentID)
		}
		if err != nil {
			return classify(err, "locking deployment %s", deploymentID)
		}
		// Soft delete. Rows stay so diff records never dangle; the next
		// release starts over at v1.
		_, err = tx.ExecContext(ctx, `
			UPDATE packages SET deleted_time = $1
			WHERE deployment_id = $2 AND deleted_time IS NULL`,
			time.Now(), deploymentID)
		return classify(err, "clearing history of %s", deploymentID)
	})
}

func (s *Postgres) AddPackageDiff(ctx context.Context, diff *release.PackageDiff) error {
	if diff.ID == "" {
		diff.ID = releaseutil.NewID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO package_diffs (id, package_id, source_package_hash, size, blob_path)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (package_id, source_package_hash)
		DO UPDATE SET size = EXCLUDED.size, blob_path = EXCLUDED.blob_path`,
		diff.ID, diff.PackageID, diff.SourcePackageHash, diff.Size, diff.BlobPath)
	return classify(err, "recording diff for %s", diff.PackageID)
}

// latestPackage returns the newest release of a deployment with its diff
// map, or nil when the history is empty.
func (s *Postgres) latestPackage(ctx context.Context, deploymentID string) (*release.Package, error) {
	var record packageRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT `+packageColumns+` FROM packages
		WHERE deployment_id = $1 AND deleted_time IS NULL
		ORDER BY label_num DESC LIMIT 1`, deploymentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "reading latest release of %s", deploymentID)
	}
	pkg := record.toPackage()
	history := []release.Package{*pkg}
	if err := s.attachDiffs(ctx, history, []string{record.ID}); err != nil {
		return nil, err
	}
	return &history[0], nil
}

type diffRecord struct {
	PackageID         string `db:"package_id"`
	SourcePackageHash string `db:"source_package_hash"`
	Size              int64  `db:"size"`
	BlobPath          string `db:"blob_path"`
}

func (s *Postgres) attachDiffs(ctx context.Context, history []release.Package, packageIDs []string) error {
	query, args, err := sqlx.In(`
		SELECT package_id, source_package_hash, size, blob_path
		FROM package_diffs WHERE package_id IN (?)`, packageIDs)
	if err != nil {
		return errs.Wrap(err, errs.Internal, "building diff query")
	}
	var records []diffRecord
	if err := s.db.SelectContext(ctx, &records, s.db.Rebind(query), args...); err != nil {
		return classify(err, "reading diffs")
	}

	byPackage := map[string]map[string]release.DiffInfo{}
	for _, record := range records {
		if byPackage[record.PackageID] == nil {
			byPackage[record.PackageID] = map[string]release.DiffInfo{}
		}
		byPackage[record.PackageID][record.SourcePackageHash] = release.DiffInfo{
			Size:     record.Size,
			BlobPath: record.BlobPath,
		}
	}
	for i := range history {
		history[i].DiffPackageMap = byPackage[history[i].ID]
	}
	return nil
}
