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
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/storage"
	"codepush.sh/codepush/pkg/time"
)

func newTestFixture(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error creating sql mock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return NewFromDB(sqlx.NewDb(sqlDB, "postgres"), t.Logf), mock
}

var packageTestColumns = []string{
	"id", "deployment_id", "label", "label_num", "app_version", "description",
	"is_disabled", "is_mandatory", "rollout", "size", "package_hash", "blob_path",
	"manifest_blob_path", "release_method", "original_label", "original_deployment",
	"released_by", "upload_time",
}

func TestPostgresName(t *testing.T) {
	driver, _ := newTestFixture(t)
	if driver.Name() != DriverName {
		t.Errorf("Name() = %q, want %q", driver.Name(), DriverName)
	}
}

func TestGetDeploymentInfo(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.
		ExpectQuery(regexp.QuoteMeta("SELECT id, app_id FROM deployments WHERE key = $1 AND deleted_time IS NULL")).
		WithArgs("dk_prod").
		WillReturnRows(mock.NewRows([]string{"id", "app_id"}).AddRow("dep-1", "app-1")).
		RowsWillBeClosed()

	info, err := driver.GetDeploymentInfo(context.Background(), "dk_prod")
	if err != nil {
		t.Fatal(err)
	}
	if info.AppID != "app-1" || info.DeploymentID != "dep-1" {
		t.Errorf("unexpected info %+v", info)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("sql expectations weren't met: %v", err)
	}
}

func TestGetDeploymentInfoNotFound(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.
		ExpectQuery(regexp.QuoteMeta("SELECT id, app_id FROM deployments WHERE key = $1 AND deleted_time IS NULL")).
		WithArgs("dk_unknown").
		WillReturnRows(mock.NewRows([]string{"id", "app_id"})).
		RowsWillBeClosed()

	if _, err := driver.GetDeploymentInfo(context.Background(), "dk_unknown"); !errs.IsNotFound(err) {
		t.Errorf("got %v, want NotFound", err)
	}
}

func TestGetAccountByEmailFoldsCase(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.
		ExpectQuery(regexp.QuoteMeta("SELECT id, email, name, created_time FROM accounts WHERE LOWER(email) = LOWER($1)")).
		WithArgs("Dev@Example.com").
		WillReturnRows(mock.NewRows([]string{"id", "email", "name", "created_time"}).
			AddRow("acc-1", "dev@example.com", "dev", int64(1700000000000))).
		RowsWillBeClosed()
	mock.
		ExpectQuery("SELECT provider FROM account_providers").
		WithArgs("acc-1").
		WillReturnRows(mock.NewRows([]string{"provider"})).
		RowsWillBeClosed()

	account, err := driver.GetAccountByEmail(context.Background(), "Dev@Example.com")
	if err != nil {
		t.Fatal(err)
	}
	if account.ID != "acc-1" {
		t.Errorf("account id = %q, want acc-1", account.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("sql expectations weren't met: %v", err)
	}
}

func TestGetAccountIDFromAccessKeyExpired(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.
		ExpectQuery(regexp.QuoteMeta("SELECT account_id, expires FROM access_keys WHERE name = $1 AND deleted_time IS NULL")).
		WithArgs("ck_old").
		WillReturnRows(mock.NewRows([]string{"account_id", "expires"}).AddRow("acc-1", int64(1))).
		RowsWillBeClosed()

	if _, err := driver.GetAccountIDFromAccessKey(context.Background(), "ck_old"); !errs.IsKind(err, errs.Expired) {
		t.Errorf("got %v, want Expired", err)
	}
}

func TestCommitPackage(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.ExpectBegin()
	mock.
		ExpectQuery(regexp.QuoteMeta("SELECT id FROM deployments WHERE id = $1 AND deleted_time IS NULL FOR UPDATE")).
		WithArgs("dep-1").
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("dep-1")).
		RowsWillBeClosed()
	// Empty history: the first release gets v1.
	mock.
		ExpectQuery("SELECT (.+) FROM packages").
		WithArgs("dep-1").
		WillReturnRows(mock.NewRows(packageTestColumns)).
		RowsWillBeClosed()
	mock.
		ExpectExec("INSERT INTO packages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pkg := &release.Package{
		AppVersion:  "1.0.0",
		PackageHash: "hash-1",
		UploadTime:  time.Now(),
	}
	committed, err := driver.CommitPackage(context.Background(), "dep-1", pkg, storage.CommitChecks{
		EnsureNoUnfinishedRollout: true,
		EnsureUniqueHash:          true,
	})
	if err != nil {
		t.Fatalf("failed to commit package: %v", err)
	}
	if committed.Label != "v1" {
		t.Errorf("label = %q, want v1", committed.Label)
	}
	if committed.DeploymentID != "dep-1" {
		t.Errorf("deployment id = %q, want dep-1", committed.DeploymentID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("sql expectations weren't met: %v", err)
	}
}

func TestCommitPackageUnfinishedRollout(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.ExpectBegin()
	mock.
		ExpectQuery(regexp.QuoteMeta("SELECT id FROM deployments WHERE id = $1 AND deleted_time IS NULL FOR UPDATE")).
		WithArgs("dep-1").
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("dep-1")).
		RowsWillBeClosed()
	mock.
		ExpectQuery("SELECT (.+) FROM packages").
		WithArgs("dep-1").
		WillReturnRows(mock.NewRows(packageTestColumns).AddRow(
			"pkg-1", "dep-1", "v1", 1, "1.0.0", "", false, false, 25, int64(10),
			"hash-1", "blob", "manifest", "Upload", "", "", "", int64(1700000000000),
		)).
		RowsWillBeClosed()
	mock.ExpectRollback()

	pkg := &release.Package{AppVersion: "1.0.0", PackageHash: "hash-2", UploadTime: time.Now()}
	_, err := driver.CommitPackage(context.Background(), "dep-1", pkg, storage.CommitChecks{
		EnsureNoUnfinishedRollout: true,
	})
	if !errs.IsConflict(err) {
		t.Errorf("got %v, want Conflict", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("sql expectations weren't met: %v", err)
	}
}

func TestCommitPackageIncrementsLabel(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.ExpectBegin()
	mock.
		ExpectQuery(regexp.QuoteMeta("SELECT id FROM deployments WHERE id = $1 AND deleted_time IS NULL FOR UPDATE")).
		WithArgs("dep-1").
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("dep-1")).
		RowsWillBeClosed()
	mock.
		ExpectQuery("SELECT (.+) FROM packages").
		WithArgs("dep-1").
		WillReturnRows(mock.NewRows(packageTestColumns).AddRow(
			"pkg-3", "dep-1", "v3", 3, "1.0.0", "", false, false, nil, int64(10),
			"hash-3", "blob", "manifest", "Upload", "", "", "", int64(1700000000000),
		)).
		RowsWillBeClosed()
	mock.
		ExpectExec("INSERT INTO packages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pkg := &release.Package{AppVersion: "1.0.0", PackageHash: "hash-4", UploadTime: time.Now()}
	committed, err := driver.CommitPackage(context.Background(), "dep-1", pkg, storage.CommitChecks{})
	if err != nil {
		t.Fatal(err)
	}
	if committed.Label != "v4" {
		t.Errorf("label = %q, want v4", committed.Label)
	}
}

func TestRemoveDeploymentSoftDeletes(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.ExpectBegin()
	mock.
		ExpectQuery(regexp.QuoteMeta("SELECT key FROM deployments WHERE id = $1 AND deleted_time IS NULL")).
		WithArgs("dep-1").
		WillReturnRows(mock.NewRows([]string{"key"}).AddRow("dk_prod")).
		RowsWillBeClosed()
	mock.
		ExpectExec("DELETE FROM metrics").
		WithArgs("dk_prod").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.
		ExpectExec("DELETE FROM client_labels").
		WithArgs("dk_prod").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.
		ExpectExec("UPDATE deployments SET deleted_time").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := driver.RemoveDeployment(context.Background(), "app-1", "dep-1"); err != nil {
		t.Fatal(err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("sql expectations weren't met: %v", err)
	}
}

func TestIncrementMetricUpserts(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.
		ExpectExec("INSERT INTO metrics").
		WithArgs("dk_prod", "v1", release.MetricDownloaded).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := driver.IncrementMetric(context.Background(), "dk_prod", "v1", release.MetricDownloaded); err != nil {
		t.Fatal(err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("sql expectations weren't met: %v", err)
	}
}

func TestDecrementMetricClamps(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.
		ExpectExec(regexp.QuoteMeta("GREATEST(count - 1, 0)")).
		WithArgs("dk_prod", "v1", release.MetricActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := driver.DecrementMetric(context.Background(), "dk_prod", "v1", release.MetricActive); err != nil {
		t.Fatal(err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("sql expectations weren't met: %v", err)
	}
}

func TestGetMetricsGroupsByLabel(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.
		ExpectQuery(regexp.QuoteMeta("SELECT label, metric, count FROM metrics WHERE deployment_key = $1")).
		WithArgs("dk_prod").
		WillReturnRows(mock.NewRows([]string{"label", "metric", "count"}).
			AddRow("v1", "active", int64(3)).
			AddRow("v1", "downloaded", int64(7)).
			AddRow("v2", "deployment_failed", int64(1))).
		RowsWillBeClosed()

	metrics, err := driver.GetMetrics(context.Background(), "dk_prod")
	if err != nil {
		t.Fatal(err)
	}
	if metrics["v1"].Active != 3 || metrics["v1"].Downloads != 7 {
		t.Errorf("unexpected v1 metrics %+v", metrics["v1"])
	}
	if metrics["v2"].Failed != 1 {
		t.Errorf("unexpected v2 metrics %+v", metrics["v2"])
	}
}

func TestUpdatePackageNotFound(t *testing.T) {
	driver, mock := newTestFixture(t)

	mock.
		ExpectExec("UPDATE packages").
		WillReturnResult(sqlmock.NewResult(0, 0))

	pkg := &release.Package{ID: "pkg-404", DeploymentID: "dep-1"}
	if err := driver.UpdatePackage(context.Background(), pkg); !errs.IsNotFound(err) {
		t.Errorf("got %v, want NotFound", err)
	}
}
