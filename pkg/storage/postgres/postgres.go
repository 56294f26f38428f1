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

// Package postgres implements storage on PostgreSQL. It is the driver
// production deployments run; the schema is managed in-process with
// sql-migrate so a fresh database is usable without external tooling.
package postgres

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"

	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/storage"
)

var _ storage.Storage = (*Postgres)(nil)

// DriverName is the string name of this driver.
const DriverName = "PostgreSQL"

// uniqueViolation is the PostgreSQL error code raised on unique-constraint
// conflicts.
const uniqueViolation = "23505"

// Postgres is the PostgreSQL storage driver implementation.
type Postgres struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
	Log     func(string, ...interface{})
}

// New connects to the database and brings the schema up to date.
func New(connectionString string, logger func(string, ...interface{})) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, errs.Wrap(err, errs.ConnectionFailed, "connecting to postgres")
	}
	if logger == nil {
		logger = func(string, ...interface{}) {}
	}

	driver := &Postgres{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		Log:     logger,
	}
	if err := driver.ensureDBSetup(); err != nil {
		return nil, errs.Wrap(err, errs.ConnectionFailed, "migrating schema")
	}
	return driver, nil
}

// NewFromDB wraps an existing connection. Tests use it with a mock.
func NewFromDB(db *sqlx.DB, logger func(string, ...interface{})) *Postgres {
	if logger == nil {
		logger = func(string, ...interface{}) {}
	}
	return &Postgres{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		Log:     logger,
	}
}

// Name returns the name of the driver.
func (s *Postgres) Name() string {
	return DriverName
}

func (s *Postgres) ensureDBSetup() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "init",
				Up: []string{
					`
						CREATE TABLE accounts (
							id UUID PRIMARY KEY,
							email TEXT NOT NULL,
							name TEXT NOT NULL,
							created_time BIGINT NOT NULL
						);
						CREATE UNIQUE INDEX folded_account_email ON accounts (LOWER(email));
						CREATE TABLE account_providers (
							account_id UUID NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
							provider TEXT NOT NULL,
							PRIMARY KEY (account_id, provider)
						);
						CREATE TABLE access_keys (
							id UUID PRIMARY KEY,
							account_id UUID NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
							name TEXT NOT NULL UNIQUE,
							friendly_name TEXT NOT NULL,
							created_by TEXT NOT NULL DEFAULT '',
							created_time BIGINT NOT NULL,
							expires BIGINT NOT NULL DEFAULT 0,
							is_session BOOLEAN NOT NULL DEFAULT FALSE,
							deleted_time BIGINT
						);
						CREATE UNIQUE INDEX live_friendly_name ON access_keys (account_id, friendly_name) WHERE deleted_time IS NULL;
						CREATE TABLE apps (
							id UUID PRIMARY KEY,
							name TEXT NOT NULL,
							created_time BIGINT NOT NULL,
							deleted_time BIGINT
						);
						CREATE TABLE collaborators (
							app_id UUID NOT NULL REFERENCES apps (id) ON DELETE CASCADE,
							account_id UUID NOT NULL REFERENCES accounts (id),
							email TEXT NOT NULL,
							permission TEXT NOT NULL,
							PRIMARY KEY (app_id, email)
						);
						CREATE UNIQUE INDEX one_owner_per_app ON collaborators (app_id) WHERE permission = 'Owner';
						CREATE TABLE deployments (
							id UUID PRIMARY KEY,
							app_id UUID NOT NULL REFERENCES apps (id) ON DELETE CASCADE,
							name TEXT NOT NULL,
							key TEXT NOT NULL UNIQUE,
							created_time BIGINT NOT NULL,
							deleted_time BIGINT
						);
						CREATE UNIQUE INDEX live_deployment_name ON deployments (app_id, name) WHERE deleted_time IS NULL;
						CREATE TABLE packages (
							id UUID PRIMARY KEY,
							deployment_id UUID NOT NULL REFERENCES deployments (id) ON DELETE CASCADE,
							label TEXT NOT NULL,
							label_num INTEGER NOT NULL,
							app_version TEXT NOT NULL,
							description TEXT NOT NULL DEFAULT '',
							is_disabled BOOLEAN NOT NULL DEFAULT FALSE,
							is_mandatory BOOLEAN NOT NULL DEFAULT FALSE,
							rollout INTEGER,
							size BIGINT NOT NULL DEFAULT 0,
							package_hash TEXT NOT NULL,
							blob_path TEXT NOT NULL DEFAULT '',
							manifest_blob_path TEXT NOT NULL DEFAULT '',
							release_method TEXT NOT NULL DEFAULT 'Upload',
							original_label TEXT NOT NULL DEFAULT '',
							original_deployment TEXT NOT NULL DEFAULT '',
							released_by TEXT NOT NULL DEFAULT '',
							upload_time BIGINT NOT NULL,
							deleted_time BIGINT
						);
						CREATE UNIQUE INDEX live_package_label ON packages (deployment_id, label) WHERE deleted_time IS NULL;
						CREATE INDEX ON packages (deployment_id, label_num);
						CREATE TABLE package_diffs (
							id UUID PRIMARY KEY,
							package_id UUID NOT NULL REFERENCES packages (id) ON DELETE CASCADE,
							source_package_hash TEXT NOT NULL,
							size BIGINT NOT NULL DEFAULT 0,
							blob_path TEXT NOT NULL,
							UNIQUE (package_id, source_package_hash)
						);
						CREATE TABLE metrics (
							deployment_key TEXT NOT NULL,
							label TEXT NOT NULL,
							metric TEXT NOT NULL,
							count BIGINT NOT NULL DEFAULT 0,
							PRIMARY KEY (deployment_key, label, metric)
						);
						CREATE TABLE client_labels (
							deployment_key TEXT NOT NULL,
							client_id TEXT NOT NULL,
							label TEXT NOT NULL,
							PRIMARY KEY (deployment_key, client_id)
						);
					`,
				},
				Down: []string{
					`
						DROP TABLE client_labels;
						DROP TABLE metrics;
						DROP TABLE package_diffs;
						DROP TABLE packages;
						DROP TABLE deployments;
						DROP TABLE collaborators;
						DROP TABLE apps;
						DROP TABLE access_keys;
						DROP TABLE account_providers;
						DROP TABLE accounts;
					`,
				},
			},
		},
	}

	_, err := migrate.Exec(s.db.DB, "postgres", migrations, migrate.Up)
	return err
}

// classify maps database errors onto the shared kinds. sql.ErrNoRows stays
// untouched so callers can attach an entity-specific NotFound message.
func classify(err error, format string, args ...interface{}) error {
	if err == nil || err == sql.ErrNoRows {
		return err
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return errs.Wrap(err, errs.AlreadyExists, format, args...)
	}
	return errs.Wrap(err, errs.ConnectionFailed, format, args...)
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Postgres) withTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return errs.Wrap(err, errs.ConnectionFailed, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.Log("transaction rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(err, errs.ConnectionFailed, "committing transaction")
	}
	return nil
}
