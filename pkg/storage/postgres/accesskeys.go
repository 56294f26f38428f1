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

	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/releaseutil"
	"codepush.sh/codepush/pkg/time"
)

type accessKeyRecord struct {
	ID           string    `db:"id"`
	AccountID    string    `db:"account_id"`
	Name         string    `db:"name"`
	FriendlyName string    `db:"friendly_name"`
	CreatedBy    string    `db:"created_by"`
	CreatedTime  time.Time `db:"created_time"`
	Expires      time.Time `db:"expires"`
	IsSession    bool      `db:"is_session"`
}

func (r accessKeyRecord) toAccessKey() release.AccessKey {
	return release.AccessKey{
		ID:           r.ID,
		Name:         r.Name,
		FriendlyName: r.FriendlyName,
		CreatedBy:    r.CreatedBy,
		CreatedTime:  r.CreatedTime,
		Expires:      r.Expires,
		IsSession:    r.IsSession,
	}
}

func (s *Postgres) AddAccessKey(ctx context.Context, accountID string, key *release.AccessKey) error {
	if key.ID == "" {
		key.ID = releaseutil.NewID()
	}
	query, args, err := s.builder.
		Insert("access_keys").
		Columns("id", "account_id", "name", "friendly_name", "created_by", "created_time", "expires", "is_session").
		Values(key.ID, accountID, key.Name, key.FriendlyName, key.CreatedBy, key.CreatedTime, key.Expires, key.IsSession).
		ToSql()
	if err != nil {
		return errs.Wrap(err, errs.Internal, "building access key insert")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return classify(err, "access key %s already exists", key.FriendlyName)
	}
	return nil
}

func (s *Postgres) GetAccessKeys(ctx context.Context, accountID string) ([]release.AccessKey, error) {
	var records []accessKeyRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, account_id, name, friendly_name, created_by, created_time, expires, is_session
		FROM access_keys WHERE account_id = $1 AND deleted_time IS NULL
		ORDER BY created_time`, accountID)
	if err != nil {
		return nil, classify(err, "listing access keys")
	}
	keys := make([]release.AccessKey, 0, len(records))
	for _, record := range records {
		keys = append(keys, record.toAccessKey())
	}
	return keys, nil
}

func (s *Postgres) GetAccessKey(ctx context.Context, accountID, keyID string) (*release.AccessKey, error) {
	var record accessKeyRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT id, account_id, name, friendly_name, created_by, created_time, expires, is_session
		FROM access_keys WHERE account_id = $1 AND id = $2 AND deleted_time IS NULL`, accountID, keyID)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNotFound("access key %s not found", keyID)
	}
	if err != nil {
		return nil, classify(err, "getting access key %s", keyID)
	}
	key := record.toAccessKey()
	return &key, nil
}

func (s *Postgres) UpdateAccessKey(ctx context.Context, accountID string, key *release.AccessKey) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE access_keys SET friendly_name = $1, expires = $2
		WHERE account_id = $3 AND id = $4 AND deleted_time IS NULL`,
		key.FriendlyName, key.Expires, accountID, key.ID)
	if err != nil {
		return classify(err, "access key %s already exists", key.FriendlyName)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound("access key %s not found", key.ID)
	}
	return nil
}

func (s *Postgres) RemoveAccessKey(ctx context.Context, accountID, keyID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE access_keys SET deleted_time = $1
		WHERE account_id = $2 AND id = $3 AND deleted_time IS NULL`,
		time.Now(), accountID, keyID)
	if err != nil {
		return classify(err, "removing access key %s", keyID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound("access key %s not found", keyID)
	}
	return nil
}

func (s *Postgres) GetAccountIDFromAccessKey(ctx context.Context, keyName string) (string, error) {
	var record accessKeyRecord
	err := s.db.GetContext(ctx, &record,
		"SELECT account_id, expires FROM access_keys WHERE name = $1 AND deleted_time IS NULL", keyName)
	if err == sql.ErrNoRows {
		return "", errs.ErrNotFound("access key not found")
	}
	if err != nil {
		return "", classify(err, "resolving access key")
	}
	key := record.toAccessKey()
	if key.Expired(time.Now()) {
		return "", errs.ErrExpired("access key expired")
	}
	return record.AccountID, nil
}
