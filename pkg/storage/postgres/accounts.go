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

type accountRecord struct {
	ID          string    `db:"id"`
	Email       string    `db:"email"`
	Name        string    `db:"name"`
	CreatedTime time.Time `db:"created_time"`
}

func (r accountRecord) toAccount() *release.Account {
	return &release.Account{
		ID:          r.ID,
		Email:       r.Email,
		Name:        r.Name,
		CreatedTime: r.CreatedTime,
	}
}

func (s *Postgres) CreateAccount(ctx context.Context, account *release.Account) error {
	if account.ID == "" {
		account.ID = releaseutil.NewID()
	}
	return s.withTx(func(tx *sqlx.Tx) error {
		query, args, err := s.builder.
			Insert("accounts").
			Columns("id", "email", "name", "created_time").
			Values(account.ID, account.Email, account.Name, account.CreatedTime).
			ToSql()
		if err != nil {
			return errs.Wrap(err, errs.Internal, "building account insert")
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classify(err, "account %s already exists", account.Email)
		}
		return s.replaceProviders(ctx, tx, account.ID, account.LinkedProviders)
	})
}

func (s *Postgres) GetAccount(ctx context.Context, accountID string) (*release.Account, error) {
	var record accountRecord
	err := s.db.GetContext(ctx, &record,
		"SELECT id, email, name, created_time FROM accounts WHERE id = $1", accountID)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNotFound("account %s not found", accountID)
	}
	if err != nil {
		return nil, classify(err, "getting account %s", accountID)
	}
	account := record.toAccount()
	if account.LinkedProviders, err = s.getProviders(ctx, account.ID); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Postgres) GetAccountByEmail(ctx context.Context, email string) (*release.Account, error) {
	var record accountRecord
	err := s.db.GetContext(ctx, &record,
		"SELECT id, email, name, created_time FROM accounts WHERE LOWER(email) = LOWER($1)", email)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNotFound("account %s not found", email)
	}
	if err != nil {
		return nil, classify(err, "getting account %s", email)
	}
	account := record.toAccount()
	if account.LinkedProviders, err = s.getProviders(ctx, account.ID); err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccount persists the display name and linked providers. The email is
// an identity and never changes.
func (s *Postgres) UpdateAccount(ctx context.Context, account *release.Account) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE accounts SET name = $1 WHERE id = $2", account.Name, account.ID)
		if err != nil {
			return classify(err, "updating account %s", account.ID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.ErrNotFound("account %s not found", account.ID)
		}
		return s.replaceProviders(ctx, tx, account.ID, account.LinkedProviders)
	})
}

func (s *Postgres) getProviders(ctx context.Context, accountID string) ([]string, error) {
	var providers []string
	err := s.db.SelectContext(ctx, &providers,
		"SELECT provider FROM account_providers WHERE account_id = $1 ORDER BY provider", accountID)
	if err != nil {
		return nil, classify(err, "getting providers for %s", accountID)
	}
	return providers, nil
}

func (s *Postgres) replaceProviders(ctx context.Context, tx *sqlx.Tx, accountID string, providers []string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM account_providers WHERE account_id = $1", accountID); err != nil {
		return classify(err, "clearing providers for %s", accountID)
	}
	for _, provider := range providers {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO account_providers (account_id, provider) VALUES ($1, $2)",
			accountID, provider); err != nil {
			return classify(err, "linking provider %s", provider)
		}
	}
	return nil
}
