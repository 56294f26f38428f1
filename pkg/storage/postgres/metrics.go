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

	"codepush.sh/codepush/pkg/release"
)

func (s *Postgres) IncrementMetric(ctx context.Context, deploymentKey, label string, metric release.MetricType) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics (deployment_key, label, metric, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (deployment_key, label, metric)
		DO UPDATE SET count = metrics.count + 1`,
		deploymentKey, label, metric)
	return classify(err, "incrementing %s for %s/%s", metric, deploymentKey, label)
}

func (s *Postgres) DecrementMetric(ctx context.Context, deploymentKey, label string, metric release.MetricType) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE metrics SET count = GREATEST(count - 1, 0)
		WHERE deployment_key = $1 AND label = $2 AND metric = $3`,
		deploymentKey, label, metric)
	return classify(err, "decrementing %s for %s/%s", metric, deploymentKey, label)
}

type metricRecord struct {
	Label  string `db:"label"`
	Metric string `db:"metric"`
	Count  int64  `db:"count"`
}

func (s *Postgres) GetMetrics(ctx context.Context, deploymentKey string) (map[string]release.Metrics, error) {
	var records []metricRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT label, metric, count FROM metrics WHERE deployment_key = $1", deploymentKey)
	if err != nil {
		return nil, classify(err, "reading metrics of %s", deploymentKey)
	}

	out := map[string]release.Metrics{}
	for _, record := range records {
		m := out[record.Label]
		switch release.MetricType(record.Metric) {
		case release.MetricActive:
			m.Active = record.Count
		case release.MetricDownloaded:
			m.Downloads = record.Count
		case release.MetricSucceeded:
			m.Installed = record.Count
		case release.MetricFailed:
			m.Failed = record.Count
		}
		out[record.Label] = m
	}
	return out, nil
}

func (s *Postgres) GetClientLabel(ctx context.Context, deploymentKey, clientID string) (string, error) {
	var label string
	err := s.db.GetContext(ctx, &label,
		"SELECT label FROM client_labels WHERE deployment_key = $1 AND client_id = $2",
		deploymentKey, clientID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", classify(err, "reading client label")
	}
	return label, nil
}

func (s *Postgres) SetClientLabel(ctx context.Context, deploymentKey, clientID, label string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_labels (deployment_key, client_id, label)
		VALUES ($1, $2, $3)
		ON CONFLICT (deployment_key, client_id) DO UPDATE SET label = EXCLUDED.label`,
		deploymentKey, clientID, label)
	return classify(err, "recording client label")
}
