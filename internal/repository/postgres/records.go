// Package postgres reads canonical per-send records from the external store.
// Ingestion (CSV parsing, column mapping, writes) lives outside this service;
// this repository is strictly read-only.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/campaign-insights/internal/insights"
)

// RecordRepo loads an account's send records from PostgreSQL.
type RecordRepo struct{ db *sql.DB }

// NewRecordRepo creates a Postgres-backed record repository.
func NewRecordRepo(db *sql.DB) *RecordRepo { return &RecordRepo{db: db} }

// GetSendRecords returns every send record for the account, campaigns and
// flows together, sorted ascending by send date.
func (r *RecordRepo) GetSendRecords(ctx context.Context, accountID uuid.UUID) ([]insights.SendRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sent_date, emails_sent, unique_opens, unique_clicks, total_orders,
		       revenue, unsubscribes_count, spam_complaints_count, bounces_count,
		       COALESCE(subject_text, ''), COALESCE(segment_tags, '{}'), channel
		FROM send_records
		WHERE account_id = $1
		ORDER BY sent_date ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query send records: %w", err)
	}
	defer rows.Close()

	var records []insights.SendRecord
	for rows.Next() {
		var rec insights.SendRecord
		var channel string
		var tags pq.StringArray
		if err := rows.Scan(
			&rec.SentDate, &rec.EmailsSent, &rec.UniqueOpens, &rec.UniqueClicks,
			&rec.TotalOrders, &rec.Revenue, &rec.Unsubscribes, &rec.SpamComplaints,
			&rec.Bounces, &rec.SubjectText, &tags, &channel,
		); err != nil {
			return nil, fmt.Errorf("scan send record: %w", err)
		}
		rec.SegmentTags = tags
		rec.Channel = insights.Channel(channel)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate send records: %w", err)
	}
	return records, nil
}
