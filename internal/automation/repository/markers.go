package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Marker kinds stored in automation_fired_markers.
const (
	markerTimeBased  = "time_based"
	markerInactivity = "inactivity"
)

// MarkersRepo tracks which (rule, lead) pairs have already fired so
// threshold triggers stay one-shot. Claims are single atomic statements;
// under concurrent sweeps exactly one caller wins.
type MarkersRepo struct {
	pool *pgxpool.Pool
}

// NewMarkers creates a new fired-marker repository.
func NewMarkers(pool *pgxpool.Pool) *MarkersRepo {
	return &MarkersRepo{pool: pool}
}

// ClaimTimeBased records that a time-based rule fired for a lead. Returns
// false when a marker already exists, meaning the rule fired before and the
// caller must skip it.
func (r *MarkersRepo) ClaimTimeBased(ctx context.Context, ruleID, leadID uuid.UUID) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		INSERT INTO automation_fired_markers (rule_id, lead_id, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (rule_id, lead_id, kind) DO NOTHING`,
		ruleID, leadID, markerTimeBased)
	if err != nil {
		return false, fmt.Errorf("claim time-based marker: %w", err)
	}

	return res.RowsAffected() > 0, nil
}

// ClaimInactivity records that an inactivity rule fired against the lead's
// current last-activity timestamp. The claim succeeds on first fire and again
// after the lead shows new activity (the trigger re-arms); it fails while the
// marker still covers the same idle period.
func (r *MarkersRepo) ClaimInactivity(ctx context.Context, ruleID, leadID uuid.UUID, lastActivityAt time.Time) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		INSERT INTO automation_fired_markers (rule_id, lead_id, kind, observed_activity_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (rule_id, lead_id, kind) DO UPDATE
		SET fired_at = now(), observed_activity_at = EXCLUDED.observed_activity_at
		WHERE automation_fired_markers.observed_activity_at < EXCLUDED.observed_activity_at`,
		ruleID, leadID, markerInactivity, lastActivityAt)
	if err != nil {
		return false, fmt.Errorf("claim inactivity marker: %w", err)
	}

	return res.RowsAffected() > 0, nil
}
