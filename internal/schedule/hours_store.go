package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// HoursStore persists business-hours rows. Marking a day closed is a soft
// delete; every read excludes tombstoned rows through the same predicate.
type HoursStore struct {
	db *sql.DB
}

// NewHoursStore creates a store backed by database/sql.
func NewHoursStore(db *sql.DB) *HoursStore {
	if db == nil {
		panic("schedule: db required")
	}
	return &HoursStore{db: db}
}

// ListHours returns the active windows of a business ordered by weekday.
func (s *HoursStore) ListHours(ctx context.Context, businessID string) ([]BusinessHours, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT weekday, open_minutes, close_minutes
		FROM business_hours
		WHERE business_id = $1 AND deleted_at IS NULL
		ORDER BY weekday
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("schedule: list hours: %w", err)
	}
	defer rows.Close()

	var hours []BusinessHours
	for rows.Next() {
		var weekday int
		h := BusinessHours{BusinessID: businessID}
		if err := rows.Scan(&weekday, &h.OpenMinutes, &h.CloseMinutes); err != nil {
			return nil, fmt.Errorf("schedule: scan hours row: %w", err)
		}
		h.Weekday = time.Weekday(weekday)
		hours = append(hours, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: iterate hours: %w", err)
	}
	return hours, nil
}

// WeekFor loads the configured week of a business.
func (s *HoursStore) WeekFor(ctx context.Context, businessID string) (*WeekSchedule, error) {
	rows, err := s.ListHours(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return NewWeekSchedule(rows), nil
}

// Upsert saves a weekday window, reviving a previously closed day.
func (s *HoursStore) Upsert(ctx context.Context, h BusinessHours) error {
	if err := h.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO business_hours (business_id, weekday, open_minutes, close_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (business_id, weekday)
		DO UPDATE SET open_minutes = EXCLUDED.open_minutes,
		              close_minutes = EXCLUDED.close_minutes,
		              deleted_at = NULL,
		              updated_at = now()
	`, h.BusinessID, int(h.Weekday), h.OpenMinutes, h.CloseMinutes)
	if err != nil {
		return fmt.Errorf("schedule: upsert hours: %w", err)
	}
	return nil
}

// CloseDay tombstones the weekday row. Returns false when no active row
// existed.
func (s *HoursStore) CloseDay(ctx context.Context, businessID string, weekday time.Weekday) (bool, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return false, ErrInvalidWeekday
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE business_hours
		SET deleted_at = now(), updated_at = now()
		WHERE business_id = $1 AND weekday = $2 AND deleted_at IS NULL
	`, businessID, int(weekday))
	if err != nil {
		return false, fmt.Errorf("schedule: close day: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("schedule: close day result: %w", err)
	}
	return affected > 0, nil
}
