package sqlite

import (
	"fmt"
	"time"

	"roadsafe/internal/model"
)

// ReportRecord is one journaled report attempt. The journal is the durable
// local record of what this device reported and how each attempt ended,
// independent of the relay.
type ReportRecord struct {
	ID          int64
	EventID     string
	Type        model.HazardType
	Description string
	Position    model.Position
	ReportedAt  time.Time
	Outcome     string
}

// ReportRepository persists report attempts in SQLite.
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new SQLite report repository.
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Insert appends a report attempt to the journal.
func (r *ReportRepository) Insert(rec *ReportRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO reports (event_id, hazard_type, description, latitude, longitude, reported_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.EventID, string(rec.Type), rec.Description, rec.Position.Latitude, rec.Position.Longitude,
		rec.ReportedAt.UTC(), rec.Outcome)
	if err != nil {
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}

	return result.LastInsertId()
}

// Recent returns the newest report attempts, most recent first.
func (r *ReportRepository) Recent(limit int) ([]ReportRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, event_id, hazard_type, description, latitude, longitude, reported_at, outcome
		FROM reports ORDER BY reported_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var records []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		var hazardType string
		if err := rows.Scan(&rec.ID, &rec.EventID, &hazardType, &rec.Description,
			&rec.Position.Latitude, &rec.Position.Longitude, &rec.ReportedAt, &rec.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		rec.Type = model.HazardType(hazardType)
		records = append(records, rec)
	}

	return records, nil
}

// CountByType returns how many attempts were journaled per hazard type.
func (r *ReportRepository) CountByType() (map[model.HazardType]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT hazard_type, COUNT(*) FROM reports GROUP BY hazard_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query report counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.HazardType]int)
	for rows.Next() {
		var hazardType string
		var count int
		if err := rows.Scan(&hazardType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan report count: %w", err)
		}
		counts[model.HazardType(hazardType)] = count
	}

	return counts, nil
}
