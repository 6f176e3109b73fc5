// Optional SQL log of engagement decisions and cycle summaries.
package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type Decision struct {
	gorm.Model
	CycleID    string `gorm:"index"`
	PostID     string `gorm:"index"`
	Community  string
	Author     string
	Outcome    string `gorm:"index"`
	Reason     string
	RiskLevel  string
	Categories string
	Cost       float64
}

// SetCategories stores scanner categories as a comma separated list.
func (d *Decision) SetCategories(cats []string) {
	d.Categories = strings.Join(cats, ",")
}

type Cycle struct {
	gorm.Model
	CycleID    string `gorm:"uniqueIndex"`
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Scanned    int
	Blocked    int
	Engaged    int
	Skipped    int
	Errors     int
	Cost       float64
	Metric     int
}

type Store struct {
	db *gorm.DB
}

// NewStore migrates the schema and returns a store.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Decision{}, &Cycle{}); err != nil {
		return nil, fmt.Errorf("migrating activity tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) RecordDecision(ctx context.Context, d *Decision) error {
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("recording decision: %w", err)
	}
	return nil
}

func (s *Store) RecordCycle(ctx context.Context, c *Cycle) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("recording cycle: %w", err)
	}
	return nil
}

// RecentDecisions returns up to limit decisions, newest first.
func (s *Store) RecentDecisions(ctx context.Context, limit int) ([]Decision, error) {
	var out []Decision
	if err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// OutcomeCounts tallies decisions by outcome since a point in time.
func (s *Store) OutcomeCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	var rows []struct {
		Outcome string
		Count   int
	}
	err := s.db.WithContext(ctx).Model(&Decision{}).
		Select("outcome, count(*) as count").
		Where("created_at >= ?", since).
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Outcome] = r.Count
	}
	return out, nil
}

// Prune hard-deletes rows older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	db := s.db.WithContext(ctx)
	res := db.Unscoped().Where("created_at < ?", before).Delete(&Decision{})
	if res.Error != nil {
		return 0, res.Error
	}
	n := res.RowsAffected
	res = db.Unscoped().Where("created_at < ?", before).Delete(&Cycle{})
	if res.Error != nil {
		return n, res.Error
	}
	return n + res.RowsAffected, nil
}
