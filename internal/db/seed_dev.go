package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed_dev.yaml
var seedDevYAML []byte

type seedFile struct {
	QualificationTypes []struct {
		ID               string `yaml:"id"`
		Code             string `yaml:"code"`
		Name             string `yaml:"name"`
		CanReceiveLockup bool   `yaml:"can_receive_lockup"`
		IsAutomatic      bool   `yaml:"is_automatic"`
	} `yaml:"qualification_types"`

	Members []struct {
		ID            string `yaml:"id"`
		FirstName     string `yaml:"first_name"`
		LastName      string `yaml:"last_name"`
		Rank          string `yaml:"rank"`
		ServiceNumber string `yaml:"service_number"`
		RankTier      int    `yaml:"rank_tier"`
		DivisionCode  string `yaml:"division_code"`
		BadgeID       string `yaml:"badge_id"`
	} `yaml:"members"`

	ManualQualifications []struct {
		MemberID  string `yaml:"member_id"`
		Code      string `yaml:"code"`
		GrantedBy string `yaml:"granted_by"`
		Notes     string `yaml:"notes"`
	} `yaml:"manual_qualifications"`

	Roster []struct {
		MemberID     string `yaml:"member_id"`
		PositionCode string `yaml:"position_code"`
	} `yaml:"roster"`
}

// SeedDev loads the embedded dev fixture: a starter member set, the
// qualification type catalogue, and a duty roster for the current week.
// Idempotent; existing rows are left alone.
func SeedDev(ctx context.Context, db *sql.DB, weekStart string) error {
	var seed seedFile
	if err := yaml.Unmarshal(seedDevYAML, &seed); err != nil {
		return fmt.Errorf("parse dev seed: %w", err)
	}

	now := time.Now().UTC().UnixMilli()

	for _, t := range seed.QualificationTypes {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO qualification_types(type_id, code, name, can_receive_lockup, is_automatic)
VALUES (?, ?, ?, ?, ?);`,
			t.ID, t.Code, t.Name, boolInt(t.CanReceiveLockup), boolInt(t.IsAutomatic)); err != nil {
			return fmt.Errorf("seed qualification type %s: %w", t.Code, err)
		}
	}

	for _, m := range seed.Members {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO members(
  member_id, first_name, last_name, rank, service_number,
  rank_tier, division_code, status, badge_id,
  created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, 'active', ?, ?, ?);`,
			m.ID, m.FirstName, m.LastName, m.Rank, m.ServiceNumber,
			m.RankTier, m.DivisionCode, m.BadgeID, now, now); err != nil {
			return fmt.Errorf("seed member %s: %w", m.ID, err)
		}
	}

	for _, q := range seed.ManualQualifications {
		id := fmt.Sprintf("seed-qual-%s-%s", q.MemberID, q.Code)
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO member_qualifications(
  qual_id, member_id, type_code, status, granted_by, notes, granted_at_ms
) VALUES (?, ?, ?, 'active', ?, ?, ?);`,
			id, q.MemberID, q.Code, q.GrantedBy, q.Notes, now); err != nil {
			return fmt.Errorf("seed qualification %s/%s: %w", q.MemberID, q.Code, err)
		}
	}

	for _, r := range seed.Roster {
		id := fmt.Sprintf("seed-%s-%s-%s", weekStart, r.PositionCode, r.MemberID)
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO roster_assignments(assignment_id, week_start, member_id, position_code)
VALUES (?, ?, ?, ?);`,
			id, weekStart, r.MemberID, r.PositionCode); err != nil {
			return fmt.Errorf("seed roster %s/%s: %w", r.PositionCode, r.MemberID, err)
		}
	}

	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
