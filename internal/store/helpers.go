package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/arcosum/arcobot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans a User from a row selected with userColumns order.
func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var name, email, company, division sql.NullString
	err := row.Scan(
		&u.ID, &u.PhoneNumber, &name, &email, &company, &u.State, &division,
		&u.CreatedAt, &u.LastInteraction,
	)
	if err != nil {
		return nil, err
	}
	u.Name = name.String
	u.Email = email.String
	u.Company = company.String
	u.Division = models.Division(division.String)
	return &u, nil
}

// scanLeadAnalysis scans a LeadAnalysis row including the JSON project info.
func scanLeadAnalysis(row rowScanner) (models.LeadAnalysis, error) {
	var la models.LeadAnalysis
	var leadType, division, projectInfo, summary, nextAction sql.NullString
	err := row.Scan(
		&la.ID, &la.PhoneNumber, &la.LeadScore, &leadType, &division,
		&la.IsQualified, &projectInfo, &summary, &nextAction, &la.Notified, &la.CreatedAt,
	)
	if err != nil {
		return la, fmt.Errorf("scan lead analysis failed: %w", err)
	}
	la.LeadType = models.LeadType(leadType.String)
	la.Division = models.Division(division.String)
	la.Summary = summary.String
	la.NextAction = nextAction.String
	if projectInfo.Valid && projectInfo.String != "" {
		if err := json.Unmarshal([]byte(projectInfo.String), &la.ProjectInfo); err != nil {
			return la, fmt.Errorf("decode project info failed: %w", err)
		}
	}
	return la, nil
}

// marshalProjectInfo serializes the project info map for storage, nil when empty.
func marshalProjectInfo(info map[string]string) (interface{}, error) {
	if len(info) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode project info failed: %w", err)
	}
	return string(data), nil
}
