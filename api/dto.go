/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/tally/kpitrack/kpi"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	ManagerID string `json:"manager_id,omitempty"`
}

// LoginRequest identifies a user by email for the dashboard.
type LoginRequest struct {
	Email string `json:"email"`
}

// ProgressEntryDTO represents a recorded completion.
type ProgressEntryDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	KpiID     string `json:"kpi_id"`
	Date      string `json:"date"`
	Score     string `json:"score"`
	Completed bool   `json:"completed"`
}

// RecordProgressRequest records one KPI completion.
type RecordProgressRequest struct {
	UserID string `json:"user_id"`
	KpiID  string `json:"kpi_id"`
	Date   string `json:"date"` // YYYY-MM-DD; defaults to today when empty
}

// UserTotalDTO is one per-user row of a summary or leaderboard.
type UserTotalDTO struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Total   string `json:"total"`
	Percent int    `json:"percent"`
}

// SummaryDTO is the rolled-up view of one aggregation bucket.
type SummaryDTO struct {
	Start             string         `json:"start"`
	End               string         `json:"end"`
	WeeksInMonth      int            `json:"weeks_in_month,omitempty"`
	PerUser           []UserTotalDTO `json:"per_user"`
	DepartmentTotal   string         `json:"department_total"`
	DepartmentTarget  string         `json:"department_target"`
	DepartmentPercent int            `json:"department_percent"`
	UserTarget        string         `json:"user_target"`
}

// WeekSummaryDTO pairs the current week with the previous full week.
type WeekSummaryDTO struct {
	Week         SummaryDTO `json:"week"`
	PreviousWeek SummaryDTO `json:"previous_week"`
}

// SettingDTO carries a single settings value.
type SettingDTO struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u kpi.User) UserDTO {
	dto := UserDTO{
		ID:     string(u.ID),
		Name:   u.Name,
		Email:  u.Email,
		Role:   string(u.Role),
		Active: u.Active,
	}
	if u.ManagerID != nil {
		dto.ManagerID = string(*u.ManagerID)
	}
	return dto
}

func toEntryDTO(e kpi.ProgressEntry) ProgressEntryDTO {
	return ProgressEntryDTO{
		ID:        string(e.ID),
		UserID:    string(e.UserID),
		KpiID:     string(e.KpiID),
		Date:      e.Date.String(),
		Score:     e.Score.String(),
		Completed: e.Completed,
	}
}

func toSummaryDTO(s *kpi.Summary) SummaryDTO {
	dto := SummaryDTO{
		Start:             s.Bucket.Start.String(),
		End:               s.Bucket.End.String(),
		WeeksInMonth:      s.WeeksInMonth,
		PerUser:           make([]UserTotalDTO, 0, len(s.PerUser)),
		DepartmentTotal:   s.DepartmentTotal.String(),
		DepartmentTarget:  s.DepartmentTarget.String(),
		DepartmentPercent: s.DepartmentPercent,
		UserTarget:        s.UserTarget.String(),
	}
	for _, row := range s.PerUser {
		dto.PerUser = append(dto.PerUser, UserTotalDTO{
			UserID:  string(row.User.ID),
			Name:    row.User.Name,
			Total:   row.Total.String(),
			Percent: row.Percent,
		})
	}
	return dto
}
