package models

import (
	"strings"
	"time"
)

// SupportCategory classifies a support query.
type SupportCategory string

const (
	SupportHelpdesk   SupportCategory = "Helpdesk"
	SupportGrievances SupportCategory = "Grievances"
	SupportFeedback   SupportCategory = "Feedback"
)

// ParseSupportCategory accepts a category name case-insensitively.
func ParseSupportCategory(raw string) (SupportCategory, bool) {
	for _, c := range []SupportCategory{SupportHelpdesk, SupportGrievances, SupportFeedback} {
		if strings.EqualFold(strings.TrimSpace(raw), string(c)) {
			return c, true
		}
	}
	return "", false
}

// SupportQuery is a message sent by an applicant or visitor to the helpdesk.
type SupportQuery struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:120;not null" json:"name"`
	Email         string          `gorm:"size:255;not null" json:"email"`
	ApplicationNo string          `gorm:"size:32;index" json:"application_no,omitempty"`
	Category      SupportCategory `gorm:"size:16;not null;index" json:"category"`
	Message       string          `gorm:"type:text;not null" json:"message"`
	Resolved      bool            `gorm:"not null;default:false" json:"resolved"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName returns the database table name for SupportQuery.
func (SupportQuery) TableName() string {
	return "support_queries"
}
