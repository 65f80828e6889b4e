package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead statuses
const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadQualified = "qualified"
)

// Subscriber is a newsletter/drip recipient. Inactive subscribers are
// never sent to, regardless of enrollment state.
type Subscriber struct {
	gorm.Model
	Email  string `gorm:"uniqueIndex;not null" json:"email"`
	Name   string `json:"name"`
	Source string `json:"source"` // lead_magnet, footer_form, chatbot, etc.

	IsActive         bool   `gorm:"default:true" json:"is_active"`
	UnsubscribeToken string `gorm:"uniqueIndex;not null" json:"-"`

	UnsubscribedAt *time.Time `json:"unsubscribed_at"`

	Enrollments []SubscriberSequence `gorm:"foreignKey:SubscriberID" json:"enrollments,omitempty"`
}

// Lead is a contact-form submission from a prospective client.
type Lead struct {
	gorm.Model
	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"not null;index" json:"email"`
	Phone string `json:"phone"`

	Message      string `gorm:"type:text" json:"message"`
	ProjectType  string `json:"project_type"` // custom_home, renovation, addition
	Budget       string `json:"budget"`
	Neighborhood string `json:"neighborhood"`

	Source string `json:"source"`
	Status string `gorm:"default:'new';index" json:"status"`
}
