package models

import "gorm.io/gorm"

type Provider struct {
	gorm.Model
	Name                string  `json:"name" gorm:"not null"`
	PrimaryContactEmail string  `json:"primary_contact_email" gorm:"not null"`
	Address             Address `json:"address" gorm:"embedded"`
	// AutoApproveClaims seeds this provider's side of new partnerships.
	AutoApproveClaims bool      `json:"auto_approve_claims" gorm:"default:false"`
	Services          []Service `json:"services,omitempty"`
}

func (Provider) TableName() string {
	return "providers"
}

type Service struct {
	gorm.Model
	ProviderID  uint      `json:"provider_id" gorm:"not null;index"`
	Name        string    `json:"name" gorm:"not null"`
	Rate        string    `json:"rate"`
	Eligibility StringMap `json:"eligibility"`
}

func (Service) TableName() string {
	return "services"
}
