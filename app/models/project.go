package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is a user-owned workspace item; creation is gated by the owner's
// plan (free accounts are capped, paid accounts are not).
type Project struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        string     `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	Name        string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=3,max=150"`
	Description string     `gorm:"type:text" json:"description" validate:"max=2000"`
	ImageURL    string     `gorm:"type:varchar(255);default:''" json:"image_url" validate:"max=255"`
	CategoryID  *uint      `gorm:"index" json:"category_id,omitempty"`
	ViewCount   int64      `gorm:"default:0" json:"view_count"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Project) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// BeforeCreate assigns the public identifier.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	return nil
}

// ProjectVariation is a named option attached to a project (e.g. a pricing
// tier or product variant).
type ProjectVariation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   uint      `gorm:"not null;index" json:"project_id"`
	Name        string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Description string    `gorm:"type:text" json:"description" validate:"max=2000"`
	Price       *float64  `gorm:"type:decimal(10,2);default:null" json:"price,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (pv *ProjectVariation) Validate() error {
	v := validator.New()

	return v.Struct(pv)
}
