// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the authorization role of a principal.
type Role string

const (
	// RoleUser is a regular marketplace member.
	RoleUser Role = "user"
	// RoleAdmin can moderate content and work the ticket desk.
	RoleAdmin Role = "admin"
)

// User represents a marketplace account.
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"size:100;not null" json:"name"`
	Username   string         `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email      string         `gorm:"size:255;uniqueIndex;not null" json:"email,omitempty"`
	Password   string         `gorm:"not null" json:"-"`
	Phone      string         `gorm:"size:20" json:"phone,omitempty"`
	IsAdmin    bool           `gorm:"default:false" json:"is_admin"`
	IsVerified bool           `gorm:"default:false" json:"is_verified"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// Role derives the authorization role from the admin flag.
func (u *User) Role() Role {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID   uint `json:"id"`
	Role Role `json:"role"`
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
