package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ListingKind distinguishes the catalogs that share the listings table.
type ListingKind string

const (
	ListingProperty    ListingKind = "property"
	ListingResidential ListingKind = "residential"
	ListingCommercial  ListingKind = "commercial"
	ListingItem        ListingKind = "item"
)

// Valid reports whether k is a known catalog.
func (k ListingKind) Valid() bool {
	switch k {
	case ListingProperty, ListingResidential, ListingCommercial, ListingItem:
		return true
	}
	return false
}

// ListingStatus is the availability state of a listing.
type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingInactive ListingStatus = "inactive"
	ListingRented   ListingStatus = "rented"
	ListingSold     ListingStatus = "sold"
)

// Valid reports whether s is a known status.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingInactive, ListingRented, ListingSold:
		return true
	}
	return false
}

// Listing is a property or item offered by its owner. Kind-specific fields
// such as bedrooms, area or ownership live in Attributes.
type Listing struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Kind        ListingKind                 `gorm:"type:varchar(20);not null;index" json:"kind"`
	Title       string                      `gorm:"size:200;not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Price       float64                     `gorm:"not null;default:0" json:"price"`
	Category    string                      `gorm:"size:50;index" json:"category,omitempty"`
	Condition   string                      `gorm:"size:20" json:"condition,omitempty"`
	Location    string                      `gorm:"size:255;not null" json:"location"`
	City        string                      `gorm:"size:100;index" json:"city,omitempty"`
	State       string                      `gorm:"size:100" json:"state,omitempty"`
	Country     string                      `gorm:"size:100" json:"country,omitempty"`
	Status      ListingStatus               `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	IsAvailable bool                        `gorm:"not null;default:true" json:"is_available"`
	OwnerID     uint                        `gorm:"not null;index" json:"owner_id"`
	Owner       *User                       `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Images      datatypes.JSONSlice[string] `json:"images,omitempty"`
	Attributes  datatypes.JSONMap           `json:"attributes,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
	DeletedAt   gorm.DeletedAt              `gorm:"index" json:"-"`
}

// ItemOwner is what the chat store needs to know about a listing.
type ItemOwner struct {
	OwnerID uint
	Title   string
}
