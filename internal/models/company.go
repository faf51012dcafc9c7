package models

import "gorm.io/gorm"

// Company is an operator tenant. Routes, buses and staff all hang off it.
type Company struct {
	gorm.Model
	Name         string `json:"name" gorm:"not null"`
	ContactEmail string `json:"contactEmail"`
	ContactPhone string `json:"contactPhone"`
	Routes       []Route `json:"routes,omitempty" gorm:"foreignKey:CompanyID"`
	Buses        []Bus   `json:"buses,omitempty" gorm:"foreignKey:CompanyID"`
}

// TableName specifies the table name
func (Company) TableName() string {
	return "companies"
}

// Waypoint is one ordered point along a route's planned path.
type Waypoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Route is a company's named service between two places, with the
// ordered waypoints that define its corridor.
type Route struct {
	gorm.Model
	CompanyID   uint       `json:"companyId" gorm:"not null"`
	Company     *Company   `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
	Name        string     `json:"name" gorm:"not null"`
	Origin      string     `json:"origin" gorm:"not null"`
	Destination string     `json:"destination" gorm:"not null"`
	Fare        float64    `json:"fare" gorm:"not null"`
	Waypoints   []Waypoint `json:"waypoints" gorm:"serializer:json"`
}

// TableName specifies the table name
func (Route) TableName() string {
	return "routes"
}

// Bus carries its last reported position inline. Positions are
// last-write-wins, so a single row per bus is enough.
type Bus struct {
	gorm.Model
	CompanyID      uint     `json:"companyId" gorm:"not null"`
	Company        *Company `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
	Plate          string   `json:"plate" gorm:"uniqueIndex;not null"`
	Capacity       int      `json:"capacity" gorm:"not null"`
	DriverID       *uint    `json:"driverId"`
	Driver         *User    `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	CurrentLat     float64  `json:"currentLat"`
	CurrentLng     float64  `json:"currentLng"`
	PositionAt     *int64   `json:"positionAt"`
	CurrentAddress string   `json:"currentAddress"`
}

// TableName specifies the table name
func (Bus) TableName() string {
	return "buses"
}
