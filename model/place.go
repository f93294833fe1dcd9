package model

import "time"

// Place is a named location users can check in at.
type Place struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"index;size:128;not null" json:"name"`
	Address   string    `gorm:"size:255" json:"address"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
