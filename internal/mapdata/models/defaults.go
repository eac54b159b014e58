package models

import (
	"fmt"

	"github.com/paulmach/orb"
)

const (
	// DefaultRoomColor is assigned to rooms created by drawing.
	DefaultRoomColor = "#ff0000"
	// DefaultRoomColumnColor is the rooms.color column default.
	DefaultRoomColumnColor = "#EFF2F7"
	DefaultRoomCapacity    = 10
)

// RoomName numbers a drawn room after the rooms already present.
func RoomName(existing int) string {
	return fmt.Sprintf("Mystery room %d", existing+1)
}

// NewDrawnRoom builds the room a closed polygon gesture produces.
func NewDrawnRoom(poly orb.Polygon, existing int) Room {
	return Room{
		ID:          NewID(),
		Polygon:     poly,
		Name:        RoomName(existing),
		Color:       DefaultRoomColor,
		Capacity:    DefaultRoomCapacity,
		AVEquipment: []string{},
	}
}

// ============================================================
// Plain rows
// ============================================================

type Building struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	ImageURL string  `json:"imageUrl"`
}

func BuildingFromRecord(rec Record) Building {
	return Building{
		ID:       rec.Str("id"),
		Name:     rec.Str("name"),
		Address:  rec.Str("address"),
		Lat:      rec.Float("lat"),
		Lon:      rec.Float("lon"),
		ImageURL: rec.Str("imageUrl"),
	}
}

type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Country string `json:"country"`
	Age     int    `json:"age"`
}

func UserFromRecord(rec Record) User {
	return User{
		ID:      rec.Str("id"),
		Name:    rec.Str("name"),
		Email:   rec.Str("email"),
		Role:    rec.Str("role"),
		Country: rec.Str("country"),
		Age:     rec.Int("age"),
	}
}
