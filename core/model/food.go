package model

import "fmt"

// Food describes the parcel of an order. Size counts against a robot's
// backpack capacity.
type Food struct {
	Size int `json:"size"`
}

// Validate checks that the food has a positive size.
func (f Food) Validate() error {
	if f.Size <= 0 {
		return fmt.Errorf("food size must be positive, got %d", f.Size)
	}
	return nil
}
