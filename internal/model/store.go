package model

// Store is a place where an item can be bought.
type Store struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	City      *string  `json:"city,omitempty"`
	State     *string  `json:"state,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasLocation reports whether both coordinates are known.
func (s *Store) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Base is a school or training location used as the reference point for
// store proximity.
type Base struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasLocation reports whether both coordinates are known.
func (b *Base) HasLocation() bool {
	return b.Latitude != nil && b.Longitude != nil
}
