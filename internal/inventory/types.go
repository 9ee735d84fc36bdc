package inventory

import "time"

// Item is a tracked pantry or household item.
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	Unit      string    `json:"unit,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateRequest is the payload for adding an item.
type CreateRequest struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Unit     string `json:"unit"`
	Notes    string `json:"notes"`
}

// UpdateRequest is the payload for updating an item. Nil fields are left
// unchanged.
type UpdateRequest struct {
	Name     *string `json:"name"`
	Quantity *int64  `json:"quantity"`
	Unit     *string `json:"unit"`
	Notes    *string `json:"notes"`
}
