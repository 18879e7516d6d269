package models

// Category is a user-owned transaction label.
type Category struct {
	ID       int64   `json:"id"`
	UserID   int64   `json:"-"`
	Name     string  `json:"name"`
	ImageURL *string `json:"image_url,omitempty"`
}
