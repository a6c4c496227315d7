package models

// Channel is a curated content channel in the resource database.
type Channel struct {
	ID         string `json:"id" redis:"id"`
	Name       string `json:"name" redis:"name"`
	ImageURL   string `json:"image_url" redis:"image_url"`
	Visibility string `json:"visibility" redis:"visibility"`
	Language   string `json:"language" redis:"language"`
	Link       string `json:"link,omitempty" redis:"link"`
}
