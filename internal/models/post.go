package models

// Post is a single blog article stored in posts.json.
type Post struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ImagePath   string `json:"image_path"`
	PublishedAt string `json:"published_at"`
	CreatedAt   string `json:"created_at"`
}

// PostForm carries the text fields of the create and edit forms.
type PostForm struct {
	Title       string `form:"title"        validate:"required"`
	Content     string `form:"content"      validate:"required"`
	PublishedAt string `form:"published_at"`
}
