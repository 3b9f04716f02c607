package models

// Book is a title/author pair kept in the reading list.
type Book struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Volume is one search hit from the Google Books catalog.
type Volume struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Publisher     string   `json:"publisher"`
	PublishedDate string   `json:"publishedDate"`
	Description   string   `json:"description"`
}
