package model

// Article data model. The server is the source of truth; the client holds
// cached copies keyed by article id and by owning user.
type Article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Image   string `json:"image,omitempty"` // inline data URL or plain URL
	Author  string `json:"author"`          // owning user id
}
