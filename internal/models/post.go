// Package models contains the data structures shared by the feed client, its stores and the
// development API.
package models

// Comment is a locally owned reply attached to a post. Comments have no stable id; their order in
// the parent's CommentsList is the chronological order.
type Comment struct {
	ID              *int   `json:"id,omitempty"`
	Username        string `json:"username"`
	Content         string `json:"content"`
	CreatedDatetime string `json:"created_datetime"`
}

// Post is the merged view of a remote record and its local interaction overlay.
type Post struct {
	ID              int       `json:"id"`
	Username        string    `json:"username"`
	CreatedDatetime string    `json:"created_datetime"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	Likes           int       `json:"likes"`
	CommentsList    []Comment `json:"commentsList"`
	Mentions        []string  `json:"mentions"`
}

// OwnedBy reports whether username authored the post. Only owners may edit or delete.
func (p Post) OwnedBy(username string) bool {
	return username != "" && p.Username == username
}

// RemotePost is a record as returned by the remote collection. The image, likes and comments
// fields are only present when the remote happens to echo them.
type RemotePost struct {
	ID              int       `json:"id"`
	Username        string    `json:"username"`
	CreatedDatetime string    `json:"created_datetime"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	Likes           *int      `json:"likes,omitempty"`
	CommentsList    []Comment `json:"commentsList,omitempty"`
}

// CreatePostData is the input to a create. ImageURL stays on the device.
type CreatePostData struct {
	Username string
	Title    string
	Content  string
	ImageURL string
}

// UpdatePostData is the input to an update.
type UpdatePostData struct {
	Title   string
	Content string
	Image   ImageChange
}

// ImageChangeKind distinguishes "not provided" from "explicitly cleared".
type ImageChangeKind int

const (
	ImageUnchanged ImageChangeKind = iota
	ImageCleared
	ImageSet
)

// ImageChange is the three-way image signal of an update.
type ImageChange struct {
	Kind  ImageChangeKind
	Value string
}

// KeepImage leaves the stored image untouched.
func KeepImage() ImageChange { return ImageChange{Kind: ImageUnchanged} }

// ClearImage removes the stored image.
func ClearImage() ImageChange { return ImageChange{Kind: ImageCleared} }

// SetImage replaces the stored image. An empty value is treated as a clear.
func SetImage(dataURI string) ImageChange {
	if dataURI == "" {
		return ClearImage()
	}
	return ImageChange{Kind: ImageSet, Value: dataURI}
}

// Provided reports whether the change should be sent with the remote patch.
func (c ImageChange) Provided() bool {
	return c.Kind != ImageUnchanged
}

// User is the single locally chosen identity of this device.
type User struct {
	Username string `json:"username"`
}
