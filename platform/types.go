package platform

import (
	"encoding/json"
	"strings"
)

// Post is a platform post as seen by the agent.
type Post struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	URL          string `json:"url,omitempty"`
	Author       string `json:"author"`
	Community    string `json:"community"`
	Karma        int    `json:"karma"`
	CreatedAt    string `json:"created_at"`
	CommentCount int    `json:"comment_count"`
}

// Text is the content the agent scans and replies to.
func (p *Post) Text() string {
	if p.Content == "" {
		return p.Title
	}
	if p.Title == "" {
		return p.Content
	}
	return p.Title + "\n\n" + p.Content
}

type Comment struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	ParentID  string `json:"parent_id,omitempty"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Karma     int    `json:"karma"`
	CreatedAt string `json:"created_at"`
}

// Profile is the authenticated agent's own account.
type Profile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Karma       int    `json:"karma"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	CreatedAt   string `json:"created_at"`
	Status      string `json:"status"`
}

// nameRef decodes fields the API sends either as a bare string or as an
// object with a name (or slug).
type nameRef string

func (n *nameRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = nameRef(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		// tolerate unexpected shapes (numbers, arrays)
		*n = ""
		return nil
	}
	if obj.Name != "" {
		*n = nameRef(obj.Name)
	} else {
		*n = nameRef(obj.Slug)
	}
	return nil
}

type wirePost struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	URL          *string `json:"url"`
	Author       nameRef `json:"author"`
	AuthorName   string  `json:"author_name"`
	Submolt      nameRef `json:"submolt"`
	Karma        *int    `json:"karma"`
	Score        *int    `json:"score"`
	CreatedAt    string  `json:"created_at"`
	CommentCount *int    `json:"comment_count"`
	Comments     *int    `json:"comments"`
}

func (w *wirePost) post() Post {
	p := Post{
		ID:        w.ID,
		Title:     w.Title,
		Content:   w.Content,
		Author:    string(w.Author),
		Community: CommunityName(string(w.Submolt)),
		CreatedAt: w.CreatedAt,
	}
	if p.Author == "" {
		p.Author = w.AuthorName
	}
	if w.URL != nil {
		p.URL = *w.URL
	}
	p.Karma = firstInt(w.Karma, w.Score)
	p.CommentCount = firstInt(w.CommentCount, w.Comments)
	return p
}

type wireComment struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Author     nameRef `json:"author"`
	AuthorName string  `json:"author_name"`
	ParentID   *string `json:"parent_id"`
	Karma      *int    `json:"karma"`
	Score      *int    `json:"score"`
	CreatedAt  string  `json:"created_at"`
}

func (w *wireComment) comment(postID string) Comment {
	c := Comment{
		ID:        w.ID,
		PostID:    postID,
		Content:   w.Content,
		Author:    string(w.Author),
		Karma:     firstInt(w.Karma, w.Score),
		CreatedAt: w.CreatedAt,
	}
	if c.Author == "" {
		c.Author = w.AuthorName
	}
	if w.ParentID != nil {
		c.ParentID = *w.ParentID
	}
	return c
}

func firstInt(vals ...*int) int {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

// CommunityName strips the display prefix ("m/general" to "general").
func CommunityName(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "m/")
}
