package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Article statuses
const (
	ArticleDraft     = "draft"
	ArticlePublished = "published"
)

// Article is a blog post, produced by the content generator or seeded
// manually. Content is never mutated after publish; only the view
// counter moves.
type Article struct {
	gorm.Model
	Slug    string `gorm:"uniqueIndex;not null" json:"slug"`
	Title   string `gorm:"not null" json:"title"`
	Excerpt string `gorm:"type:text" json:"excerpt"`
	Content string `gorm:"type:text" json:"content"`

	Category string         `gorm:"index" json:"category"`
	Tags     datatypes.JSON `json:"tags"`

	// SEO fields returned by the generator
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`

	Status      string     `gorm:"default:'draft';index" json:"status"`
	PublishedAt *time.Time `gorm:"index" json:"published_at"`

	ViewCount int `gorm:"default:0" json:"view_count"`
}
