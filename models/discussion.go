package models

import (
	"time"

	"gorm.io/datatypes"
)

// Favorite marks a news item saved by an account. ID is "<accountID>_<newsID>".
type Favorite struct {
	ID        string         `gorm:"primaryKey;size:160" json:"id"`
	AccountID string         `gorm:"size:32;index;not null" json:"uid"`
	NewsID    string         `gorm:"size:128;not null" json:"news_id"`
	NewsData  datatypes.JSON `json:"news_data"`
	CreatedAt time.Time      `json:"created_at"`
}

// FavoriteID builds the favorite key for an account and news item.
func FavoriteID(accountID, newsID string) string {
	return accountID + "_" + newsID
}

// Discussion is the comment thread attached to a news article.
type Discussion struct {
	ID               string     `gorm:"primaryKey;size:64" json:"id"`
	Title            string     `gorm:"size:255" json:"title"`
	NewsURL          string     `gorm:"size:512" json:"news_url"`
	Category         string     `gorm:"size:64" json:"category"`
	ImageURL         string     `gorm:"size:512" json:"image_url"`
	Source           string     `gorm:"size:128" json:"source"`
	ParticipantCount int64      `gorm:"not null;default:0;index" json:"participant_count"`
	CommentCount     int64      `gorm:"not null;default:0" json:"comment_count"`
	LastActivityAt   *time.Time `json:"last_activity_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DiscussionParticipant lists every account that commented at least once on a discussion.
type DiscussionParticipant struct {
	DiscussionID string `gorm:"primaryKey;size:64"`
	AccountID    string `gorm:"primaryKey;size:32"`
	CreatedAt    time.Time
}

// Comment is a reply posted to a discussion.
type Comment struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	DiscussionID string    `gorm:"size:64;index;not null" json:"discussion_id"`
	AccountID    string    `gorm:"size:32;index;not null" json:"uid"`
	NewsURL      string    `gorm:"size:512" json:"news_url"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// ParticipatedDiscussion tracks the discussions an account has commented on.
type ParticipatedDiscussion struct {
	AccountID     string    `gorm:"primaryKey;size:32" json:"-"`
	DiscussionID  string    `gorm:"primaryKey;size:64" json:"discussion_id"`
	NewsURL       string    `gorm:"size:512" json:"news_url"`
	CommentCount  int64     `gorm:"not null;default:0" json:"comment_count"`
	LastCommentAt time.Time `json:"last_comment_at"`
}

// CacheDocument stores denormalized read models such as the popular discussions list.
type CacheDocument struct {
	Name      string         `gorm:"primaryKey;size:64" json:"name"`
	Payload   datatypes.JSON `json:"payload"`
	UpdatedAt time.Time      `json:"updated_at"`
}
