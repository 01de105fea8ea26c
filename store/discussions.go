package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/anonid/models"
)

// InsertComment stores a comment.
func (t *Tx) InsertComment(c *models.Comment) error {
	return t.db.Create(c).Error
}

// Discussion loads a discussion by id.
func (t *Tx) Discussion(id string) (*models.Discussion, error) {
	var d models.Discussion
	if err := t.db.Where("id = ?", id).Take(&d).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// TouchParticipatedDiscussion records one more comment of an account on a discussion.
func (t *Tx) TouchParticipatedDiscussion(accountID, discussionID, newsURL string, at time.Time) error {
	row := models.ParticipatedDiscussion{
		AccountID:     accountID,
		DiscussionID:  discussionID,
		NewsURL:       newsURL,
		CommentCount:  1,
		LastCommentAt: at,
	}
	return t.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "discussion_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"news_url":        newsURL,
			"last_comment_at": at,
			"comment_count":   gorm.Expr("comment_count + 1"),
		}),
	}).Create(&row).Error
}

// RecordDiscussionComment bumps the comment counter and activity time of a discussion and, when
// the account comments there for the first time, its participant count.
func (t *Tx) RecordDiscussionComment(discussionID, accountID string, at time.Time) error {
	var seen int64
	if err := t.db.Model(&models.DiscussionParticipant{}).
		Where("discussion_id = ? AND account_id = ?", discussionID, accountID).
		Count(&seen).Error; err != nil {
		return err
	}
	updates := map[string]any{
		"comment_count":    gorm.Expr("comment_count + 1"),
		"last_activity_at": at,
		"updated_at":       at,
	}
	if seen == 0 {
		p := models.DiscussionParticipant{DiscussionID: discussionID, AccountID: accountID, CreatedAt: at}
		if err := t.db.Create(&p).Error; err != nil {
			return err
		}
		updates["participant_count"] = gorm.Expr("participant_count + 1")
	}
	return t.db.Model(&models.Discussion{}).Where("id = ?", discussionID).Updates(updates).Error
}

// TopDiscussions returns the discussions with the most participants.
func (s *Store) TopDiscussions(ctx context.Context, limit int) ([]models.Discussion, error) {
	var out []models.Discussion
	err := s.DB(ctx).Order("participant_count DESC").Order("id ASC").Limit(limit).Find(&out).Error
	return out, err
}

// PutCacheDocument replaces a cache document.
func (s *Store) PutCacheDocument(ctx context.Context, doc *models.CacheDocument) error {
	return s.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(doc).Error
}

// CacheDocument loads a cache document by name.
func (s *Store) CacheDocument(ctx context.Context, name string) (*models.CacheDocument, error) {
	var doc models.CacheDocument
	if err := s.DB(ctx).Where("name = ?", name).Take(&doc).Error; err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// UpsertDiscussion creates or refreshes the metadata of a discussion without touching counters.
func (s *Store) UpsertDiscussion(ctx context.Context, d *models.Discussion) error {
	return s.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "news_url", "category", "image_url", "source", "updated_at"}),
	}).Create(d).Error
}
