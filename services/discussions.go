package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cppla/anonid/models"
	"github.com/cppla/anonid/store"
	"github.com/cppla/anonid/utils"
)

// PopularDiscussionsKey names the cached popular discussions document.
const PopularDiscussionsKey = "popularDiscussions"

const maxCommentLength = 2000

// PopularDiscussion is one entry of the popular discussions read model.
type PopularDiscussion struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	NewsURL          string     `json:"newsUrl"`
	ParticipantCount int64      `json:"participantCount"`
	CommentCount     int64      `json:"commentCount"`
	Category         string     `json:"category"`
	ImageURL         string     `json:"imageUrl"`
	Source           string     `json:"source"`
	LastActivityAt   *time.Time `json:"lastActivityAt"`
}

// PopularDiscussions is the denormalized list served to clients.
type PopularDiscussions struct {
	Items     []PopularDiscussion `json:"items"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// DiscussionService handles comments and the discussion read models.
type DiscussionService struct {
	*core
}

// CreateComment stores a comment and then updates the engagement counters. The counters are
// a separate step; its failure is logged and does not remove the comment.
func (s *DiscussionService) CreateComment(ctx context.Context, accountID, discussionID, newsURL, content string) (string, error) {
	content = strings.TrimSpace(utils.Sanitize(content))
	if accountID == "" || discussionID == "" || content == "" {
		return "", invalidArgument("uid, discussionId and content are required")
	}
	if len(content) > maxCommentLength {
		return "", invalidArgument("content is too long")
	}

	var comment models.Comment
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		if _, err := loadActive(tx, accountID); err != nil {
			return err
		}
		if _, err := tx.Discussion(discussionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFoundErr("discussion not found")
			}
			return err
		}
		comment = models.Comment{
			ID:           uuid.NewString(),
			DiscussionID: discussionID,
			AccountID:    accountID,
			NewsURL:      newsURL,
			Content:      content,
			CreatedAt:    s.clock(),
		}
		return tx.InsertComment(&comment)
	})
	if err != nil {
		return "", s.fail("create comment", err)
	}

	if err := s.OnCommentCreated(context.WithoutCancel(ctx), comment); err != nil {
		s.log.Warn("comment counters not updated", zap.String("comment", comment.ID), zap.Error(err))
	}
	return comment.ID, nil
}

// OnCommentCreated bumps the author's comment count, the author's participated discussion
// entry and the discussion's counters in one transaction. Missing accounts or discussions are
// skipped.
func (s *DiscussionService) OnCommentCreated(ctx context.Context, c models.Comment) error {
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		now := s.clock()
		acc, err := tx.Account(c.AccountID)
		switch {
		case err == nil:
			acc.CommentCount++
			acc.UpdatedAt = now
			if err := tx.UpdateAccount(acc); err != nil {
				return err
			}
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		if err := tx.TouchParticipatedDiscussion(c.AccountID, c.DiscussionID, c.NewsURL, now); err != nil {
			return err
		}

		_, err = tx.Discussion(c.DiscussionID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.RecordDiscussionComment(c.DiscussionID, c.AccountID, now)
	})
	if err != nil {
		return fmt.Errorf("process comment %s: %w", c.ID, err)
	}
	return nil
}

// RefreshPopular rebuilds the popular discussions document from the discussions with the most
// participants and mirrors it into the cache.
func (s *DiscussionService) RefreshPopular(ctx context.Context) (*PopularDiscussions, error) {
	rows, err := s.store.TopDiscussions(ctx, s.policy.PopularLimit)
	if err != nil {
		return nil, fmt.Errorf("load top discussions: %w", err)
	}
	out := &PopularDiscussions{Items: make([]PopularDiscussion, 0, len(rows)), UpdatedAt: s.clock()}
	for _, d := range rows {
		out.Items = append(out.Items, PopularDiscussion{
			ID:               d.ID,
			Title:            d.Title,
			NewsURL:          d.NewsURL,
			ParticipantCount: d.ParticipantCount,
			CommentCount:     d.CommentCount,
			Category:         d.Category,
			ImageURL:         d.ImageURL,
			Source:           d.Source,
			LastActivityAt:   d.LastActivityAt,
		})
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutCacheDocument(ctx, &models.CacheDocument{
		Name:      PopularDiscussionsKey,
		Payload:   payload,
		UpdatedAt: out.UpdatedAt,
	}); err != nil {
		return nil, fmt.Errorf("save popular discussions: %w", err)
	}
	if s.cache != nil {
		s.cache.SetBytes(ctx, PopularDiscussionsKey, payload, s.policy.PopularCacheTTL)
	}
	s.log.Info("popular discussions refreshed", zap.Int("items", len(out.Items)))
	return out, nil
}

// PopularDiscussions returns the last refreshed list, from the cache when possible. Before the
// first refresh the list is empty.
func (s *DiscussionService) PopularDiscussions(ctx context.Context) (*PopularDiscussions, error) {
	if s.cache != nil {
		if b, ok := s.cache.GetBytes(ctx, PopularDiscussionsKey); ok {
			var out PopularDiscussions
			if err := json.Unmarshal(b, &out); err == nil {
				return &out, nil
			}
		}
	}

	doc, err := s.store.CacheDocument(ctx, PopularDiscussionsKey)
	if errors.Is(err, store.ErrNotFound) {
		return &PopularDiscussions{Items: []PopularDiscussion{}}, nil
	}
	if err != nil {
		return nil, s.fail("load popular discussions", err)
	}
	var out PopularDiscussions
	if err := json.Unmarshal(doc.Payload, &out); err != nil {
		return nil, s.fail("load popular discussions", err)
	}
	if s.cache != nil {
		s.cache.SetBytes(ctx, PopularDiscussionsKey, doc.Payload, s.policy.PopularCacheTTL)
	}
	return &out, nil
}
