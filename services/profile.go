package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/datatypes"

	"github.com/cppla/anonid/models"
	"github.com/cppla/anonid/store"
	"github.com/cppla/anonid/utils"
)

const (
	minNicknameLength = 2
	maxNicknameLength = 20
	maxNewsIDLength   = 128
)

// Reasons reported by VerifyUID when an identity is rejected.
const (
	ReasonUserNotFound    = "user_not_found"
	ReasonDeviceMismatch  = "device_mismatch"
	ReasonAccountInactive = "account_inactive"
)

// Verification is the result of VerifyUID. Reason is set only when Valid is false.
type Verification struct {
	Valid         bool
	Reason        string
	DisplayName   string
	TokenBalance  int64
	FavoriteCount int64
	CommentCount  int64
}

// ProfileService covers account-level reads and edits outside the ledger.
type ProfileService struct {
	*core
}

// VerifyUID checks that a stored uid still belongs to the calling device and is active.
func (s *ProfileService) VerifyUID(ctx context.Context, accountID, deviceID string) (*Verification, error) {
	if accountID == "" || deviceID == "" {
		return nil, invalidArgument("uid and deviceId are required")
	}
	fp := s.ids.Fingerprint(deviceID)

	var out *Verification
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		out = nil
		acc, err := tx.Account(accountID)
		if errors.Is(err, store.ErrNotFound) {
			out = &Verification{Reason: ReasonUserNotFound}
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case acc.DeviceFingerprint != fp:
			out = &Verification{Reason: ReasonDeviceMismatch}
			return nil
		case !acc.IsActive():
			out = &Verification{Reason: ReasonAccountInactive}
			return nil
		}
		acc.LastLoginAt = s.clock()
		if err := tx.UpdateAccount(acc); err != nil {
			return err
		}
		out = &Verification{
			Valid:         true,
			DisplayName:   acc.DisplayName,
			TokenBalance:  acc.TokenBalance,
			FavoriteCount: acc.FavoriteCount,
			CommentCount:  acc.CommentCount,
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("verify uid", err)
	}
	return out, nil
}

// UpdateNickname replaces the display name after stripping markup.
func (s *ProfileService) UpdateNickname(ctx context.Context, accountID, nickname string) (string, error) {
	nickname = strings.TrimSpace(utils.SanitizeText(nickname))
	if accountID == "" || nickname == "" {
		return "", invalidArgument("uid and nickname are required")
	}
	if n := utf8.RuneCountInString(nickname); n < minNicknameLength || n > maxNicknameLength {
		return "", invalidArgument("nickname must be 2-20 characters")
	}

	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		acc, err := loadActive(tx, accountID)
		if err != nil {
			return err
		}
		acc.DisplayName = nickname
		acc.UpdatedAt = s.clock()
		return tx.UpdateAccount(acc)
	})
	if err != nil {
		return "", s.fail("update nickname", err)
	}
	return nickname, nil
}

// ToggleFavorite adds the news item to the account's favorites or removes it when already
// present. It reports true when the item was added.
func (s *ProfileService) ToggleFavorite(ctx context.Context, accountID, newsID string, newsData json.RawMessage) (bool, error) {
	if accountID == "" || newsID == "" {
		return false, invalidArgument("uid and newsId are required")
	}
	if len(newsID) > maxNewsIDLength {
		return false, invalidArgument("newsId is too long")
	}
	if len(newsData) > 0 && !json.Valid(newsData) {
		return false, invalidArgument("newsData must be valid JSON")
	}
	id := models.FavoriteID(accountID, newsID)

	var added bool
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		added = false
		now := s.clock()
		acc, err := loadActive(tx, accountID)
		if err != nil {
			return err
		}

		_, err = tx.Favorite(id)
		switch {
		case err == nil:
			if err := tx.DeleteFavorite(id); err != nil {
				return err
			}
			if acc.FavoriteCount > 0 {
				acc.FavoriteCount--
			}
		case errors.Is(err, store.ErrNotFound):
			if err := tx.InsertFavorite(&models.Favorite{
				ID:        id,
				AccountID: accountID,
				NewsID:    newsID,
				NewsData:  datatypes.JSON(newsData),
				CreatedAt: now,
			}); err != nil {
				return err
			}
			acc.FavoriteCount++
			added = true
		default:
			return err
		}
		acc.UpdatedAt = now
		return tx.UpdateAccount(acc)
	})
	if err != nil {
		return false, s.fail("toggle favorite", err)
	}
	return added, nil
}
