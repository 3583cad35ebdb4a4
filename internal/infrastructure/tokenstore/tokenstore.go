// Package tokenstore keeps the short-lived tokens of the registration flows
// in Redis: download tokens for generated client files, single-use deeplink
// invitations, and the registered-IP marks of the web form. Expiry is
// delegated to Redis TTLs instead of a cleanup scan.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
)

const (
	downloadKeyPrefix = "files:download_token:"
	deeplinkKeyPrefix = "tg:deeplink_token:"
	ipKeyPrefix       = "web:registered_ip:"
)

// DownloadToken describes one downloadable generated file.
type DownloadToken struct {
	Type     domain.DownloadTokenType `json:"type"`
	FilePath string                   `json:"file_path"`
	Filename string                   `json:"filename"`
}

// Store is the Redis-backed token store.
type Store struct {
	client *redis.Client
}

// NewStore creates a token store over the given Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// IssueDownloadToken stores tok under a fresh random token valid for ttl and
// returns the token.
func (s *Store) IssueDownloadToken(ctx context.Context, tok DownloadToken, ttl time.Duration) (string, error) {
	if tok.FilePath == "" || tok.Filename == "" {
		return "", errs.ErrInvalidInput
	}

	payload, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("marshal download token: %w", err)
	}

	token := uuid.NewString()
	if err := s.client.Set(ctx, downloadKeyPrefix+token, payload, ttl).Err(); err != nil {
		return "", fmt.Errorf("store download token: %w", err)
	}
	return token, nil
}

// ConsumeDownloadToken atomically retrieves and invalidates a download
// token. Unknown and expired tokens yield errs.ErrTokenNotFound.
func (s *Store) ConsumeDownloadToken(ctx context.Context, token string) (*DownloadToken, error) {
	payload, err := s.client.GetDel(ctx, downloadKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errs.ErrTokenNotFound
		}
		return nil, fmt.Errorf("consume download token: %w", err)
	}

	var tok DownloadToken
	if err := json.Unmarshal([]byte(payload), &tok); err != nil {
		return nil, fmt.Errorf("unmarshal download token: %w", err)
	}
	return &tok, nil
}

// IssueDeeplink creates a single-use invitation token valid for ttl. The
// generating admin is stored for the audit message on use.
func (s *Store) IssueDeeplink(ctx context.Context, generatedBy domain.TelegramID, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	value := fmt.Sprintf("%d", generatedBy.Int64())
	if err := s.client.Set(ctx, deeplinkKeyPrefix+token, value, ttl).Err(); err != nil {
		return "", fmt.Errorf("store deeplink token: %w", err)
	}
	return token, nil
}

// ValidateDeeplink reports whether the invitation is still live without
// consuming it.
func (s *Store) ValidateDeeplink(ctx context.Context, token string) (bool, error) {
	exists, err := s.client.Exists(ctx, deeplinkKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("validate deeplink token: %w", err)
	}
	return exists > 0, nil
}

// ConsumeDeeplink atomically invalidates the invitation and returns the
// admin who generated it. A token already used or expired yields
// errs.ErrTokenNotFound, so concurrent registrants cannot share one invite.
func (s *Store) ConsumeDeeplink(ctx context.Context, token string) (domain.TelegramID, error) {
	value, err := s.client.GetDel(ctx, deeplinkKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, errs.ErrTokenNotFound
		}
		return 0, fmt.Errorf("consume deeplink token: %w", err)
	}

	var generatedBy int64
	if _, err := fmt.Sscanf(value, "%d", &generatedBy); err != nil {
		return 0, fmt.Errorf("parse deeplink issuer: %w", err)
	}
	return domain.TelegramID(generatedBy), nil
}

// MarkIPRegistered records that ip completed a web registration. The mark
// expires after ttl; a non-positive ttl keeps it forever.
func (s *Store) MarkIPRegistered(ctx context.Context, ip, username string, ttl time.Duration) error {
	if ip == "" {
		return errs.ErrInvalidInput
	}
	if err := s.client.Set(ctx, ipKeyPrefix+ip, username, ttl).Err(); err != nil {
		return fmt.Errorf("mark ip registered: %w", err)
	}
	return nil
}

// IsIPRegistered reports whether ip already registered an account.
func (s *Store) IsIPRegistered(ctx context.Context, ip string) (bool, error) {
	exists, err := s.client.Exists(ctx, ipKeyPrefix+ip).Result()
	if err != nil {
		return false, fmt.Errorf("check registered ip: %w", err)
	}
	return exists > 0, nil
}
