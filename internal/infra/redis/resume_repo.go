package redis

import (
	"context"
	"fmt"
	"time"

	"wisestudent-purchase/internal/domain"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/repository"
)

var _ repository.ResumeStateRepository = (*ResumeRepo)(nil)

// ResumeRepo keeps pending-intent bookkeeping across the external auth
// redirect. Keys are derived from the target, not the session: the redirect
// loses the session but the client still knows what it was buying.
type ResumeRepo struct {
	client *Client
	ttl    time.Duration
}

func NewResumeRepo(client *Client, ttl time.Duration) *ResumeRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResumeRepo{client: client, ttl: ttl}
}

func (s *ResumeRepo) key(tt model.TargetType, ref string) string {
	return fmt.Sprintf("resume:%s:%s", tt, ref)
}

func (s *ResumeRepo) Set(ctx context.Context, tt model.TargetType, ref, intentID string) error {
	return s.client.Set(ctx, s.key(tt, ref), intentID, s.ttl)
}

func (s *ResumeRepo) Get(ctx context.Context, tt model.TargetType, ref string) (string, error) {
	id, err := s.client.Get(ctx, s.key(tt, ref))
	if err != nil {
		if IsNil(err) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return id, nil
}

func (s *ResumeRepo) Clear(ctx context.Context, tt model.TargetType, ref string) error {
	return s.client.Del(ctx, s.key(tt, ref))
}
