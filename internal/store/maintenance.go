package store

import (
	"context"
	"fmt"
	"time"
)

// DeleteCompletedCampaigns removes broadcast campaigns that completed
// before the cutoff.
func (s *Store) DeleteCompletedCampaigns(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.conn(ctx).Exec(ctx,
		`DELETE FROM broadcast_campaigns WHERE status = 'Completed' AND completed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("store: delete campaigns: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeactivateCampaignImages hides campaign images uploaded before the cutoff.
func (s *Store) DeactivateCampaignImages(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE campaign_images SET is_active = FALSE WHERE is_active AND uploaded_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("store: deactivate campaign images: %w", err)
	}
	return tag.RowsAffected(), nil
}
