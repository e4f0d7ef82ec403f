package store

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/chatbridge/integration/database/pg"
)

// CreateUserIDImage inserts the record and assigns its id.
func (s *Store) CreateUserIDImage(ctx context.Context, img *UserIDImage) error {
	err := s.conn(ctx).QueryRow(ctx, `INSERT INTO user_id_images
			(user_id, image_type, media_handle, platform, status, storage_type, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		img.UserID, img.ImageType, img.MediaHandle, img.Platform, img.Status, img.StorageType, img.UploadedAt).
		Scan(&img.ID)
	if err != nil {
		return fmt.Errorf("store: create id image: %w", err)
	}
	return nil
}

// UserIDImage loads an ID image record.
func (s *Store) UserIDImage(ctx context.Context, id int64) (UserIDImage, error) {
	var img UserIDImage
	err := s.conn(ctx).QueryRow(ctx, `SELECT id, user_id, image_type, media_handle, platform, status,
			storage_path, storage_type, file_size, error_message, uploaded_at, processed_at
		FROM user_id_images WHERE id = $1`, id).
		Scan(&img.ID, &img.UserID, &img.ImageType, &img.MediaHandle, &img.Platform, &img.Status,
			&img.StoragePath, &img.StorageType, &img.FileSize, &img.ErrorMessage, &img.UploadedAt, &img.ProcessedAt)
	if pg.IsNotFoundError(err) {
		return UserIDImage{}, ErrNotFound
	}
	if err != nil {
		return UserIDImage{}, fmt.Errorf("store: load id image: %w", err)
	}
	return img, nil
}

// MarkImageProcessing moves a record to Processing.
func (s *Store) MarkImageProcessing(ctx context.Context, id int64) error {
	return s.setImageStatus(ctx, `UPDATE user_id_images SET status = $2, error_message = '' WHERE id = $1`,
		id, ImageProcessing)
}

// CompleteImage stores the archive location and marks the record Completed.
func (s *Store) CompleteImage(ctx context.Context, id int64, path, storageType string, size int64) error {
	return s.setImageStatus(ctx, `UPDATE user_id_images
		SET status = $2, storage_path = $3, storage_type = $4, file_size = $5, processed_at = $6, error_message = ''
		WHERE id = $1`, id, ImageCompleted, path, storageType, size, s.utcNow())
}

// FailImage records the failure reason and marks the record Failed.
func (s *Store) FailImage(ctx context.Context, id int64, reason string) error {
	return s.setImageStatus(ctx, `UPDATE user_id_images
		SET status = $2, error_message = $3, processed_at = $4
		WHERE id = $1`, id, ImageFailed, reason, s.utcNow())
}

func (s *Store) setImageStatus(ctx context.Context, sql string, args ...any) error {
	tag, err := s.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("store: update id image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateCampaignImage inserts the record and assigns its id.
func (s *Store) CreateCampaignImage(ctx context.Context, img *CampaignImage) error {
	err := s.conn(ctx).QueryRow(ctx, `INSERT INTO campaign_images
			(business_id, user_id, media_handle, caption, platform, uploaded_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		img.BusinessID, img.UserID, img.MediaHandle, img.Caption, img.Platform, img.UploadedAt, img.Active).
		Scan(&img.ID)
	if err != nil {
		return fmt.Errorf("store: create campaign image: %w", err)
	}
	return nil
}
