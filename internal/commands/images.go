package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/chatbridge/internal/bus"
	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/internal/store"
)

// idImage registers a photo of an identity document and queues it for
// download and archival.
type idImage struct {
	deps Deps
	side string // "front" or "back"
}

func (c *idImage) Execute(ctx context.Context, req command.Request) (command.Result, error) {
	if req.MediaHandle == "" {
		return command.Text(fmt.Sprintf("❌ Please attach a photo of your ID %s with the caption #id%s.", c.side, c.side)), nil
	}
	if req.User == nil {
		return command.Text(msgUserNotFound), nil
	}

	img := &store.UserIDImage{
		UserID:      req.User.ID,
		ImageType:   c.side,
		MediaHandle: req.MediaHandle,
		Platform:    req.Channel.String(),
		Status:      store.ImagePending,
		UploadedAt:  c.deps.now(),
	}
	if err := c.deps.Images.CreateUserIDImage(ctx, img); err != nil {
		return command.Result{}, fmt.Errorf("record id image: %w", err)
	}
	if err := c.deps.ImageJobs.PublishImageJob(ctx, bus.ImageJob{
		UserIDImageID: img.ID,
		UserID:        img.UserID,
		MediaHandle:   img.MediaHandle,
		ImageType:     img.ImageType,
		Platform:      req.Channel,
		QueuedAt:      img.UploadedAt,
	}); err != nil {
		return command.Result{}, fmt.Errorf("queue id image: %w", err)
	}

	c.deps.Logger.InfoContext(ctx, "id image queued",
		slog.Int64("image_id", img.ID),
		slog.String("user_id", img.UserID),
		slog.String("type", c.side))
	return command.Text(fmt.Sprintf("✓ ID %s image received. We'll process it shortly.", c.side)), nil
}

// campaignImage stores an inbound image handle for later broadcasts and
// echoes the image back as a preview of what recipients will see.
type campaignImage struct {
	deps Deps
}

func (c *campaignImage) Execute(ctx context.Context, req command.Request) (command.Result, error) {
	if req.MediaHandle == "" {
		return command.Text(msgCampaignNoImage), nil
	}
	if !req.Business.Configured() {
		return command.Text(msgBusinessNotSet), nil
	}

	img := &store.CampaignImage{
		BusinessID:  req.Business.ID,
		MediaHandle: req.MediaHandle,
		Caption:     req.Caption,
		Platform:    req.Channel.String(),
		UploadedAt:  c.deps.now(),
		Active:      true,
	}
	if req.User != nil {
		img.UserID = req.User.ID
	}
	if err := c.deps.Images.CreateCampaignImage(ctx, img); err != nil {
		return command.Result{}, fmt.Errorf("record campaign image: %w", err)
	}
	return command.Media(msgCampaignSaved, img.MediaHandle), nil
}
