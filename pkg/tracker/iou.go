package tracker

import (
	"context"
	"fmt"

	"github.com/financeos/fos/pkg/model"
)

// IOUs never feed a spend snapshot, so none of these methods evaluate alerts.

// AddIOU validates and stores a new, open IOU.
func (t *Tracker) AddIOU(ctx context.Context, o *model.IOU) error {
	o.Settle(false, t.now())
	if err := o.Validate(); err != nil {
		return fmt.Errorf("invalid iou: %w", err)
	}
	if err := t.storage.CreateIOU(ctx, o); err != nil {
		return fmt.Errorf("store iou: %w", err)
	}

	t.logger.Info("iou recorded",
		"user_id", o.UserID,
		"type", string(o.Type),
		"amount", o.Amount.String(),
	)
	return nil
}

// UpdateIOU replaces an existing IOU's details.
func (t *Tracker) UpdateIOU(ctx context.Context, o *model.IOU) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("invalid iou: %w", err)
	}
	if err := t.storage.UpdateIOU(ctx, o); err != nil {
		return fmt.Errorf("update iou: %w", err)
	}

	t.logger.Info("iou updated", "user_id", o.UserID, "id", o.ID)
	return nil
}

// SettleIOU marks an IOU settled now, or reopens it.
func (t *Tracker) SettleIOU(ctx context.Context, userID, id string, settled bool) (*model.IOU, error) {
	o, err := t.storage.GetIOU(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	o.Settle(settled, t.now())
	if err := t.storage.UpdateIOU(ctx, o); err != nil {
		return nil, fmt.Errorf("settle iou: %w", err)
	}

	t.logger.Info("iou settlement changed", "user_id", userID, "id", id, "settled", settled)
	return o, nil
}

// DeleteIOU removes an IOU.
func (t *Tracker) DeleteIOU(ctx context.Context, userID, id string) error {
	if err := t.storage.DeleteIOU(ctx, userID, id); err != nil {
		return fmt.Errorf("delete iou: %w", err)
	}
	return nil
}

// IOU returns one of the user's IOUs.
func (t *Tracker) IOU(ctx context.Context, userID, id string) (*model.IOU, error) {
	return t.storage.GetIOU(ctx, userID, id)
}

// IOUs returns the user's IOUs, open ones first.
func (t *Tracker) IOUs(ctx context.Context, userID string) ([]model.IOU, error) {
	return t.storage.ListIOUs(ctx, userID)
}
