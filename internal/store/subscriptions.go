package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"production-output-backend/internal/errs"
	"production-output-backend/internal/model"
)

// PutSubscription creates or replaces a subscription and the machines it follows.
func (s *GormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription, machineIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return err
		}

		var machines []model.Machine
		if len(machineIDs) > 0 {
			if err := tx.Where("id IN ?", machineIDs).Find(&machines).Error; err != nil {
				return err
			}
		}

		return tx.Model(sub).Association("Machines").Replace(&machines)
	})
}

// DeleteSubscription removes a subscription and its machine mappings.
func (s *GormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	res := s.db.WithContext(ctx).Select(clause.Associations).Delete(&model.PushSubscription{Endpoint: endpoint})
	if res.Error != nil {
		return fmt.Errorf("failed to delete subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: subscription", errs.ErrNotFound)
	}
	return nil
}

// SubscriptionMachines returns the machine ids a subscription follows.
func (s *GormStore) SubscriptionMachines(ctx context.Context, endpoint string) ([]string, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Machines").First(&sub, "endpoint = ?", endpoint).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("%w: subscription", errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	ids := make([]string, len(sub.Machines))
	for i, m := range sub.Machines {
		ids[i] = m.ID
	}
	return ids, nil
}

// SubscriptionsForMachine returns the subscriptions following a machine.
func (s *GormStore) SubscriptionsForMachine(ctx context.Context, machineID string) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_machine_mapping smm ON smm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("smm.machine_id = ?", machineID).
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for machine %s: %w", machineID, err)
	}
	return subscriptions, nil
}
