package services

import (
	"context"
	"fmt"
	"time"

	"potluck/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormDishStore is the dishes table behind gorm. Every successful write
// is announced on the feed.
type GormDishStore struct {
	db      *gorm.DB
	feed    ChangeFeed
	log     *zap.Logger
	metrics *Metrics
}

func NewGormDishStore(db *gorm.DB, feed ChangeFeed, log *zap.Logger) *GormDishStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &GormDishStore{db: db, feed: feed, log: log, metrics: NewMetrics()}
}

func (s *GormDishStore) Select(ctx context.Context) ([]models.Dish, error) {
	var dishes []models.Dish
	err := s.db.WithContext(ctx).
		Order("created_at ASC").Order("id ASC").
		Find(&dishes).Error
	s.metrics.StoreOps.WithLabelValues("select", outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("select dishes: %w", err)
	}
	return dishes, nil
}

// Insert stores created_at in UTC. sqlite compares timestamps as text, so
// mixed offsets would break the created_at ordering.
func (s *GormDishStore) Insert(ctx context.Context, d models.Dish) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.CreatedAt = d.CreatedAt.UTC()
	err := s.db.WithContext(ctx).Create(&d).Error
	s.metrics.StoreOps.WithLabelValues("insert", outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("insert dish %s: %w", d.ID, err)
	}
	s.announce(ctx, models.OpInsert, d.ID)
	return nil
}

func (s *GormDishStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Dish{})
	s.metrics.StoreOps.WithLabelValues("delete", outcome(res.Error)).Inc()
	if res.Error != nil {
		return fmt.Errorf("delete dish %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		s.announce(ctx, models.OpDelete, id)
	}
	return nil
}

func (s *GormDishStore) Subscribe(_ context.Context, fn func(models.ChangeEvent)) (Subscription, error) {
	return s.feed.Subscribe(fn)
}

// publish failures are logged only; the write itself already succeeded
func (s *GormDishStore) announce(ctx context.Context, op models.ChangeOp, id string) {
	ev := models.ChangeEvent{Table: models.DishesTable, Op: op, ID: id, At: time.Now()}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.log.Warn("publish change event failed", zap.String("op", string(op)), zap.String("id", id), zap.Error(err))
		return
	}
	s.metrics.ChangeEvents.WithLabelValues(string(op)).Inc()
}
