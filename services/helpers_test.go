package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"potluck/config"
	"potluck/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errBoom = errors.New("boom")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDB(config.DBConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// fakeStore is an in-memory DishStore with switchable failures.
type fakeStore struct {
	mu        sync.Mutex
	rows      []models.Dish
	selectErr error
	insertErr error
	deleteErr error
	selects   int
	inserts   int
	deletes   int
	feed      *LocalFeed
}

func newFakeStore(rows ...models.Dish) *fakeStore {
	return &fakeStore{rows: rows, feed: NewLocalFeed()}
}

func (s *fakeStore) Select(context.Context) ([]models.Dish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selects++
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	return cloneDishes(s.rows), nil
}

func (s *fakeStore) Insert(ctx context.Context, d models.Dish) error {
	s.mu.Lock()
	s.inserts++
	if s.insertErr != nil {
		s.mu.Unlock()
		return s.insertErr
	}
	s.rows = append(s.rows, d)
	s.mu.Unlock()
	return s.feed.Publish(ctx, models.ChangeEvent{Table: models.DishesTable, Op: models.OpInsert, ID: d.ID, At: time.Now()})
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	s.deletes++
	if s.deleteErr != nil {
		s.mu.Unlock()
		return s.deleteErr
	}
	removed := false
	for i, d := range s.rows {
		if d.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()
	if removed {
		return s.feed.Publish(ctx, models.ChangeEvent{Table: models.DishesTable, Op: models.OpDelete, ID: id, At: time.Now()})
	}
	return nil
}

func (s *fakeStore) Subscribe(_ context.Context, fn func(models.ChangeEvent)) (Subscription, error) {
	return s.feed.Subscribe(fn)
}

func (s *fakeStore) snapshot() []models.Dish {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDishes(s.rows)
}

func (s *fakeStore) counts() (selects, inserts, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selects, s.inserts, s.deletes
}

func (s *fakeStore) set(fn func(s *fakeStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// recorder collects notifier messages.
type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Notify(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

// tickingClock returns strictly increasing times.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 12, 20, 18, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func dish(id, name, dishName string, cat models.Category, at time.Time) models.Dish {
	return models.Dish{ID: id, Name: name, DishName: dishName, Type: cat, CreatedAt: at}
}
