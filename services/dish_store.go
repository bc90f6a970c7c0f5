package services

import (
	"context"

	"potluck/models"
)

// DishStore is the remote table the roster mirrors. Select orders rows by
// created_at ascending; deleting an unknown id is not an error.
type DishStore interface {
	Select(ctx context.Context) ([]models.Dish, error)
	Insert(ctx context.Context, d models.Dish) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, fn func(models.ChangeEvent)) (Subscription, error)
}

// Subscription cancels a change feed registration.
type Subscription interface {
	Unsubscribe() error
}

type subscriptionFunc func() error

func (f subscriptionFunc) Unsubscribe() error { return f() }
