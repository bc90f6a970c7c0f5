package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"potluck/models"
	"potluck/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestRoster(store DishStore, n Notifier) *Roster {
	return NewRoster(store, WithNotifier(n), WithClock(tickingClock()))
}

func TestRosterAddEntryThenLoad(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	rec := &recorder{}
	r := newTestRoster(store, rec)

	require.NoError(t, r.AddEntry(ctx, "  Ana ", " Lasanha  ", models.CategorySavory))
	require.NoError(t, r.AddEntry(ctx, "Bia", "Pudim", models.CategorySweet))
	require.NoError(t, r.AddEntry(ctx, "Caio", "Farofa", ""))

	got := r.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, "Ana", got[0].Name)
	assert.Equal(t, "Lasanha", got[0].DishName)
	assert.Equal(t, models.CategorySavory, got[0].Type)
	assert.Equal(t, models.CategorySweet, got[1].Type)
	assert.Equal(t, models.CategorySavory, got[2].Type, "empty category defaults to savory")
	assert.True(t, got[0].CreatedAt.Before(got[1].CreatedAt))

	seen := map[string]bool{}
	for _, d := range got {
		assert.True(t, utils.ValidDishID(d.ID))
		assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
		seen[d.ID] = true
	}
	assert.Empty(t, rec.all())
	assert.Equal(t, StateReady, r.State())
}

func TestRosterAddEntryValidation(t *testing.T) {
	cases := []struct {
		name, participant, dish string
		category                models.Category
		field                   string
		alert                   string
	}{
		{"empty participant", "", "Bolo", models.CategorySweet, "name", MsgFillAllFields},
		{"blank participant", "   \t", "Bolo", models.CategorySweet, "name", MsgFillAllFields},
		{"empty dish", "Ana", "", models.CategorySavory, "dish_name", MsgFillAllFields},
		{"blank dish", "Ana", "  ", models.CategorySavory, "dish_name", MsgFillAllFields},
		{"unknown category", "Ana", "Suco", models.Category("bebida"), "type", MsgChooseCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			existing := dish(utils.NewDishID(), "Bia", "Pudim", models.CategorySweet, time.Now())
			store := newFakeStore(existing)
			rec := &recorder{}
			r := newTestRoster(store, rec)
			_, err := r.LoadAll(context.Background())
			require.NoError(t, err)

			err = r.AddEntry(context.Background(), tc.participant, tc.dish, tc.category)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			_, inserts, _ := store.counts()
			assert.Zero(t, inserts, "no remote call for invalid input")
			assert.Equal(t, []string{tc.alert}, rec.all())
			assert.Equal(t, []models.Dish{existing}, r.Entries())
		})
	}
}

func TestRosterAddEmptyNameScenario(t *testing.T) {
	store := newFakeStore()
	rec := &recorder{}
	r := newTestRoster(store, rec)

	err := r.AddEntry(context.Background(), "", "Bolo", models.CategorySweet)
	require.Error(t, err)

	selects, inserts, _ := store.counts()
	assert.Zero(t, inserts)
	assert.Zero(t, selects)
	assert.Equal(t, []string{MsgFillAllFields}, rec.all())
}

func TestRosterAddEntryInsertFailure(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errBoom
	rec := &recorder{}
	r := newTestRoster(store, rec)

	form := &DishForm{Name: "Ana", DishName: "Lasanha", Category: models.CategorySweet}
	err := r.Submit(context.Background(), form)

	var rerr *RemoteOperationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "insert", rerr.Op)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{MsgAddFailed}, rec.all())
	assert.Equal(t, &DishForm{Name: "Ana", DishName: "Lasanha", Category: models.CategorySweet}, form, "form kept for retry")
	assert.Empty(t, r.Entries())
}

func TestRosterSubmitResetsForm(t *testing.T) {
	store := newFakeStore()
	r := newTestRoster(store, &recorder{})

	form := NewDishForm()
	form.Name = "Bia"
	form.DishName = "Pudim"
	form.Category = models.CategorySweet
	require.NoError(t, r.Submit(context.Background(), form))

	assert.Equal(t, "", form.Name)
	assert.Equal(t, "", form.DishName)
	assert.Equal(t, models.CategorySavory, form.Category)
	require.Len(t, r.Entries(), 1)
	assert.Equal(t, "Pudim", r.Entries()[0].DishName)
}

func TestRosterDeleteEntry(t *testing.T) {
	now := time.Now()
	a := dish(utils.NewDishID(), "Ana", "Lasanha", models.CategorySavory, now)
	b := dish(utils.NewDishID(), "Bia", "Pudim", models.CategorySweet, now.Add(time.Second))
	store := newFakeStore(a, b)
	rec := &recorder{}
	r := newTestRoster(store, rec)
	ctx := context.Background()

	_, err := r.LoadAll(ctx)
	require.NoError(t, err)

	require.NoError(t, r.DeleteEntry(ctx, a.ID))
	assert.Equal(t, []models.Dish{b}, r.Entries())

	require.NoError(t, r.DeleteEntry(ctx, utils.NewDishID()))
	assert.Equal(t, []models.Dish{b}, r.Entries())
	assert.Empty(t, rec.all())
}

func TestRosterDeleteFailure(t *testing.T) {
	a := dish(utils.NewDishID(), "Ana", "Lasanha", models.CategorySavory, time.Now())
	store := newFakeStore(a)
	rec := &recorder{}
	r := newTestRoster(store, rec)
	_, err := r.LoadAll(context.Background())
	require.NoError(t, err)

	store.set(func(s *fakeStore) { s.deleteErr = errBoom })
	err = r.DeleteEntry(context.Background(), a.ID)

	var rerr *RemoteOperationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "delete", rerr.Op)
	assert.Equal(t, []string{MsgRemoveFailed}, rec.all())
	assert.Equal(t, []models.Dish{a}, r.Entries())

	// still usable
	store.set(func(s *fakeStore) { s.deleteErr = nil })
	require.NoError(t, r.DeleteEntry(context.Background(), a.ID))
	assert.Empty(t, r.Entries())
}

func TestRosterLoadFailureKeepsPreviousList(t *testing.T) {
	now := time.Now()
	a := dish(utils.NewDishID(), "Ana", "Lasanha", models.CategorySavory, now)
	store := newFakeStore(a)
	rec := &recorder{}
	r := newTestRoster(store, rec)
	ctx := context.Background()

	assert.Equal(t, StateNotLoaded, r.State())
	_, err := r.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateReady, r.State())

	store.set(func(s *fakeStore) {
		s.selectErr = errBoom
		s.rows = nil
	})
	got, err := r.LoadAll(ctx)
	assert.Nil(t, got)
	var rerr *RemoteOperationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "select", rerr.Op)

	assert.Equal(t, []models.Dish{a}, r.Entries())
	assert.Equal(t, StateStale, r.State())
	assert.False(t, r.Loading())
	assert.Empty(t, rec.all(), "load failures are only logged")

	store.set(func(s *fakeStore) { s.selectErr = nil })
	_, err = r.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, r.Entries())
	assert.Equal(t, StateReady, r.State())
}

func TestRosterFirstLoadFailureIsStaleAndEmpty(t *testing.T) {
	store := newFakeStore()
	store.selectErr = errBoom
	r := newTestRoster(store, &recorder{})

	_, err := r.LoadAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateStale, r.State())
	assert.NotNil(t, r.Entries())
	assert.Empty(t, r.Entries())
}

func TestRosterLoadAllIdempotent(t *testing.T) {
	now := time.Now()
	store := newFakeStore(
		dish(utils.NewDishID(), "Ana", "Lasanha", models.CategorySavory, now),
		dish(utils.NewDishID(), "Bia", "Pudim", models.CategorySweet, now.Add(time.Second)),
	)
	r := newTestRoster(store, &recorder{})

	first, err := r.LoadAll(context.Background())
	require.NoError(t, err)
	second, err := r.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRosterEntriesIsACopy(t *testing.T) {
	store := newFakeStore(dish(utils.NewDishID(), "Ana", "Lasanha", models.CategorySavory, time.Now()))
	r := newTestRoster(store, &recorder{})
	_, err := r.LoadAll(context.Background())
	require.NoError(t, err)

	got := r.Entries()
	got[0].DishName = "changed"
	assert.Equal(t, "Lasanha", r.Entries()[0].DishName)
}

func TestRosterOnChange(t *testing.T) {
	store := newFakeStore()
	r := newTestRoster(store, &recorder{})
	ctx := context.Background()

	var mu sync.Mutex
	var snapshots [][]models.Dish
	cancel := r.OnChange(func(ds []models.Dish) {
		mu.Lock()
		snapshots = append(snapshots, ds)
		mu.Unlock()
	})

	require.NoError(t, r.AddEntry(ctx, "Ana", "Lasanha", models.CategorySavory))
	cancel()
	require.NoError(t, r.AddEntry(ctx, "Bia", "Pudim", models.CategorySweet))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, 1)
	assert.Len(t, snapshots[0], 1)
}

func TestRosterReloadsOnChangeNotification(t *testing.T) {
	store := newFakeStore()
	r := newTestRoster(store, &recorder{})
	require.NoError(t, r.Start(context.Background()))
	defer r.Dispose()

	// another participant writes directly to the table
	other := dish(utils.NewDishID(), "Bia", "Pudim", models.CategorySweet, time.Now())
	require.NoError(t, store.Insert(context.Background(), other))

	require.Eventually(t, func() bool {
		got := r.Entries()
		return len(got) == 1 && got[0].ID == other.ID
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRosterStartTwice(t *testing.T) {
	r := newTestRoster(newFakeStore(), &recorder{})
	require.NoError(t, r.Start(context.Background()))
	defer r.Dispose()
	assert.Error(t, r.Start(context.Background()))
}

func TestRosterStartWithFailingFirstLoad(t *testing.T) {
	store := newFakeStore()
	store.selectErr = errBoom
	r := newTestRoster(store, &recorder{})
	require.NoError(t, r.Start(context.Background()))
	defer r.Dispose()
	assert.Equal(t, StateStale, r.State())
}

func TestRosterDispose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := newFakeStore()
	r := newTestRoster(store, &recorder{})
	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, 1, store.feed.Subscribers())

	require.NoError(t, r.Dispose())
	require.NoError(t, r.Dispose())
	assert.Zero(t, store.feed.Subscribers(), "subscription cancelled")

	selectsBefore, _, _ := store.counts()
	require.NoError(t, store.Insert(context.Background(), dish(utils.NewDishID(), "Ana", "Lasanha", models.CategorySavory, time.Now())))
	time.Sleep(20 * time.Millisecond)
	selectsAfter, _, _ := store.counts()
	assert.Equal(t, selectsBefore, selectsAfter, "no reloads after dispose")

	_, err := r.LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, r.AddEntry(context.Background(), "Ana", "Bolo", models.CategorySweet), ErrDisposed)
	assert.ErrorIs(t, r.DeleteEntry(context.Background(), "x"), ErrDisposed)
	assert.ErrorIs(t, r.Start(context.Background()), ErrDisposed)
}

func TestRosterNotificationDuringLocalAdd(t *testing.T) {
	store := newFakeStore()
	r := newTestRoster(store, &recorder{})
	require.NoError(t, r.Start(context.Background()))
	defer r.Dispose()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, r.AddEntry(context.Background(), "Ana", "Lasanha", models.CategorySavory))
	}()
	go func() {
		defer wg.Done()
		// someone else's insert arrives as a notification
		assert.NoError(t, store.Insert(context.Background(), dish(utils.NewDishID(), "Bia", "Pudim", models.CategorySweet, time.Now())))
	}()
	wg.Wait()

	require.Eventually(t, func() bool {
		return len(r.Entries()) == 2 && !r.Loading()
	}, 2*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, store.snapshot(), r.Entries())
}

func TestRosterSubscribeError(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.feed.Close())
	r := newTestRoster(store, &recorder{})

	err := r.Start(context.Background())
	var rerr *RemoteOperationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "subscribe", rerr.Op)
	assert.True(t, errors.Is(err, errFeedClosed))
	require.NoError(t, r.Dispose())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "not-loaded", StateNotLoaded.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "stale", StateStale.String())
}
