package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"potluck/models"
	"potluck/utils"

	"go.uber.org/zap"
)

type State int

const (
	StateNotLoaded State = iota
	StateLoading
	StateReady
	StateStale // last load failed; entries are whatever we had before (maybe none)
)

func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not-loaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	}
	return "unknown"
}

// Notifier shows a blocking message to the participant.
type Notifier interface {
	Notify(msg string)
}

type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

type observer struct {
	id int
	fn func([]models.Dish)
}

// Roster mirrors the dishes table. It is the only thing that writes to the
// store, and after every write, and every change notification, it reloads
// the whole table. The list is replaced by whichever load completes last.
type Roster struct {
	store    DishStore
	log      *zap.Logger
	notifier Notifier
	metrics  *Metrics
	now      func() time.Time
	newID    func() string

	mu        sync.RWMutex
	entries   []models.Dish
	loaded    bool
	lastErr   error
	inflight  int
	observers []observer
	nextObs   int
	disposed  bool
	started   bool
	sub       Subscription
	cancel    context.CancelFunc

	notifyMu sync.Mutex
	reload   chan struct{}
	wg       sync.WaitGroup
}

type RosterOption func(*Roster)

func WithLogger(log *zap.Logger) RosterOption {
	return func(r *Roster) { r.log = log }
}

func WithNotifier(n Notifier) RosterOption {
	return func(r *Roster) { r.notifier = n }
}

func WithClock(now func() time.Time) RosterOption {
	return func(r *Roster) { r.now = now }
}

func WithIDGenerator(gen func() string) RosterOption {
	return func(r *Roster) { r.newID = gen }
}

func NewRoster(store DishStore, opts ...RosterOption) *Roster {
	r := &Roster{
		store:    store,
		log:      zap.NewNop(),
		notifier: NotifierFunc(func(string) {}),
		metrics:  NewMetrics(),
		now:      time.Now,
		newID:    utils.NewDishID,
		entries:  []models.Dish{},
		reload:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to table changes and performs the first load. A failed
// first load leaves the roster stale but started.
func (r *Roster) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return ErrDisposed
	}
	if r.started {
		r.mu.Unlock()
		return errors.New("roster already started")
	}
	r.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	sub, err := r.SubscribeToChanges(ctx, func(ev models.ChangeEvent) {
		r.log.Debug("change notification", zap.String("op", string(ev.Op)), zap.String("dish_id", ev.ID))
		r.requestReload()
	})
	if err != nil {
		cancel()
		return err
	}

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		_ = sub.Unsubscribe()
		return ErrDisposed
	}
	r.sub = sub
	r.mu.Unlock()

	r.wg.Add(1)
	go r.reloadLoop(loopCtx)

	_, _ = r.LoadAll(ctx)
	return nil
}

func (r *Roster) reloadLoop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.reload:
			_, _ = r.LoadAll(ctx)
		}
	}
}

// requestReload never blocks; notifications arriving while a reload is
// already queued fold into it.
func (r *Roster) requestReload() {
	select {
	case r.reload <- struct{}{}:
	default:
	}
}

// SubscribeToChanges calls callback for every insert, update or delete on
// the table.
func (r *Roster) SubscribeToChanges(ctx context.Context, callback func(models.ChangeEvent)) (Subscription, error) {
	if r.isDisposed() {
		return nil, ErrDisposed
	}
	sub, err := r.store.Subscribe(ctx, callback)
	if err != nil {
		return nil, &RemoteOperationError{Op: "subscribe", Err: err}
	}
	return sub, nil
}

// LoadAll replaces the local list with the store's rows. On failure the
// previous list is kept.
func (r *Roster) LoadAll(ctx context.Context) ([]models.Dish, error) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil, ErrDisposed
	}
	r.inflight++
	r.mu.Unlock()

	dishes, err := r.store.Select(ctx)

	r.mu.Lock()
	r.inflight--
	if err != nil {
		r.lastErr = err
		r.mu.Unlock()
		r.metrics.RosterReloads.WithLabelValues("error").Inc()
		r.log.Error("load dishes failed", zap.Error(err))
		return nil, &RemoteOperationError{Op: "select", Err: err}
	}
	if dishes == nil {
		dishes = []models.Dish{}
	}
	r.entries = dishes
	r.loaded = true
	r.lastErr = nil
	r.mu.Unlock()

	r.metrics.RosterReloads.WithLabelValues("ok").Inc()
	r.metrics.RosterEntries.Set(float64(len(dishes)))
	r.notifyObservers()
	return cloneDishes(dishes), nil
}

// AddEntry validates, inserts a new dish and reloads.
func (r *Roster) AddEntry(ctx context.Context, participantName, dishName string, category models.Category) error {
	d, err := r.newDish(participantName, dishName, category)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			r.notifier.Notify(verr.Alert())
		}
		return err
	}
	if r.isDisposed() {
		return ErrDisposed
	}

	if err := r.store.Insert(ctx, d); err != nil {
		r.log.Error("add dish failed", zap.String("dish_id", d.ID), zap.Error(err))
		r.notifier.Notify(MsgAddFailed)
		return &RemoteOperationError{Op: "insert", Err: err}
	}
	r.log.Info("dish added",
		zap.String("dish_id", d.ID),
		zap.String("name", d.Name),
		zap.String("dish", d.DishName),
		zap.String("type", string(d.Type)),
	)

	_, _ = r.LoadAll(ctx)
	return nil
}

// Submit adds the form's dish and clears the form on success. A failed
// submit leaves the form as typed so it can be retried.
func (r *Roster) Submit(ctx context.Context, f *DishForm) error {
	if err := r.AddEntry(ctx, f.Name, f.DishName, f.Category); err != nil {
		return err
	}
	f.Reset()
	return nil
}

// DeleteEntry removes the dish and reloads. Unknown ids are not an error.
func (r *Roster) DeleteEntry(ctx context.Context, id string) error {
	if r.isDisposed() {
		return ErrDisposed
	}
	if err := r.store.Delete(ctx, id); err != nil {
		r.log.Error("remove dish failed", zap.String("dish_id", id), zap.Error(err))
		r.notifier.Notify(MsgRemoveFailed)
		return &RemoteOperationError{Op: "delete", Err: err}
	}
	r.log.Info("dish removed", zap.String("dish_id", id))

	_, _ = r.LoadAll(ctx)
	return nil
}

func (r *Roster) newDish(participantName, dishName string, category models.Category) (models.Dish, error) {
	name := strings.TrimSpace(participantName)
	if name == "" {
		return models.Dish{}, &ValidationError{Field: "name"}
	}
	dish := strings.TrimSpace(dishName)
	if dish == "" {
		return models.Dish{}, &ValidationError{Field: "dish_name"}
	}
	if category == "" {
		category = models.DefaultCategory
	}
	if !category.Valid() {
		return models.Dish{}, &ValidationError{Field: "type", Value: string(category)}
	}
	return models.Dish{
		ID:        r.newID(),
		Name:      name,
		DishName:  dish,
		Type:      category,
		CreatedAt: r.now(),
	}, nil
}

// OnChange registers fn to receive a copy of the list after every
// successful load. The returned func removes it.
func (r *Roster) OnChange(fn func([]models.Dish)) (cancel func()) {
	r.mu.Lock()
	id := r.nextObs
	r.nextObs++
	r.observers = append(r.observers, observer{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, o := range r.observers {
			if o.id == id {
				r.observers = append(r.observers[:i], r.observers[i+1:]...)
				return
			}
		}
	}
}

// observers get the list as it is at call time, not the result of the
// load that triggered the call
func (r *Roster) notifyObservers() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.RLock()
	entries := r.entries
	obs := make([]observer, len(r.observers))
	copy(obs, r.observers)
	r.mu.RUnlock()

	for _, o := range obs {
		o.fn(cloneDishes(entries))
	}
}

// Entries is a copy of the current list, oldest first.
func (r *Roster) Entries() []models.Dish {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneDishes(r.entries)
}

func (r *Roster) View() RosterView {
	return BuildView(r.Entries())
}

func (r *Roster) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case r.inflight > 0:
		return StateLoading
	case r.lastErr != nil:
		return StateStale
	case r.loaded:
		return StateReady
	}
	return StateNotLoaded
}

func (r *Roster) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inflight > 0
}

// Dispose cancels the change subscription and waits for the reload loop.
// It is safe to call more than once.
func (r *Roster) Dispose() error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil
	}
	r.disposed = true
	sub, cancel := r.sub, r.cancel
	r.sub = nil
	r.observers = nil
	r.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	return err
}

func (r *Roster) isDisposed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disposed
}

func cloneDishes(in []models.Dish) []models.Dish {
	out := make([]models.Dish, len(in))
	copy(out, in)
	return out
}
