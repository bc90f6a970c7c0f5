package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"potluck/models"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var errFeedClosed = errors.New("change feed closed")

// NatsFeed shares change events between server instances over one subject.
type NatsFeed struct {
	nc      *nats.Conn
	subject string
	log     *zap.Logger
}

func NewNatsFeed(nc *nats.Conn, subject string, log *zap.Logger) *NatsFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &NatsFeed{nc: nc, subject: subject, log: log}
}

func (f *NatsFeed) Publish(_ context.Context, ev models.ChangeEvent) error {
	if f.nc.IsClosed() {
		return errFeedClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := f.nc.Publish(f.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", f.subject, err)
	}
	return nil
}

func (f *NatsFeed) Subscribe(fn func(models.ChangeEvent)) (Subscription, error) {
	sub, err := f.nc.Subscribe(f.subject, func(msg *nats.Msg) {
		var ev models.ChangeEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			f.log.Warn("dropping malformed change event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", f.subject, err)
	}
	// the subscription must exist on the server before we return
	if err := f.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush: %w", err)
	}
	return subscriptionFunc(func() error {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
			return err
		}
		return nil
	}), nil
}

func (f *NatsFeed) Close() error {
	if err := f.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return err
	}
	return nil
}

// ConnectNATS dials with the same retry policy everywhere.
func ConnectNATS(url string, log *zap.Logger) (*nats.Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("potluck"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(nats.DefaultReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}
