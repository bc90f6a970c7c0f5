package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"potluck/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HTTPDishStore talks to a potluck server: REST for rows, a websocket for
// change notifications.
type HTTPDishStore struct {
	baseURL string
	client  *http.Client
	dialer  *websocket.Dialer
	log     *zap.Logger
}

func NewHTTPDishStore(baseURL string, log *zap.Logger) (*HTTPDishStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPDishStore{
		baseURL: strings.TrimRight(u.String(), "/"),
		client:  &http.Client{},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log,
	}, nil
}

func (s *HTTPDishStore) Select(ctx context.Context) ([]models.Dish, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/dishes", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get dishes: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var dishes []models.Dish
	if err := json.NewDecoder(resp.Body).Decode(&dishes); err != nil {
		return nil, fmt.Errorf("decode dishes: %w", err)
	}
	return dishes, nil
}

func (s *HTTPDishStore) Insert(ctx context.Context, d models.Dish) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/dishes", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post dish: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return apiError(resp)
	}
	return nil
}

func (s *HTTPDishStore) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/dishes/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete dish: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// Subscribe opens the websocket feed. ctx bounds the handshake only. If the
// connection drops later, live updates stop; this is logged and not
// reported to fn.
func (s *HTTPDishStore) Subscribe(ctx context.Context, fn func(models.ChangeEvent)) (Subscription, error) {
	wsURL := "ws" + strings.TrimPrefix(s.baseURL, "http") + "/dishes/ws"
	conn, resp, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", wsURL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	var closing atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !closing.Load() {
					s.log.Warn("change feed lost, live updates stopped", zap.String("url", wsURL), zap.Error(err))
				}
				return
			}
			var msg ChangeMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.log.Warn("dropping malformed change message", zap.Error(err))
				continue
			}
			if msg.Kind == KindDishChanged {
				fn(msg.Event)
			}
		}
	}()

	var once sync.Once
	return subscriptionFunc(func() error {
		var err error
		once.Do(func() {
			closing.Store(true)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			err = conn.Close()
			<-done
			if errors.Is(err, net.ErrClosed) {
				err = nil
			}
		})
		return err
	}), nil
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Errorf("%s %s: %s: %s", resp.Request.Method, resp.Request.URL.Path, resp.Status, body.Error)
	}
	return fmt.Errorf("%s %s: %s", resp.Request.Method, resp.Request.URL.Path, resp.Status)
}
