package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// HTTPPublisher publishes by calling a coordinator's POST /broadcast.
type HTTPPublisher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPublisher(baseURL string, client *http.Client) *HTTPPublisher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPPublisher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *HTTPPublisher) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/broadcast", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting broadcast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		return fmt.Errorf("broadcast rejected: %d %s", resp.StatusCode, e.Error)
	}
	return nil
}

// WSSubscriber subscribes through a coordinator's GET /ws?channel= stream.
type WSSubscriber struct {
	baseURL string
}

// NewWSSubscriber accepts an http(s) or ws(s) base URL.
func NewWSSubscriber(baseURL string) *WSSubscriber {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &WSSubscriber{baseURL: u}
}

func (s *WSSubscriber) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	target := s.baseURL + "/ws?channel=" + url.QueryEscape(channel)

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target, err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(func() {
		cancel()
		conn.Close(websocket.StatusNormalClosure, "unsubscribe")
	})

	go func() {
		for {
			var msg Message
			if err := wsjson.Read(readCtx, conn, &msg); err != nil {
				sub.finish(fmt.Errorf("reading %s: %w", channel, err))
				return
			}
			if msg.Channel != channel {
				continue
			}
			sub.deliver(msg)
		}
	}()
	return sub, nil
}
