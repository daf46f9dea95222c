package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Amund211/gamegate/internal/logging"
	"github.com/gorilla/websocket"
)

const (
	websocketHandshakeTimeout = 10 * time.Second
	websocketMinBackoff       = 500 * time.Millisecond
	websocketMaxBackoff       = 30 * time.Second
)

// WebsocketSource reads events from a websocket push channel.
// Events sent while the connection is down are lost, so every reconnect is
// followed by a synthetic progress-reload event.
type WebsocketSource struct {
	dialer   *websocket.Dialer
	endpoint string
	header   http.Header

	afterFunc func(time.Duration) <-chan time.Time
}

func NewWebsocketSource(endpoint string, token string) *WebsocketSource {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &WebsocketSource{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: websocketHandshakeTimeout,
		},
		endpoint:  endpoint,
		header:    header,
		afterFunc: time.After,
	}
}

func (s *WebsocketSource) userURL(userID string) (string, error) {
	parsed, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse socket url: %w", err)
	}
	query := parsed.Query()
	query.Set("userId", userID)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (s *WebsocketSource) dial(ctx context.Context, userID string) (*websocket.Conn, error) {
	target, err := s.userURL(userID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := s.dialer.DialContext(ctx, target, s.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	return conn, nil
}

func (s *WebsocketSource) Subscribe(ctx context.Context, userID string, handle Handler) error {
	if handle == nil {
		return fmt.Errorf("handler required")
	}

	conn, err := s.dial(ctx, userID)
	if err != nil {
		return err
	}

	go s.run(ctx, userID, conn, handle)

	return nil
}

func (s *WebsocketSource) run(ctx context.Context, userID string, conn *websocket.Conn, handle Handler) {
	logger := logging.FromContext(ctx).With(slog.String("source", "websocket"))

	backoff := websocketMinBackoff
	for {
		s.readUntilClosed(ctx, conn, handle)
		if ctx.Err() != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.afterFunc(backoff):
			}

			var err error
			conn, err = s.dial(ctx, userID)
			if err == nil {
				break
			}
			logger.WarnContext(ctx, "Failed to reconnect to socket", "error", err.Error(), "backoff", backoff)
			backoff = min(backoff*2, websocketMaxBackoff)
		}

		logger.InfoContext(ctx, "Reconnected to socket")
		backoff = websocketMinBackoff
		handle(ctx, Event{Type: EventProgressReload, ProgressReload: &ProgressReload{}})
	}
}

func (s *WebsocketSource) readUntilClosed(ctx context.Context, conn *websocket.Conn, handle Handler) {
	logger := logging.FromContext(ctx).With(slog.String("source", "websocket"))

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.WarnContext(ctx, "Socket read failed", "error", err.Error())
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		event, err := Decode(payload)
		if err != nil {
			logger.WarnContext(ctx, "Ignoring malformed event", "error", err.Error())
			continue
		}
		handle(ctx, event)
	}
}
