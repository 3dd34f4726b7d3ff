package service

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tick_trader/internal/modules/config"
)

type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// Client — стример сделок с фьючерсного WebSocket. Движку он отдаёт только
// поток models.Tick; реконнекты и возможные дубли на границе реконнекта —
// его забота, дедупликацией занимается воркер символа.
type Client struct {
	cfg *config.Config
	n   ServiceNotifier

	http     *http.Client
	wsDialer *websocket.Dialer
	endpoint string
}

func NewClient(cfg *config.Config, n ServiceNotifier) *Client {
	return &Client{
		cfg:      cfg,
		n:        n,
		http:     &http.Client{Timeout: 10 * time.Second},
		wsDialer: &websocket.Dialer{},
		endpoint: cfg.WSEndpoint,
	}
}
