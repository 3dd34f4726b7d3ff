package service

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"tick_trader/internal/models"
)

// StreamTradesBatch — один WebSocket на пачку символов через комбинированный
// стрим aggTrade. Возвращает поток тиков; соединение переустанавливается
// само до отмены контекста.
func (c *Client) StreamTradesBatch(ctx context.Context, symbols []string) <-chan models.Tick {
	ch := make(chan models.Tick)

	go func() {
		defer close(ch)

		if len(symbols) == 0 {
			return
		}

		// "ETHUSDT" -> "ethusdt@aggTrade"
		streams := make([]string, 0, len(symbols))
		for _, s := range symbols {
			streams = append(streams, strings.ToLower(s)+"@aggTrade")
		}
		url := c.endpoint + "?streams=" + strings.Join(streams, "/")

		for {
			log.Printf("[WS] batch connect aggTrade %d symbols", len(symbols))
			conn, _, err := c.wsDialer.Dial(url, nil)
			if err != nil {
				log.Printf("[WS] batch dial error: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			// keepalive ping — иначе сервер рвёт соединение по тишине
			stopPing := make(chan struct{})
			go func() {
				defer close(stopPing)
				t := time.NewTicker(20 * time.Second)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-stopPing:
						return
					case <-t.C:
						_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
					}
				}
			}()

			// основной read-loop
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					log.Printf("[WS] batch read error: %v", err)
					_ = conn.Close()
					break
				}

				var frame struct {
					Stream string `json:"stream"`
					Data   struct {
						Event        string `json:"e"`
						Symbol       string `json:"s"`
						Price        string `json:"p"`
						Quantity     string `json:"q"`
						TradeTime    int64  `json:"T"`
						IsBuyerMaker bool   `json:"m"`
					} `json:"data"`
				}
				if err := sonic.Unmarshal(msg, &frame); err != nil {
					continue
				}
				if frame.Data.Event != "aggTrade" || frame.Data.Symbol == "" {
					continue
				}

				price, err1 := strconv.ParseFloat(frame.Data.Price, 64)
				qty, err2 := strconv.ParseFloat(frame.Data.Quantity, 64)
				if err1 != nil || err2 != nil || price <= 0 {
					continue
				}

				tick := models.Tick{
					Symbol:       frame.Data.Symbol,
					Timestamp:    frame.Data.TradeTime,
					Price:        price,
					Volume:       qty,
					IsBuyerMaker: frame.Data.IsBuyerMaker,
				}

				select {
				case ch <- tick:
				case <-ctx.Done():
					_ = conn.Close()
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			default:
				time.Sleep(time.Second)
			}
		}
	}()

	return ch
}
