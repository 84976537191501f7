// Package feed streams live oracle prices into the cache so current-price
// reads avoid a gateway round trip. The cache is a fast path only; historical
// reads for resolution never come from here.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/collabkale/kaledao/internal/domain"
	"github.com/collabkale/kaledao/internal/oracle/reflector"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// subscribeCmd asks the gateway to stream ticks for a set of symbols.
type subscribeCmd struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// tick is one streamed price observation. The price is a decimal string in
// the gateway's 14-decimal fixed-point convention.
type tick struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

// ReflectorWSFeed subscribes to the Reflector gateway's price stream and
// writes every tick into the price cache. It reconnects with exponential
// backoff and resubscribes after a drop.
type ReflectorWSFeed struct {
	wsURL  string
	assets []string
	cache  domain.PriceCache
	logger *slog.Logger
}

// NewReflectorWSFeed creates a feed for the given assets. Assets are quoted
// by oracle symbol, so "EUR/USD" subscribes as "EUR".
func NewReflectorWSFeed(wsURL string, assets []string, cache domain.PriceCache, logger *slog.Logger) *ReflectorWSFeed {
	return &ReflectorWSFeed{
		wsURL:  wsURL,
		assets: assets,
		cache:  cache,
		logger: logger.With(slog.String("component", "reflector_ws_feed")),
	}
}

// Run connects and streams until ctx is cancelled. Connection drops are
// retried with exponential backoff; only context cancellation ends the loop.
func (f *ReflectorWSFeed) Run(ctx context.Context) error {
	if len(f.assets) == 0 {
		f.logger.Info("no assets to subscribe, exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("reflector ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *ReflectorWSFeed) runConnection(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	symbols := make([]string, 0, len(f.assets))
	symbolToAsset := make(map[string]string, len(f.assets))
	for _, asset := range f.assets {
		sym := reflector.Symbol(asset)
		symbols = append(symbols, sym)
		symbolToAsset[sym] = asset
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(subscribeCmd{Action: "subscribe", Symbols: symbols}); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("reflector ws subscribed", slog.Int("assets", len(symbols)))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Ping loop keeps the connection alive and notices a dead peer; it also
	// closes the connection on ctx cancellation to unblock ReadMessage.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}

		var t tick
		if err := json.Unmarshal(msg, &t); err != nil {
			f.logger.Warn("unparseable tick", slog.String("error", err.Error()))
			continue
		}
		if t.Symbol == "" || t.Price == "" {
			continue
		}

		price, err := strconv.ParseInt(t.Price, 10, 64)
		if err != nil || price <= 0 {
			f.logger.Warn("invalid tick price",
				slog.String("symbol", t.Symbol),
				slog.String("price", t.Price),
			)
			continue
		}

		asset, ok := symbolToAsset[t.Symbol]
		if !ok {
			continue
		}
		ts := time.Unix(t.Timestamp, 0)
		if t.Timestamp == 0 {
			ts = time.Now().UTC()
		}

		if err := f.cache.SetPrice(ctx, asset, price, ts); err != nil {
			f.logger.Warn("price cache write failed",
				slog.String("asset", asset),
				slog.String("error", err.Error()),
			)
		}
	}
}
