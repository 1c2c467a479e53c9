package controller

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shapeshift/notification-server/pkg/fanout"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// wsSession adapts one websocket connection to the fanout session
// contract. Deliver never blocks: a full send buffer drops the event for
// this session only.
type wsSession struct {
	id   string
	send chan fanout.Envelope
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) Deliver(env fanout.Envelope) bool {
	select {
	case s.send <- env:
		return true
	default:
		return false
	}
}

// HandleWebSocket upgrades the connection and binds it to a user, who then
// receives swapUpdate and notification events for the lifetime of the
// socket. The user is identified by the X-User-ID header (or userId query
// parameter); events reach the session both directly from this process and
// through the user's Redis broadcast channel when Redis is enabled.
//
// IMPORTANT: All goroutines have panic recovery to prevent crashes.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Error("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected",
		zap.String("userId", userID),
		zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := &wsSession{
		id:   uuid.NewString(),
		send: make(chan fanout.Envelope, 256),
	}

	c.App.Fanout.Register(userID, session)
	defer c.App.Fanout.Unregister(userID, session.id)

	var wg sync.WaitGroup

	// Forward the user's Redis broadcast channel into the session so events
	// published by other processes reach this socket too.
	if c.App.RedisClient != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					c.App.Logger.Error("Panic in Redis subscriber goroutine",
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("userId", userID))
					cancel()
				}
			}()
			c.subscribeToRedis(ctx, userID, session)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in ping ticker goroutine",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("userId", userID))
				cancel()
			}
		}()
		c.sendPings(ctx, conn)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in message writer goroutine",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("userId", userID))
				cancel()
			}
		}()
		c.writeMessages(ctx, conn, session.send)
	}()

	// Read until the connection closes; clients send nothing meaningful.
	c.readUntilClosed(ctx, conn, cancel)

	cancel()
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected",
		zap.String("userId", userID),
		zap.String("remote_addr", r.RemoteAddr))
}

// subscribeToRedis subscribes to the user's broadcast channel and forwards
// events to the session.
//
// This function implements automatic reconnection with exponential backoff:
// if the Redis connection is lost it retries with increasing delays and
// restores the subscription when Redis recovers.
func (c *Controller) subscribeToRedis(ctx context.Context, userID string, session *wsSession) {
	channel := fanout.UserChannel(userID)

	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
		backoffFactor  = 2.0
		jitterFactor   = 0.1
	)

	backoff := initialBackoff
	attemptNum := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		attemptNum++

		subscriptionErr := c.attemptRedisSubscription(ctx, channel, session, attemptNum)
		if ctx.Err() != nil {
			return
		}

		if subscriptionErr != nil {
			c.App.Logger.Warn("Redis subscription failed, will retry",
				zap.Error(subscriptionErr),
				zap.Int("attempt", attemptNum),
				zap.Duration("backoff", backoff))
		} else {
			c.App.Logger.Warn("Redis subscription channel closed, will retry",
				zap.Int("attempt", attemptNum),
				zap.Duration("backoff", backoff))
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		backoff = calculateNextBackoff(backoff, maxBackoff, backoffFactor, jitterFactor)
	}
}

// attemptRedisSubscription attempts a single subscription and forwards
// messages until it fails or the context is cancelled. Returns an error if
// subscription setup fails, or nil if the channel closed after it was
// established.
func (c *Controller) attemptRedisSubscription(ctx context.Context, channel string, session *wsSession, attemptNum int) error {
	pubsub := c.App.RedisClient.Subscribe(ctx, channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			c.App.Logger.Error("Error closing Redis subscription", zap.Error(err))
		}
	}()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()

	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return err
	}

	c.App.Logger.Debug("Subscribed to user broadcast channel",
		zap.String("channel", channel),
		zap.Int("attempt", attemptNum))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				// Channel closed - the normal Redis disconnection case.
				return nil
			}

			var env fanout.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				c.App.Logger.Error("Failed to parse broadcast event",
					zap.Error(err),
					zap.String("channel", msg.Channel))
				continue
			}

			session.Deliver(env)
		}
	}
}

// calculateNextBackoff calculates the next backoff duration with
// exponential growth and jitter.
func calculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		next = max
	}

	// Jitter prevents all clients from retrying at exactly the same time.
	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	nextWithJitter := time.Duration(float64(next) + jitter)

	if nextWithJitter < current {
		nextWithJitter = current
	}
	if nextWithJitter > max {
		nextWithJitter = max
	}

	return nextWithJitter
}

// sendPings sends periodic WebSocket ping frames to keep the connection
// alive. The client responds with pong frames, which resets the read
// deadline.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Error("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages writes events from the session's send channel to the
// WebSocket connection.
func (c *Controller) writeMessages(ctx context.Context, conn *websocket.Conn, send <-chan fanout.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-send:
			if err := conn.WriteJSON(env); err != nil {
				c.App.Logger.Error("Failed to write WebSocket message", zap.Error(err))
				return
			}
		}
	}
}

// readUntilClosed reads from the connection to detect closure. Incoming
// frames are discarded.
func (c *Controller) readUntilClosed(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.App.Logger.Error("WebSocket read error", zap.Error(err))
				}
				cancel()
				return
			}
			if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
				c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
				return
			}
		}
	}
}
