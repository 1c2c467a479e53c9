package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shapeshift/notification-server/pkg/retry"
	"github.com/shapeshift/notification-server/pkg/utils"
	"go.uber.org/zap"
)

const (
	// DefaultExpoURL is Expo's push send endpoint.
	DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

	// expoMaxChunkSize is Expo's documented per-request message limit.
	expoMaxChunkSize = 100
)

// ExpoGateway sends push messages through Expo's push service.
type ExpoGateway struct {
	url         string
	accessToken string
	client      *http.Client
	logger      *zap.Logger
	retryCfg    retry.Config
}

var _ Gateway = (*ExpoGateway)(nil)

// NewExpoGateway creates an ExpoGateway configured from the environment:
//   - EXPO_PUSH_URL: override the send endpoint (default exp.host)
//   - EXPO_ACCESS_TOKEN: optional bearer token
func NewExpoGateway(logger *zap.Logger) *ExpoGateway {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = 3
	cfg.InitialDelay = 500 * time.Millisecond

	return &ExpoGateway{
		url:         utils.Env("EXPO_PUSH_URL", DefaultExpoURL),
		accessToken: utils.Env("EXPO_ACCESS_TOKEN", ""),
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
		retryCfg:    cfg,
	}
}

// IsValidToken reports whether token looks like an Expo push token.
func (g *ExpoGateway) IsValidToken(token string) bool {
	if !strings.HasSuffix(token, "]") {
		return false
	}
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

// Chunk splits messages into Expo-sized batches.
func (g *ExpoGateway) Chunk(messages []Message) [][]Message {
	var chunks [][]Message
	for len(messages) > 0 {
		n := expoMaxChunkSize
		if len(messages) < n {
			n = len(messages)
		}
		chunks = append(chunks, messages[:n])
		messages = messages[n:]
	}
	return chunks
}

type expoSendResponse struct {
	Data   []Ticket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Send submits one chunk to Expo. Transport-level failures are retried with
// backoff; a request-level error from Expo is returned as-is.
func (g *ExpoGateway) Send(ctx context.Context, chunk []Message) ([]Ticket, error) {
	body, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("marshal push chunk: %w", err)
	}

	var tickets []Ticket
	err = retry.WithBackoff(ctx, g.retryCfg, g.logger, "expo push send", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build push request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if g.accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+g.accessToken)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return fmt.Errorf("send push chunk: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read push response: %w", err)
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("expo responded %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("expo rejected chunk: %d %s", resp.StatusCode, raw)
		}

		var parsed expoSendResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("decode push response: %w", err)
		}
		if len(parsed.Errors) > 0 {
			return fmt.Errorf("expo request error: %s: %s", parsed.Errors[0].Code, parsed.Errors[0].Message)
		}

		tickets = parsed.Data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tickets, nil
}
