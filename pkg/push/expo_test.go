package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExpoGateway_IsValidToken(t *testing.T) {
	g := NewExpoGateway(zap.NewNop())

	assert.True(t, g.IsValidToken("ExponentPushToken[abc123]"))
	assert.True(t, g.IsValidToken("ExpoPushToken[abc123]"))

	assert.False(t, g.IsValidToken(""))
	assert.False(t, g.IsValidToken("abc123"))
	assert.False(t, g.IsValidToken("ExponentPushToken[abc123"))
	assert.False(t, g.IsValidToken("fcm:some-android-token"))
}

func TestExpoGateway_Chunk(t *testing.T) {
	g := NewExpoGateway(zap.NewNop())

	messages := make([]Message, 250)
	for i := range messages {
		messages[i] = Message{To: fmt.Sprintf("ExponentPushToken[%d]", i)}
	}

	chunks := g.Chunk(messages)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 50)

	assert.Empty(t, g.Chunk(nil))
}

func TestExpoGateway_Send(t *testing.T) {
	var gotMessages []Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMessages))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []Ticket{{ID: "t-1", Status: TicketStatusOK}},
		})
	}))
	defer srv.Close()

	t.Setenv("EXPO_PUSH_URL", srv.URL)
	g := NewExpoGateway(zap.NewNop())

	tickets, err := g.Send(context.Background(), []Message{{To: "ExponentPushToken[a]", Title: "Swap Completed!"}})
	require.NoError(t, err)

	require.Len(t, tickets, 1)
	assert.Equal(t, TicketStatusOK, tickets[0].Status)
	require.Len(t, gotMessages, 1)
	assert.Equal(t, "ExponentPushToken[a]", gotMessages[0].To)
}

func TestExpoGateway_SendRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []Ticket{{Status: TicketStatusOK}},
		})
	}))
	defer srv.Close()

	t.Setenv("EXPO_PUSH_URL", srv.URL)
	g := NewExpoGateway(zap.NewNop())

	tickets, err := g.Send(context.Background(), []Message{{To: "ExponentPushToken[a]"}})
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
	assert.Equal(t, 2, attempts)
}
