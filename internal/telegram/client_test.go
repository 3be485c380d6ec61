package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Config{BaseURL: server.URL, Token: "123:abc", Backoff: time.Millisecond})
	require.NoError(t, err)
	return client
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{Token: "  "})
	assert.Error(t, err)
}

func TestGetMe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/getMe", r.URL.Path)
		w.Write([]byte(`{"ok":true,"result":{"id":7,"is_bot":true,"first_name":"Teams","username":"teams_bot"}}`))
	})

	me, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, User{ID: 7, IsBot: true, FirstName: "Teams", Username: "teams_bot"}, me)
}

func TestGetUpdatesSendsOffsetAndTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(11), body["offset"])
		assert.Equal(t, float64(25), body["timeout"])
		w.Write([]byte(`{"ok":true,"result":[{"update_id":11,"message":{"message_id":1,"from":{"id":42,"first_name":"Alice"},"chat":{"id":42,"type":"private"},"text":"hi"}}]}`))
	})

	updates, err := client.GetUpdates(context.Background(), 11, 25*time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "hi", updates[0].Message.Text)
	assert.Equal(t, int64(42), updates[0].Message.From.ID)
}

func TestSendMessageReplyParameters(t *testing.T) {
	var bodies []map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		w.Write([]byte(`{"ok":true,"result":{"message_id":5,"chat":{"id":-100,"type":"supergroup"}}}`))
	})
	ctx := context.Background()

	_, err := client.SendMessage(ctx, -100, "Welcome, alice!", 99)
	require.NoError(t, err)
	_, err = client.SendMessage(ctx, 42, "Thanks! Now your email:", 0)
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, map[string]any{"message_id": float64(99), "allow_sending_without_reply": true}, bodies[0]["reply_parameters"])
	_, hasReply := bodies[1]["reply_parameters"]
	assert.False(t, hasReply)
}

func TestAPIErrorOnNotOK(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	})

	_, err := client.SendMessage(context.Background(), 42, "hi", 0)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "sendMessage", apiErr.Method)
	assert.Equal(t, 403, apiErr.ErrorCode)
	assert.Contains(t, err.Error(), "blocked by the user")
}

func TestRetriesTooManyRequests(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 0","parameters":{"retry_after":0}}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer server.Close()
	client, err := New(Config{BaseURL: server.URL, Token: "t", MaxRetries: 2, Backoff: time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, client.DeleteWebhook(context.Background(), false))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSetWebhookSendsSecret(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/setWebhook", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://bot.example.com/telegram/webhook", body["url"])
		assert.Equal(t, "s3cret", body["secret_token"])
		w.Write([]byte(`{"ok":true,"result":true,"description":"Webhook was set"}`))
	})

	assert.NoError(t, client.SetWebhook(context.Background(), "https://bot.example.com/telegram/webhook", "s3cret"))
}

func TestGetWebhookInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/getWebhookInfo", r.URL.Path)
		w.Write([]byte(`{"ok":true,"result":{"url":"https://bot.example.com/telegram/webhook","pending_update_count":2,"last_error_message":"Wrong response"}}`))
	})

	info, err := client.GetWebhookInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/telegram/webhook", info.URL)
	assert.Equal(t, 2, info.PendingUpdateCount)
	assert.Equal(t, "Wrong response", info.LastErrorMessage)
}

func TestTransportErrorRedactsToken(t *testing.T) {
	client, err := New(Config{BaseURL: "http://127.0.0.1:1", Token: "secret-token"})
	require.NoError(t, err)

	_, err = client.GetMe(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}
