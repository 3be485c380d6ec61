package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
	"github.com/sudn2014/telegram-bot-teams/internal/queue"
	"github.com/sudn2014/telegram-bot-teams/internal/telegram"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

func TestSeedQueueWritesTestUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending_teams.csv")
	log := queue.NewSyncedLog(queue.NewLocalFile(path), nil, logging.New("error"))

	require.NoError(t, seedQueue(context.Background(), log, logging.New("error")))

	data, err := queue.NewLocalFile(path).ReadAll()
	require.NoError(t, err)
	result, err := contacts.ParseCSV(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Test User", result.Records[0].Name)
	assert.Equal(t, "test@example.com", result.Records[0].Email)
}

type fakeRegistrar struct {
	setURL    string
	setSecret string
	setErr    error
	info      telegram.WebhookInfo
	infoErr   error
}

func (f *fakeRegistrar) SetWebhook(_ context.Context, url, secret string) error {
	f.setURL, f.setSecret = url, secret
	return f.setErr
}

func (f *fakeRegistrar) GetWebhookInfo(context.Context) (telegram.WebhookInfo, error) {
	return f.info, f.infoErr
}

func TestRegisterWebhook(t *testing.T) {
	const hook = "https://bot.example.com/telegram/webhook"
	tests := []struct {
		name    string
		reg     *fakeRegistrar
		wantErr string
	}{
		{"registered", &fakeRegistrar{info: telegram.WebhookInfo{URL: hook, PendingUpdateCount: 3}}, ""},
		{"earlier delivery errors only warn", &fakeRegistrar{info: telegram.WebhookInfo{URL: hook, LastErrorMessage: "Connection refused"}}, ""},
		{"set fails", &fakeRegistrar{setErr: errors.New("bad url")}, "setWebhook"},
		{"info fails", &fakeRegistrar{infoErr: errors.New("timeout")}, "getWebhookInfo"},
		{"url mismatch", &fakeRegistrar{info: telegram.WebhookInfo{URL: "https://other.example.com"}}, "expected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registerWebhook(context.Background(), tt.reg, hook, "s3cret", logging.New("error"))
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, hook, tt.reg.setURL)
				assert.Equal(t, "s3cret", tt.reg.setSecret)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
