package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/mocks"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/scheduler"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func TestReminderStartRegistersJobsOnce(t *testing.T) {
	recurring := scheduler.NewRecurring(nil)
	w := NewReminderWorker(recurring, mocks.NewMockPlatformClient(), nil, []config.Reminder{
		{ChannelID: "N", Schedule: "@every 1h", Message: "Reminder: Please review your tickets!"},
		{ChannelID: "M", Schedule: "0 9 * * MON", Message: "weekly"},
	}, nil, nil)

	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	defer w.Stop(context.Background())

	assert.Equal(t, 2, recurring.Len())
}

func TestReminderInvalidSchedule(t *testing.T) {
	w := NewReminderWorker(scheduler.NewRecurring(nil), mocks.NewMockPlatformClient(), nil, []config.Reminder{
		{ChannelID: "N", Schedule: "sometimes", Message: "x"},
	}, nil, nil)

	err := w.Start()
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestReminderPost(t *testing.T) {
	client := mocks.NewMockPlatformClient()
	client.On("Send", mock.Anything, "N", &discordgo.MessageSend{Content: "ping"}).Return(&discordgo.Message{}, nil).Once()
	client.On("Send", mock.Anything, "gone", mock.Anything).Return(nil, apperrors.NewPlatformError("send message", errors.New("missing access"))).Once()
	client.On("Send", mock.Anything, "OPS", mock.Anything).Return(&discordgo.Message{}, nil).Once()
	metrics := observability.NewMetrics()
	w := NewReminderWorker(scheduler.NewRecurring(nil), client, NewAlerter(client, "OPS", nil), nil, nil, metrics)

	w.Post(config.Reminder{ChannelID: "N", Message: "ping"})
	w.Post(config.Reminder{ChannelID: "gone", Message: "ping"})

	client.AssertExpectations(t)
	require.Len(t, client.Sent("OPS"), 1)
	assert.Contains(t, client.Sent("OPS")[0].Text(), "`reminder` failed")
	assert.Contains(t, client.Sent("OPS")[0].Text(), "Channel: <#gone>")
	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Actions["reminder|ok"])
	assert.Equal(t, int64(1), snap.Actions["reminder|failed"])
	assert.Equal(t, int64(1), snap.Errors["reminder|"+apperrors.CodePlatformFailure])
}
