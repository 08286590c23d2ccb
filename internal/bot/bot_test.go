package bot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/mocks"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/scheduler"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/worker"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	guildID    = "G"
	categoryID = "CAT"
	roleID     = "ROLE"
	opsChannel = "OPS"
	faqChannel = "FAQ"
	ownerID    = "U"
	staffID    = "S"
)

type harness struct {
	bot      *Bot
	client   *mocks.MockPlatformClient
	store    repository.TicketStore
	tickets  *service.TicketService
	feedback *worker.FeedbackCollector
	teardown *worker.Teardown
	metrics  *observability.Metrics
}

type harnessOption func(*Dependencies)

func withStore(store repository.TicketStore) harnessOption {
	return func(d *Dependencies) {
		d.Service = service.NewTicketService(service.TicketDependencies{Store: store})
	}
}

func withTeardownDelay(d time.Duration) harnessOption {
	return func(deps *Dependencies) {
		deps.Tickets.TeardownDelay = d
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	store, err := repository.NewFileTicketStore(filepath.Join(t.TempDir(), "tickets.json"))
	require.NoError(t, err)

	client := mocks.NewMockPlatformClient()
	tasks := scheduler.NewTasks(nil)
	t.Cleanup(tasks.Stop)
	metrics := observability.NewMetrics()
	tickets := service.NewTicketService(service.TicketDependencies{Store: store})
	settings := config.TicketConfig{
		FeedbackTimeout:   40 * time.Millisecond,
		TeardownDelay:     10 * time.Millisecond,
		AutoReplyInterval: time.Hour,
	}

	deps := Dependencies{
		Discord: config.DiscordConfig{
			GuildID:           guildID,
			TicketCategoryID:  categoryID,
			SupportRoleID:     roleID,
			SupportChannelID:  "PANEL",
			OperatorChannelID: opsChannel,
			FAQChannelID:      faqChannel,
		},
		Tickets: settings,
		Responses: config.Responses{
			AutoReply: config.AutoReply{Triggers: []string{"help", "issue"}, Reply: "It looks like you need help! Please create a ticket using the button below."},
			FAQ:       []config.FAQEntry{{Keywords: []string{"refund"}, Answer: "Refunds take 5 days."}},
		},
		Client:   client,
		Service:  tickets,
		Feedback: worker.NewFeedbackCollector(tasks),
		Alerts:   worker.NewAlerter(client, opsChannel, nil),
		Metrics:  metrics,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	deps.Teardown = worker.NewTeardown(tasks, deps.Service, client, deps.Alerts, deps.Tickets.TeardownDelay, nil, metrics)

	return &harness{
		bot:      New(deps),
		client:   client,
		store:    store,
		tickets:  deps.Service,
		feedback: deps.Feedback,
		teardown: deps.Teardown,
		metrics:  metrics,
	}
}

func press(customID, channelID, userID string, values ...string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "i-" + customID,
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   guildID,
		ChannelID: channelID,
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID, Username: "Alice Smith"}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID, Values: values},
	}
}

func chat(channelID, authorID, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m-" + content,
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID},
	}
}

func (h *harness) seedOpen(t *testing.T, id string) {
	t.Helper()
	_, err := h.tickets.Create(context.Background(), ownerID, id, "ticket-u")
	require.NoError(t, err)
}

func (h *harness) stored(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return ticket
}

func responseText(resp *discordgo.InteractionResponse) string {
	if resp == nil || resp.Data == nil {
		return ""
	}
	return resp.Data.Content
}

func isEphemeral(resp *discordgo.InteractionResponse) bool {
	return resp != nil && resp.Data != nil && resp.Data.Flags&discordgo.MessageFlagsEphemeral != 0
}

func TestCreateTicketProvisionsChannelAndRecord(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.client.On("CreateChannel", mock.Anything, guildID, mock.MatchedBy(func(data discordgo.GuildChannelCreateData) bool {
		return data.Name == "ticket-alice-smith" &&
			data.Type == discordgo.ChannelTypeGuildText &&
			data.ParentID == categoryID &&
			len(data.PermissionOverwrites) == 3 &&
			data.PermissionOverwrites[0].ID == guildID &&
			data.PermissionOverwrites[0].Deny == discordgo.PermissionViewChannel &&
			data.PermissionOverwrites[1].ID == ownerID &&
			data.PermissionOverwrites[2].ID == roleID
	})).Return(&discordgo.Channel{ID: "C1", Name: "ticket-alice-smith"}, nil).Once()

	h.bot.HandleInteraction(context.Background(), press(ButtonCreateTicket, "PANEL", ownerID))

	h.client.AssertExpectations(t)
	ticket := h.stored(t, "C1")
	assert.Equal(t, ownerID, ticket.OwnerID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Nil(t, ticket.AssignedTo)
	assert.Empty(t, ticket.Steps)

	sent := h.client.Sent("C1")
	require.Len(t, sent, 1)
	assert.Equal(t, "<@&"+roleID+">", sent[0].Message.Content)
	assert.Contains(t, sent[0].Text(), "Your ticket has been created!")
	assert.Contains(t, sent[0].Text(), "Ticket ID: C1")

	resp := h.client.LastResponse()
	assert.True(t, isEphemeral(resp))
	assert.Equal(t, "Your ticket channel has been created: <#C1>", responseText(resp))
	assert.Equal(t, int64(1), h.metrics.Snapshot().Actions["create_ticket|ok"])
}

type failingCreateStore struct {
	repository.TicketStore
}

func (failingCreateStore) Create(context.Context, string, *domain.Ticket) error {
	return apperrors.NewStorageError("write", errors.New("disk full"))
}

func TestCreateTicketStorageFailureRemovesChannelAndAlerts(t *testing.T) {
	store, err := repository.NewFileTicketStore(filepath.Join(t.TempDir(), "tickets.json"))
	require.NoError(t, err)
	h := newHarness(t, withStore(failingCreateStore{store}))
	h.client.Permissive()
	h.client.On("CreateChannel", mock.Anything, guildID, mock.Anything).
		Return(&discordgo.Channel{ID: "C1", Name: "ticket-alice-smith"}, nil)

	h.bot.HandleInteraction(context.Background(), press(ButtonCreateTicket, "PANEL", ownerID))

	h.client.AssertCalled(t, "DeleteChannel", mock.Anything, "C1")
	assert.Equal(t, 1, h.client.CountContaining(opsChannel, "Operator Alert"))
	resp := h.client.LastResponse()
	assert.True(t, isEphemeral(resp))
	assert.Equal(t, msgSomethingFailed, responseText(resp))
	assert.Equal(t, int64(1), h.metrics.Snapshot().Errors["create_ticket|"+apperrors.CodeStorageFailure])
}

func TestCreateTicketPlatformFailure(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.client.On("CreateChannel", mock.Anything, guildID, mock.Anything).
		Return(nil, apperrors.NewPlatformError("create channel", errors.New("missing permissions")))

	h.bot.HandleInteraction(context.Background(), press(ButtonCreateTicket, "PANEL", ownerID))

	all, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 1, h.client.CountContaining(opsChannel, "create_ticket"))
	assert.Equal(t, msgSomethingFailed, responseText(h.client.LastResponse()))
}

func TestCreateTicketPanelFailureStillLinksChannel(t *testing.T) {
	h := newHarness(t)
	h.client.On("CreateChannel", mock.Anything, guildID, mock.Anything).
		Return(&discordgo.Channel{ID: "C1", Name: "ticket-alice-smith"}, nil)
	h.client.On("Send", mock.Anything, "C1", mock.Anything).
		Return(nil, apperrors.NewPlatformError("send message", errors.New("missing access"))).Once()
	h.client.Permissive()

	h.bot.HandleInteraction(context.Background(), press(ButtonCreateTicket, "PANEL", ownerID))

	responses := h.client.Responses()
	require.Len(t, responses, 1)
	assert.True(t, isEphemeral(responses[0]))
	assert.Equal(t, "Your ticket channel has been created: <#C1>", responseText(responses[0]))
	assert.Equal(t, 1, h.client.CountContaining(opsChannel, "`create_ticket` failed"))
	assert.Equal(t, domain.TicketStatusOpen, h.stored(t, "C1").Status)
	assert.Zero(t, h.client.CallCount("DeleteChannel"))
}

func TestPrioritySelectionFlow(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.seedOpen(t, "C1")

	h.bot.HandleInteraction(context.Background(), press(ButtonSetPriority, "C1", staffID))
	picker := h.client.LastResponse()
	require.True(t, isEphemeral(picker))
	require.Len(t, picker.Data.Components, 1)
	row := picker.Data.Components[0].(discordgo.ActionsRow)
	menu := row.Components[0].(discordgo.SelectMenu)
	assert.Equal(t, SelectPriority, menu.CustomID)
	require.Len(t, menu.Options, 3)
	assert.True(t, menu.Options[1].Default)

	h.bot.HandleInteraction(context.Background(), press(SelectPriority, "C1", staffID, "High"))
	resp := h.client.LastResponse()
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Equal(t, "Priority has been set to High.", responseText(resp))
	assert.Equal(t, domain.TicketPriorityHigh, h.stored(t, "C1").Priority)
}

func TestAssignSelectionFlow(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.seedOpen(t, "C1")

	h.bot.HandleInteraction(context.Background(), press(ButtonAssignTicket, "C1", staffID))
	row := h.client.LastResponse().Data.Components[0].(discordgo.ActionsRow)
	assert.Equal(t, discordgo.UserSelectMenu, row.Components[0].(discordgo.SelectMenu).MenuType)

	h.bot.HandleInteraction(context.Background(), press(SelectAssignee, "C1", staffID, "AGENT"))
	assert.Equal(t, "Your ticket has been assigned to <@AGENT>.", responseText(h.client.LastResponse()))
	ticket := h.stored(t, "C1")
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, "AGENT", *ticket.AssignedTo)
}

func TestInvalidPrioritySelectionRejected(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.seedOpen(t, "C1")

	h.bot.HandleInteraction(context.Background(), press(SelectPriority, "C1", staffID, "Urgent"))

	assert.Equal(t, msgInvalidSelection, responseText(h.client.LastResponse()))
	assert.Equal(t, domain.TicketPriorityMedium, h.stored(t, "C1").Priority)
}

func TestNextStepAppendsStep(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.seedOpen(t, "C1")

	h.bot.HandleInteraction(context.Background(), press(ButtonNextStep, "C1", staffID))
	h.bot.HandleInteraction(context.Background(), press(ButtonNextStep, "C1", staffID))

	assert.Equal(t, msgMultiStep, responseText(h.client.LastResponse()))
	steps := h.stored(t, "C1").Steps
	require.Len(t, steps, 2)
	assert.False(t, steps[1].Before(steps[0]))
}

func TestActionsOnUnknownChannelAreRejected(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()

	for _, id := range []string{ButtonCloseTicket, ButtonSetPriority, ButtonAssignTicket, ButtonReopenTicket, ButtonNextStep} {
		h.bot.HandleInteraction(context.Background(), press(id, "general", staffID))
		resp := h.client.LastResponse()
		assert.True(t, isEphemeral(resp), id)
		assert.Equal(t, msgNotATicket, responseText(resp), id)
	}
	assert.Empty(t, h.client.Sent(opsChannel))
}

func TestClosedTicketRejectsStaffActions(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.seedOpen(t, "C1")
	_, err := h.tickets.Close(context.Background(), staffID, "C1")
	require.NoError(t, err)

	for _, id := range []string{ButtonSetPriority, ButtonAssignTicket, ButtonNextStep} {
		h.bot.HandleInteraction(context.Background(), press(id, "C1", staffID))
		assert.Equal(t, msgTicketIsClosed, responseText(h.client.LastResponse()), id)
	}
	h.bot.HandleInteraction(context.Background(), press(ButtonCloseTicket, "C1", staffID))
	assert.Equal(t, msgInvalidTransition, responseText(h.client.LastResponse()))

	assert.Empty(t, h.stored(t, "C1").Steps)
}

func TestCloseWithFeedbackReplyThenTeardown(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.seedOpen(t, "C1")
	ctx := context.Background()

	h.bot.HandleInteraction(ctx, press(ButtonCloseTicket, "C1", staffID))

	resp := h.client.LastResponse()
	assert.False(t, isEphemeral(resp))
	assert.Equal(t, msgTicketClosed, responseText(resp))
	ticket := h.stored(t, "C1")
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	assert.NotNil(t, ticket.ClosedAt)
	assert.Equal(t, 1, h.client.CountContaining("C1", msgFeedbackRequest))

	h.bot.HandleMessage(ctx, chat("C1", staffID, "not the owner"))
	h.bot.HandleMessage(ctx, chat("C1", ownerID, "quick and friendly"))
	assert.Equal(t, 1, h.client.CountContaining("C1", msgFeedbackReceived))

	assert.Eventually(t, func() bool {
		return h.stored(t, "C1").ChannelDeletedAt != nil
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, h.client.CountContaining("C1", msgFeedbackTimeout))
	assert.Equal(t, 1, h.client.CallCount("DeleteChannel"))
}

func TestCloseWithoutReplyPostsOneTimeoutNotice(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.seedOpen(t, "C1")

	h.bot.HandleInteraction(context.Background(), press(ButtonCloseTicket, "C1", staffID))

	assert.Eventually(t, func() bool {
		return h.client.CallCount("DeleteChannel") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.client.CountContaining("C1", msgFeedbackTimeout))
	assert.Zero(t, h.client.CountContaining("C1", msgFeedbackReceived))

	var notice *discordgo.MessageSend
	for _, s := range h.client.Sent("C1") {
		if s.Message.Content == msgFeedbackTimeout {
			notice = s.Message
		}
	}
	require.NotNil(t, notice)
	require.NotNil(t, notice.Reference)
	assert.Equal(t, "msg", notice.Reference.MessageID)
}

func TestReopenDuringFeedbackCancelsWaitAndTeardown(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.seedOpen(t, "C1")
	ctx := context.Background()

	h.bot.HandleInteraction(ctx, press(ButtonCloseTicket, "C1", staffID))
	h.bot.HandleInteraction(ctx, press(ButtonReopenTicket, "C1", staffID))

	assert.Equal(t, msgReopenTicket, responseText(h.client.LastResponse()))
	ticket := h.stored(t, "C1")
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Nil(t, ticket.ClosedAt)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, h.client.CountContaining("C1", msgFeedbackTimeout))
	assert.Zero(t, h.client.CallCount("DeleteChannel"))
	assert.False(t, h.teardown.Pending("C1"))
}

func TestReopenBeforeFeedbackWaitStartsCancelsIt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.client.On("Send", mock.Anything, "C1", mock.MatchedBy(func(msg *discordgo.MessageSend) bool {
		return msg.Content == msgFeedbackRequest
	})).Run(func(mock.Arguments) {
		h.bot.HandleInteraction(ctx, press(ButtonReopenTicket, "C1", staffID))
	}).Return(&discordgo.Message{ID: "req"}, nil).Once()
	h.client.Permissive()
	h.seedOpen(t, "C1")

	h.bot.HandleInteraction(ctx, press(ButtonCloseTicket, "C1", staffID))

	assert.Equal(t, domain.TicketStatusOpen, h.stored(t, "C1").Status)
	assert.False(t, h.feedback.Waiting("C1"))

	h.bot.HandleMessage(ctx, chat("C1", ownerID, "still broken"))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, h.client.CountContaining("C1", msgFeedbackReceived))
	assert.Zero(t, h.client.CountContaining("C1", msgFeedbackTimeout))
	assert.Zero(t, h.client.CallCount("DeleteChannel"))
	assert.False(t, h.teardown.Pending("C1"))
}

func TestTeardownFailureAfterFeedbackAlertsOperators(t *testing.T) {
	h := newHarness(t)
	h.client.On("DeleteChannel", mock.Anything, "C1").
		Return(apperrors.NewPlatformError("delete channel", errors.New("missing permissions")))
	h.client.Permissive()
	h.seedOpen(t, "C1")
	ctx := context.Background()

	h.bot.HandleInteraction(ctx, press(ButtonCloseTicket, "C1", staffID))
	h.bot.HandleMessage(ctx, chat("C1", ownerID, "thanks"))

	assert.Eventually(t, func() bool {
		return h.client.CountContaining(opsChannel, "teardown: delete channel") == 1
	}, time.Second, 5*time.Millisecond)
	ticket := h.stored(t, "C1")
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	assert.Nil(t, ticket.ChannelDeletedAt)
}

func TestReopenAfterFeedbackCancelsPendingTeardown(t *testing.T) {
	h := newHarness(t, withTeardownDelay(time.Hour))
	h.client.Permissive()
	h.seedOpen(t, "C1")
	ctx := context.Background()

	h.bot.HandleInteraction(ctx, press(ButtonCloseTicket, "C1", staffID))
	h.bot.HandleMessage(ctx, chat("C1", ownerID, "thanks"))
	require.True(t, h.teardown.Pending("C1"))

	h.bot.HandleInteraction(ctx, press(ButtonReopenTicket, "C1", staffID))

	assert.False(t, h.teardown.Pending("C1"))
	assert.Zero(t, h.client.CallCount("DeleteChannel"))
}

func TestEndToEndLifecycle(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.client.On("CreateChannel", mock.Anything, guildID, mock.Anything).
		Return(&discordgo.Channel{ID: "C1", Name: "ticket-alice-smith"}, nil)
	ctx := context.Background()

	h.bot.HandleInteraction(ctx, press(ButtonCreateTicket, "PANEL", ownerID))
	assert.Equal(t, domain.TicketPriorityMedium, h.stored(t, "C1").Priority)

	h.bot.HandleInteraction(ctx, press(SelectPriority, "C1", staffID, "High"))
	assert.Equal(t, domain.TicketPriorityHigh, h.stored(t, "C1").Priority)

	h.bot.HandleInteraction(ctx, press(ButtonCloseTicket, "C1", staffID))
	closed := h.stored(t, "C1")
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	h.bot.HandleInteraction(ctx, press(ButtonReopenTicket, "C1", staffID))
	reopened := h.stored(t, "C1")
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
}

func TestAutoReplyIsThrottledPerChannel(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	ctx := context.Background()

	h.bot.HandleMessage(ctx, chat("general", "X", "I need HELP"))
	h.bot.HandleMessage(ctx, chat("general", "Y", "another issue"))
	h.bot.HandleMessage(ctx, chat("random", "X", "help"))
	h.bot.HandleMessage(ctx, chat("random", "X", "hello there"))
	bot := chat("other", "B", "help")
	bot.Author.Bot = true
	h.bot.HandleMessage(ctx, bot)

	assert.Equal(t, 1, h.client.CountContaining("general", "It looks like you need help!"))
	assert.Equal(t, 1, h.client.CountContaining("random", "It looks like you need help!"))
	assert.Empty(t, h.client.Sent("other"))

	reply := h.client.Sent("general")[0].Message
	require.NotNil(t, reply.Reference)
	assert.Equal(t, "m-I need HELP", reply.Reference.MessageID)
}

func TestFAQAnswersInFAQChannel(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	ctx := context.Background()

	h.bot.HandleMessage(ctx, chat(faqChannel, "X", "How long does a Refund take?"))
	h.bot.HandleMessage(ctx, chat("general", "X", "refund?"))

	assert.Equal(t, 1, h.client.CountContaining(faqChannel, "Refunds take 5 days."))
	assert.Empty(t, h.client.Sent("general"))
}

func TestReadyPostsPanelOnceAndRecoversTeardown(t *testing.T) {
	h := newHarness(t)
	h.client.Permissive()
	h.seedOpen(t, "C1")
	_, err := h.tickets.Close(context.Background(), staffID, "C1")
	require.NoError(t, err)

	ready := &discordgo.Ready{User: &discordgo.User{Username: "ticketbot"}}
	h.bot.HandleReady(context.Background(), ready)
	h.bot.HandleReady(context.Background(), ready)

	panel := h.client.Sent("PANEL")
	require.Len(t, panel, 1)
	assert.Contains(t, panel[0].Text(), "Click the button below to create a support ticket.")
	row := panel[0].Message.Components[0].(discordgo.ActionsRow)
	assert.Equal(t, ButtonCreateTicket, row.Components[0].(discordgo.Button).CustomID)

	assert.Eventually(t, func() bool {
		return h.client.CallCount("DeleteChannel") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestNonComponentInteractionsIgnored(t *testing.T) {
	h := newHarness(t)

	h.bot.HandleInteraction(context.Background(), &discordgo.Interaction{Type: discordgo.InteractionPing})
	h.bot.HandleInteraction(context.Background(), press("unknown", "C1", staffID))

	assert.Empty(t, h.client.Responses())
}

func TestTicketChannelName(t *testing.T) {
	assert.Equal(t, "ticket-alice", ticketChannelName("Alice"))
	assert.Equal(t, "ticket-big-bob", ticketChannelName("Big  Bob"))
	assert.Equal(t, "ticket-user", ticketChannelName("  "))
}
