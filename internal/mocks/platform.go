package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/mock"
)

// SentMessage is a message captured by MockPlatformClient.Send.
type SentMessage struct {
	ChannelID string
	Message   *discordgo.MessageSend
}

// Text returns the content plus embed titles and descriptions, for matching.
func (s SentMessage) Text() string {
	var b strings.Builder
	b.WriteString(s.Message.Content)
	for _, embed := range s.Message.Embeds {
		b.WriteString("\n" + embed.Title + "\n" + embed.Description)
		for _, field := range embed.Fields {
			b.WriteString("\n" + field.Name + ": " + field.Value)
		}
	}
	return b.String()
}

// MockPlatformClient is a mock implementation of platform.Client. Every call
// goes through mock.Mock; sends are also captured for content assertions.
type MockPlatformClient struct {
	mock.Mock

	mu        sync.Mutex
	sent      []SentMessage
	responses []*discordgo.InteractionResponse
	count     map[string]int
}

func NewMockPlatformClient() *MockPlatformClient {
	return &MockPlatformClient{}
}

// Permissive registers catch-all expectations so tests only stub what they assert on.
func (m *MockPlatformClient) Permissive() *MockPlatformClient {
	m.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(&discordgo.Message{ID: "msg"}, nil).Maybe()
	m.On("Respond", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("DeleteChannel", mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

func (m *MockPlatformClient) CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	m.record("CreateChannel")
	args := m.Called(ctx, guildID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.Channel), args.Error(1)
}

func (m *MockPlatformClient) Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	m.mu.Lock()
	m.sent = append(m.sent, SentMessage{ChannelID: channelID, Message: msg})
	m.mu.Unlock()
	m.record("Send")

	args := m.Called(ctx, channelID, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.Message), args.Error(1)
}

func (m *MockPlatformClient) DeleteChannel(ctx context.Context, channelID string) error {
	m.record("DeleteChannel")
	args := m.Called(ctx, channelID)
	return args.Error(0)
}

func (m *MockPlatformClient) Respond(ctx context.Context, interaction *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	m.mu.Lock()
	m.responses = append(m.responses, resp)
	m.mu.Unlock()
	m.record("Respond")
	args := m.Called(ctx, interaction, resp)
	return args.Error(0)
}

// Sent returns every captured message, optionally filtered to one channel.
func (m *MockPlatformClient) Sent(channelID string) []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, 0, len(m.sent))
	for _, s := range m.sent {
		if channelID == "" || s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

// Responses returns every captured interaction response in call order.
func (m *MockPlatformClient) Responses() []*discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*discordgo.InteractionResponse{}, m.responses...)
}

// LastResponse returns the most recent interaction response, or nil.
func (m *MockPlatformClient) LastResponse() *discordgo.InteractionResponse {
	all := m.Responses()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// CountContaining counts captured messages to channelID whose text contains substr.
func (m *MockPlatformClient) CountContaining(channelID, substr string) int {
	n := 0
	for _, s := range m.Sent(channelID) {
		if strings.Contains(s.Text(), substr) {
			n++
		}
	}
	return n
}

// CallCount counts calls of method, safe to use while calls are in flight.
func (m *MockPlatformClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count[method]
}

func (m *MockPlatformClient) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == nil {
		m.count = make(map[string]int)
	}
	m.count[method]++
}
