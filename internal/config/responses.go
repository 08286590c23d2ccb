package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Responses holds the canned replies and reminders the bot posts on its own.
type Responses struct {
	AutoReply AutoReply  `yaml:"auto_reply"`
	FAQ       []FAQEntry `yaml:"faq"`
	Reminders []Reminder `yaml:"reminders"`
}

// AutoReply suggests opening a ticket when a message contains a trigger word.
type AutoReply struct {
	Triggers []string `yaml:"triggers"`
	Reply    string   `yaml:"reply"`
}

// FAQEntry answers messages in the FAQ channel containing any keyword.
type FAQEntry struct {
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

// Reminder posts Message to ChannelID on a cron schedule.
type Reminder struct {
	ChannelID string `yaml:"channel_id"`
	Schedule  string `yaml:"schedule"`
	Message   string `yaml:"message"`
}

// DefaultResponses mirrors the behaviour the bot ships with when no file is given.
func DefaultResponses(discord DiscordConfig, tickets TicketConfig) Responses {
	resp := Responses{
		AutoReply: AutoReply{
			Triggers: []string{"help", "issue"},
			Reply:    "It looks like you need help! Please create a ticket using the button below.",
		},
	}
	if discord.NotificationChannelID != "" {
		resp.Reminders = append(resp.Reminders, Reminder{
			ChannelID: discord.NotificationChannelID,
			Schedule:  tickets.ReminderSchedule,
			Message:   "Reminder: Please review your tickets!",
		})
	}
	return resp
}

// LoadResponses reads path and fills gaps from defaults. An empty path returns the defaults.
func LoadResponses(path string, defaults Responses) (Responses, error) {
	if strings.TrimSpace(path) == "" {
		return defaults, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Responses{}, fmt.Errorf("read responses file: %w", err)
	}
	var resp Responses
	if err := yaml.Unmarshal(raw, &resp); err != nil {
		return Responses{}, fmt.Errorf("parse responses file %s: %w", path, err)
	}

	if len(resp.AutoReply.Triggers) == 0 {
		resp.AutoReply.Triggers = defaults.AutoReply.Triggers
	}
	if resp.AutoReply.Reply == "" {
		resp.AutoReply.Reply = defaults.AutoReply.Reply
	}
	for i := range resp.AutoReply.Triggers {
		resp.AutoReply.Triggers[i] = strings.ToLower(strings.TrimSpace(resp.AutoReply.Triggers[i]))
	}
	if resp.Reminders == nil {
		resp.Reminders = defaults.Reminders
	}
	for i, r := range resp.Reminders {
		if r.ChannelID == "" || r.Message == "" {
			return Responses{}, fmt.Errorf("reminder %d: channel_id and message are required", i)
		}
		if r.Schedule == "" {
			resp.Reminders[i].Schedule = "@every 1h"
		}
	}
	return resp, nil
}
