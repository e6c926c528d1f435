package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/KeioAIConsortium/gpt-discord-bot/internal/relay"
)

const (
	starterFieldThreadID    = "thread_id"
	starterFieldAssistantID = "assistant_id"

	selectCustomID   = "assistant_select"
	boolPromptPrefix = "prompt:"

	threadAutoArchiveMinutes = 60
	threadSlowmodeSeconds    = 1
	threadNameUserRunes      = 20
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "chat",
			Description: "Start a chat with the bot in a thread",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "assistant_id",
					Description: "Assistant to chat with",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "thread_id",
					Description: "Existing remote thread to resume",
				},
			},
		},
		{
			Name:        "assistant",
			Description: "Manage assistants",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "build",
					Description: "Build an assistant interactively",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "name",
							Description: "Assistant name",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "show",
					Description: "Show an assistant",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "assistant_id",
							Description: "Assistant id",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List available assistants",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "delete",
					Description: "Delete an assistant",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "assistant_id",
							Description: "Assistant id",
							Required:    true,
						},
					},
				},
			},
		},
	}
}

func (rt *runtime) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case "chat":
			rt.handleChat(i)
		case "assistant":
			rt.handleAssistant(i)
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		switch {
		case customID == selectCustomID:
			rt.handleAssistantSelect(i)
		case strings.HasPrefix(customID, boolPromptPrefix):
			rt.handleBoolPrompt(i)
		}
	}
}

func (rt *runtime) handleChat(i *discordgo.InteractionCreate) {
	if !rt.guildAllowed(i.GuildID) {
		rt.logger.Info("discord_chat_blocked", "guild_id", i.GuildID)
		return
	}
	ch, err := rt.channel(i.ChannelID)
	if err != nil || ch.Type != discordgo.ChannelTypeGuildText {
		return
	}
	user := interactionUser(i)
	if user == nil {
		return
	}

	assistantID := relay.AssistantNotSelected
	remoteThreadID := ""
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "assistant_id":
			assistantID = opt.StringValue()
		case "thread_id":
			remoteThreadID = opt.StringValue()
		}
	}
	rt.logger.Info("discord_chat_command", "user", user.Username, "guild_id", i.GuildID)

	ctx := context.Background()
	if remoteThreadID == "" {
		remote, err := rt.client.CreateThread(ctx)
		if err != nil {
			rt.respondError(i, fmt.Sprintf("Failed to start chat %s", err))
			return
		}
		remoteThreadID = remote.ID
	}

	embed := &discordgo.MessageEmbed{
		Description: fmt.Sprintf("<@%s> wants to chat! \U0001F916\U0001F4AC", user.ID),
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: starterFieldThreadID, Value: remoteThreadID},
			{Name: starterFieldAssistantID, Value: assistantID},
		},
	}
	err = rt.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	})
	if err != nil {
		rt.logger.Warn("discord_chat_respond_error", "error", err.Error())
		return
	}
	starter, err := rt.session.InteractionResponse(i.Interaction)
	if err != nil {
		rt.logger.Warn("discord_chat_starter_fetch_error", "error", err.Error())
		return
	}

	thread, err := rt.session.MessageThreadStartComplex(i.ChannelID, starter.ID, &discordgo.ThreadStart{
		Name:                relay.ActiveChatThreadPrefix + " " + truncateRunes(user.Username, threadNameUserRunes),
		AutoArchiveDuration: threadAutoArchiveMinutes,
		RateLimitPerUser:    threadSlowmodeSeconds,
	})
	if err != nil {
		rt.logger.Warn("discord_thread_create_error", "channel_id", i.ChannelID, "error", err.Error())
		return
	}
	rt.logger.Info("discord_chat_thread_created", "thread_id", thread.ID, "remote_thread_id", remoteThreadID)

	if assistantID != relay.AssistantNotSelected {
		return
	}
	if err := rt.sendAssistantMenu(ctx, thread.ID); err != nil {
		rt.logger.Warn("discord_assistant_menu_error", "thread_id", thread.ID, "error", err.Error())
	}
}

func (rt *runtime) sendAssistantMenu(ctx context.Context, threadID string) error {
	assistants, err := rt.client.ListAssistants(ctx, rt.opts.AssistantListLimit)
	if err != nil {
		return fmt.Errorf("list assistants: %w", err)
	}
	options := make([]discordgo.SelectMenuOption, 0, len(assistants))
	for _, a := range assistants {
		options = append(options, discordgo.SelectMenuOption{
			Label:       truncateRunes(a.Name, 100),
			Value:       a.ID,
			Description: truncateRunes(a.Description, 100),
		})
	}
	if len(options) == 0 {
		return fmt.Errorf("no assistants available")
	}
	_, err = rt.session.ChannelMessageSendComplex(threadID, &discordgo.MessageSend{
		Content: "Select your assistant",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    selectCustomID,
					Placeholder: relay.AssistantNotSelected,
					Options:     options,
				},
			}},
		},
	})
	return err
}

// handleAssistantSelect rewrites the assistant_id field on the thread's
// starter embed, then disables the menu so the choice sticks.
func (rt *runtime) handleAssistantSelect(i *discordgo.InteractionCreate) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		return
	}
	selected := values[0]

	ch, err := rt.channel(i.ChannelID)
	if err != nil || ch.ParentID == "" {
		rt.logger.Warn("discord_select_thread_error", "channel_id", i.ChannelID)
		return
	}
	starter, err := rt.session.ChannelMessage(ch.ParentID, ch.ID)
	if err != nil || len(starter.Embeds) == 0 {
		rt.logger.Warn("discord_select_starter_error", "thread_id", ch.ID)
		return
	}
	embed := starter.Embeds[0]
	for _, field := range embed.Fields {
		if field.Name == starterFieldAssistantID {
			field.Value = selected
		}
	}
	edit := discordgo.NewMessageEdit(ch.ParentID, starter.ID)
	edit.Embeds = &[]*discordgo.MessageEmbed{embed}
	if _, err := rt.session.ChannelMessageEditComplex(edit); err != nil {
		rt.logger.Warn("discord_select_edit_error", "thread_id", ch.ID, "error", err.Error())
		return
	}
	rt.logger.Info("discord_assistant_selected", "thread_id", ch.ID, "assistant_id", selected)

	err = rt.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content: "Select your assistant",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						CustomID: selectCustomID,
						Disabled: true,
						Options: []discordgo.SelectMenuOption{
							{Label: selected, Value: selected, Default: true},
						},
					},
				}},
			},
		},
	})
	if err != nil {
		rt.logger.Warn("discord_select_ack_error", "error", err.Error())
	}
}

func (rt *runtime) handleBoolPrompt(i *discordgo.InteractionCreate) {
	rest := strings.TrimPrefix(i.MessageComponentData().CustomID, boolPromptPrefix)
	id, answer, ok := strings.Cut(rest, ":")
	if !ok {
		return
	}
	if !rt.boolPrompts.Resolve(id, answer == "yes") {
		rt.logger.Debug("discord_prompt_expired", "prompt_id", id)
	}
	err := rt.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		rt.logger.Warn("discord_prompt_ack_error", "error", err.Error())
	}
}

func (rt *runtime) respondError(i *discordgo.InteractionCreate, text string) {
	err := rt.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		rt.logger.Warn("discord_respond_error", "error", err.Error())
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
