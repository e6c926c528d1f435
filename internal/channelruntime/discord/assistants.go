package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/KeioAIConsortium/gpt-discord-bot/internal/assistant"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/relay"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/splitter"
)

func (rt *runtime) handleAssistant(i *discordgo.InteractionCreate) {
	if !rt.guildAllowed(i.GuildID) {
		rt.logger.Info("discord_assistant_blocked", "guild_id", i.GuildID)
		return
	}
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	switch sub.Name {
	case "build":
		rt.handleAssistantBuild(i, sub)
	case "show":
		rt.handleAssistantShow(i, sub)
	case "list":
		rt.handleAssistantList(i)
	case "delete":
		rt.handleAssistantDelete(i, sub)
	}
}

// handleAssistantBuild walks the user through a guided setup in a dedicated
// build thread: two free-text questions, then a button per tool capability.
func (rt *runtime) handleAssistantBuild(i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	ch, err := rt.channel(i.ChannelID)
	if err != nil || ch.Type != discordgo.ChannelTypeGuildText {
		return
	}
	user := interactionUser(i)
	if user == nil || len(sub.Options) == 0 {
		return
	}
	name := sub.Options[0].StringValue()
	rt.logger.Info("discord_build_command", "user", user.Username, "name", name)

	embed := &discordgo.MessageEmbed{
		Description: fmt.Sprintf("<@%s> wants to build an assistant! \U0001F916\U0001F4AC", user.ID),
		Color:       colorBlue,
	}
	err = rt.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	})
	if err != nil {
		rt.logger.Warn("discord_build_respond_error", "error", err.Error())
		return
	}
	starter, err := rt.session.InteractionResponse(i.Interaction)
	if err != nil {
		return
	}
	threadName := fmt.Sprintf("%s - %s - %s", relay.ActiveBuildThreadPrefix, name, truncateRunes(user.Username, threadNameUserRunes))
	thread, err := rt.session.MessageThreadStartComplex(i.ChannelID, starter.ID, &discordgo.ThreadStart{
		Name:                threadName,
		AutoArchiveDuration: threadAutoArchiveMinutes,
		RateLimitPerUser:    threadSlowmodeSeconds,
	})
	if err != nil {
		rt.logger.Warn("discord_thread_create_error", "channel_id", i.ChannelID, "error", err.Error())
		return
	}

	// The wizard blocks on user replies, so it runs off the event goroutine.
	go rt.runBuildWizard(thread.ID, user.ID, name)
}

func (rt *runtime) runBuildWizard(threadID, userID, name string) {
	ctx := context.Background()

	description, ok := rt.askText(ctx, threadID, userID, "What is the description of your assistant?")
	if !ok {
		return
	}
	instructions, ok := rt.askText(ctx, threadID, userID, "What are the instructions for your assistant?")
	if !ok {
		return
	}

	rt.say(threadID, "What are the tools for your assistant?")
	var tools []assistant.Tool
	if rt.askBool(ctx, threadID, "# Files") {
		tools = append(tools, assistant.Tool{Type: assistant.ToolFileSearch})
	}
	prompt := "# Code Interpreter\n**NOTE :** It should also be enabled if you need to handle file types other than .txt."
	if rt.askBool(ctx, threadID, prompt) {
		tools = append(tools, assistant.Tool{Type: assistant.ToolCodeInterpreter})
	}

	created, err := rt.client.CreateAssistant(ctx, assistant.AssistantCreate{
		Name:         name,
		Description:  description,
		Instructions: instructions,
		Model:        rt.opts.DefaultModel,
		Tools:        tools,
	})
	if err != nil {
		rt.logger.Warn("discord_build_create_error", "name", name, "error", err.Error())
		rt.say(threadID, fmt.Sprintf("Failed to create assistant: %s", err))
		return
	}
	rt.logger.Info("discord_build_created", "assistant_id", created.ID, "name", name, "tools", len(tools))
	rt.say(threadID, fmt.Sprintf("Created assistant `%s`", created.ID))
}

func (rt *runtime) handleAssistantShow(i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if len(sub.Options) == 0 {
		return
	}
	assistantID := sub.Options[0].StringValue()
	if err := rt.deferResponse(i); err != nil {
		return
	}
	a, err := rt.client.GetAssistant(context.Background(), assistantID)
	if err != nil {
		rt.followupText(i, fmt.Sprintf("Failed to show assistant. %s", err))
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", a.Name)
	fmt.Fprintf(&b, "Description: %s\n", a.Description)
	fmt.Fprintf(&b, "Instructions: %s\n", a.Instructions)
	fmt.Fprintf(&b, "Tools: %s", formatTools(a.Tools))
	for _, piece := range splitter.Split("```"+b.String()+"```", splitter.DefaultLimit, splitter.DefaultFence) {
		rt.followupText(i, piece)
	}
}

func (rt *runtime) handleAssistantList(i *discordgo.InteractionCreate) {
	if err := rt.deferResponse(i); err != nil {
		return
	}
	assistants, err := rt.client.ListAssistants(context.Background(), rt.opts.AssistantListLimit)
	if err != nil {
		rt.followupText(i, fmt.Sprintf("Failed to list assistants. %s", err))
		return
	}
	var b strings.Builder
	b.WriteString("Available Assistants \U0001F916 `[assistant_id] name - description`\n")
	for _, a := range assistants {
		fmt.Fprintf(&b, "```[%s] %s - %s```", a.ID, a.Name, a.Description)
	}
	for _, piece := range splitter.Split(b.String(), splitter.DefaultLimit, splitter.DefaultFence) {
		rt.followupText(i, piece)
	}
}

func (rt *runtime) handleAssistantDelete(i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if len(sub.Options) == 0 {
		return
	}
	assistantID := sub.Options[0].StringValue()
	if err := rt.deferResponse(i); err != nil {
		return
	}
	ctx := context.Background()
	a, err := rt.client.GetAssistant(ctx, assistantID)
	if err != nil {
		rt.followupText(i, fmt.Sprintf("Failed to delete assistant. No assistant found with id `%s`.", assistantID))
		return
	}

	promptID := uuid.NewString()
	p := rt.boolPrompts.Open(promptID)
	_, err = rt.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: fmt.Sprintf("Are you sure you want to delete assistant `%s`?", a.ID),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       fmt.Sprintf("Assistant %s", a.Name),
			Description: fmt.Sprintf("Description: %s", a.Description),
			Color:       colorRed,
		}},
		Components: confirmButtons(promptID, "Delete", "Cancel"),
	})
	if err != nil {
		rt.boolPrompts.Close(promptID)
		rt.logger.Warn("discord_delete_prompt_error", "error", err.Error())
		return
	}

	go func() {
		confirmed, ok := p.Wait(ctx, rt.opts.PromptTimeout, false)
		rt.boolPrompts.Close(promptID)
		if !ok {
			rt.followupText(i, "Timed out waiting for confirmation. Assistant was not deleted.")
			return
		}
		if !confirmed {
			rt.followupText(i, "Cancelled deleting assistant")
			return
		}
		if err := rt.client.DeleteAssistant(context.Background(), a.ID); err != nil {
			rt.followupText(i, fmt.Sprintf("Failed to delete assistant. %s", err))
			return
		}
		rt.logger.Info("discord_assistant_deleted", "assistant_id", a.ID)
		rt.followupText(i, fmt.Sprintf("Deleted assistant %s", a.Name))
	}()
}

// askText waits for the user's next message in the thread.
func (rt *runtime) askText(ctx context.Context, threadID, userID, question string) (string, bool) {
	key := messagePromptKey(threadID, userID)
	p := rt.messagePrompts.Open(key)
	rt.say(threadID, question)
	msg, ok := p.Wait(ctx, rt.opts.PromptTimeout, nil)
	if !ok || msg == nil {
		rt.messagePrompts.Close(key)
		rt.say(threadID, "Timed out waiting for a reply")
		return "", false
	}
	return msg.Content, true
}

// askBool posts Enable/Disable buttons and waits for a click; timeout means
// disabled.
func (rt *runtime) askBool(ctx context.Context, threadID, question string) bool {
	promptID := uuid.NewString()
	p := rt.boolPrompts.Open(promptID)
	_, err := rt.session.ChannelMessageSendComplex(threadID, &discordgo.MessageSend{
		Content:    question,
		Components: confirmButtons(promptID, "Enable", "Disable"),
	})
	if err != nil {
		rt.boolPrompts.Close(promptID)
		rt.logger.Warn("discord_prompt_send_error", "thread_id", threadID, "error", err.Error())
		return false
	}
	val, ok := p.Wait(ctx, rt.opts.PromptTimeout, false)
	rt.boolPrompts.Close(promptID)
	if !ok {
		rt.say(threadID, "Timed out waiting for button click")
		return false
	}
	return val
}

func confirmButtons(promptID, yesLabel, noLabel string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    yesLabel,
				Style:    discordgo.SuccessButton,
				CustomID: boolPromptPrefix + promptID + ":yes",
			},
			discordgo.Button{
				Label:    noLabel,
				Style:    discordgo.DangerButton,
				CustomID: boolPromptPrefix + promptID + ":no",
			},
		}},
	}
}

func (rt *runtime) say(threadID, text string) {
	if _, err := rt.session.ChannelMessageSend(threadID, text); err != nil {
		rt.logger.Warn("discord_send_error", "thread_id", threadID, "error", err.Error())
	}
}

func (rt *runtime) deferResponse(i *discordgo.InteractionCreate) error {
	err := rt.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		rt.logger.Warn("discord_defer_error", "error", err.Error())
	}
	return err
}

func (rt *runtime) followupText(i *discordgo.InteractionCreate, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	_, err := rt.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: text})
	if err != nil {
		rt.logger.Warn("discord_followup_error", "error", err.Error())
	}
}

func formatTools(tools []assistant.Tool) string {
	if len(tools) == 0 {
		return "none"
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, string(t.Type))
	}
	return strings.Join(names, ", ")
}
