// Package discord runs the Discord gateway loop and adapts Discord threads,
// messages, and interactions onto the relay policy.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/KeioAIConsortium/gpt-discord-bot/internal/assistant"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/promptui"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/relay"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/render"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/retryutil"
)

// Invite needs Send Messages, Create Public Threads, Send Messages in
// Threads, Manage Messages, Manage Threads, Read Message History, Use Slash
// Commands.
const invitePermissions = "328565073920"

const (
	colorGreen  = 0x57F287
	colorBlue   = 0x3498DB
	colorYellow = 0xFEE75C
	colorRed    = 0xED4245
)

const maxAttachmentBytes = 64 << 20

type RunOptions struct {
	BotToken           string
	ClientID           string
	AllowedGuildIDs    []string
	DefaultModel       string
	AssistantListLimit int
	PromptTimeout      time.Duration

	SearchExtensions          []string
	CodeInterpreterExtensions []string

	Logger   *slog.Logger
	Client   *assistant.Client
	Driver   *assistant.Driver
	Renderer relay.ChunkRenderer
}

type runtime struct {
	opts    RunOptions
	logger  *slog.Logger
	session *discordgo.Session
	client  *assistant.Client
	http    *http.Client

	reconciler *relay.Reconciler
	allowed    map[string]bool

	// Open wizard questions: boolPrompts keyed by a per-question id embedded
	// in the button custom id, messagePrompts keyed by thread+user.
	boolPrompts    *promptui.Registry[bool]
	messagePrompts *promptui.Registry[*discordgo.Message]
}

func Run(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	botToken := strings.TrimSpace(opts.BotToken)
	if botToken == "" {
		return fmt.Errorf("missing discord.bot_token")
	}
	if opts.Client == nil || opts.Driver == nil || opts.Renderer == nil {
		return fmt.Errorf("discord runtime requires client, driver, and renderer")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PromptTimeout <= 0 {
		opts.PromptTimeout = promptui.DefaultTimeout
	}

	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	rt := &runtime{
		opts:           opts,
		logger:         logger,
		session:        session,
		client:         opts.Client,
		http:           &http.Client{Timeout: 30 * time.Second},
		allowed:        toAllowlist(opts.AllowedGuildIDs),
		boolPrompts:    promptui.NewRegistry[bool](),
		messagePrompts: promptui.NewRegistry[*discordgo.Message](),
	}
	session.AddHandler(rt.onReady)
	session.AddHandler(rt.onMessageCreate)
	session.AddHandler(rt.onInteractionCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	defer func() { _ = session.Close() }()

	botUserID := session.State.User.ID
	reconciler, err := relay.New(relay.Options{
		Logger:                    logger,
		BotUserID:                 botUserID,
		AllowedGuildIDs:           opts.AllowedGuildIDs,
		Driver:                    opts.Driver,
		Renderer:                  opts.Renderer,
		Uploader:                  opts.Client,
		ThreadInfo:                rt.threadInfo,
		StarterRecord:             rt.starterRecord,
		LastMessage:               rt.lastMessage,
		SendChunk:                 rt.sendChunk,
		SendNotice:                rt.sendNotice,
		FetchAttachment:           rt.fetchAttachment,
		Typing:                    rt.typing,
		SearchExtensions:          opts.SearchExtensions,
		CodeInterpreterExtensions: opts.CodeInterpreterExtensions,
	})
	if err != nil {
		return err
	}
	rt.reconciler = reconciler

	if err := rt.registerCommands(ctx); err != nil {
		return err
	}

	logger.Info("discord_start",
		"bot_user_id", botUserID,
		"allowed_guild_ids", len(rt.allowed),
		"prompt_timeout", opts.PromptTimeout.String(),
		"invite_url", inviteURL(opts.ClientID),
	)

	<-ctx.Done()
	logger.Info("discord_stop", "reason", "context_canceled")
	return nil
}

func (rt *runtime) registerCommands(ctx context.Context) error {
	appID := rt.session.State.User.ID
	guilds := rt.opts.AllowedGuildIDs
	if len(guilds) == 0 {
		guilds = []string{""}
	}
	for _, guildID := range guilds {
		guildID := guildID
		err := retryutil.Do(ctx, rt.logger, "discord_command_register", 3, 2*time.Second, func(ctx context.Context) error {
			_, err := rt.session.ApplicationCommandBulkOverwrite(appID, guildID, commandDefinitions())
			return err
		})
		if err != nil {
			return fmt.Errorf("register commands for guild %q: %w", guildID, err)
		}
	}
	return nil
}

func (rt *runtime) onReady(s *discordgo.Session, r *discordgo.Ready) {
	rt.logger.Info("discord_ready", "username", r.User.Username, "session_id", r.SessionID)
}

func (rt *runtime) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	// A build wizard waiting on this user's next message in this thread
	// consumes the event before the relay sees it.
	if rt.messagePrompts.Resolve(messagePromptKey(m.ChannelID, m.Author.ID), m.Message) {
		return
	}
	if rt.reconciler == nil || m.Author.Bot {
		return
	}
	rt.reconciler.HandleMessage(context.Background(), inboundFromDiscord(m))
}

func inboundFromDiscord(m *discordgo.MessageCreate) relay.InboundMessage {
	atts := make([]relay.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		atts = append(atts, relay.Attachment{
			ID:       a.ID,
			Filename: a.Filename,
			URL:      a.URL,
			Size:     a.Size,
		})
	}
	name := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		name = m.Member.Nick
	}
	return relay.InboundMessage{
		MessageID:   m.ID,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		AuthorID:    m.Author.ID,
		AuthorName:  name,
		Content:     m.Content,
		Attachments: atts,
	}
}

func (rt *runtime) channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := rt.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return rt.session.Channel(channelID)
}

func (rt *runtime) threadInfo(ctx context.Context, channelID string) (*relay.ThreadInfo, error) {
	ch, err := rt.channel(channelID)
	if err != nil {
		return nil, err
	}
	if !isThread(ch) {
		return nil, nil
	}
	info := &relay.ThreadInfo{ID: ch.ID, Name: ch.Name, OwnerID: ch.OwnerID}
	if ch.ThreadMetadata != nil {
		info.Archived = ch.ThreadMetadata.Archived
		info.Locked = ch.ThreadMetadata.Locked
	}
	return info, nil
}

// starterRecord reads the session metadata off the thread's starter message.
// The starter message lives in the parent channel and shares the thread's id.
func (rt *runtime) starterRecord(ctx context.Context, threadID string) (*relay.StarterRecord, error) {
	ch, err := rt.channel(threadID)
	if err != nil {
		return nil, err
	}
	if ch.ParentID == "" {
		return nil, fmt.Errorf("thread %s has no parent channel", threadID)
	}
	starter, err := rt.session.ChannelMessage(ch.ParentID, threadID)
	if err != nil {
		return nil, fmt.Errorf("fetch starter message: %w", err)
	}
	return starterRecordFromMessage(starter)
}

func starterRecordFromMessage(msg *discordgo.Message) (*relay.StarterRecord, error) {
	if msg == nil || len(msg.Embeds) == 0 {
		return nil, fmt.Errorf("starter message has no embed")
	}
	rec := &relay.StarterRecord{}
	for _, field := range msg.Embeds[0].Fields {
		switch field.Name {
		case starterFieldThreadID:
			rec.RemoteThreadID = strings.TrimSpace(field.Value)
		case starterFieldAssistantID:
			rec.AssistantID = strings.TrimSpace(field.Value)
		}
	}
	if rec.RemoteThreadID == "" {
		return nil, fmt.Errorf("starter embed has no %s field", starterFieldThreadID)
	}
	return rec, nil
}

func (rt *runtime) lastMessage(ctx context.Context, threadID string) (*relay.InboundMessage, error) {
	msgs, err := rt.session.ChannelMessages(threadID, 1, "", "", "")
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 || msgs[0].Author == nil {
		return nil, nil
	}
	return &relay.InboundMessage{
		MessageID: msgs[0].ID,
		ChannelID: threadID,
		AuthorID:  msgs[0].Author.ID,
		Content:   msgs[0].Content,
	}, nil
}

func (rt *runtime) sendChunk(ctx context.Context, threadID string, chunk render.Chunk) error {
	send := &discordgo.MessageSend{Content: chunk.Text}
	for _, f := range chunk.Files {
		send.Files = append(send.Files, &discordgo.File{
			Name:   f.Name,
			Reader: bytes.NewReader(f.Data),
		})
	}
	_, err := rt.session.ChannelMessageSendComplex(threadID, send)
	return err
}

func (rt *runtime) sendNotice(ctx context.Context, threadID, text string, warning bool) error {
	color := colorRed
	if warning {
		color = colorYellow
	}
	_, err := rt.session.ChannelMessageSendEmbed(threadID, &discordgo.MessageEmbed{
		Description: text,
		Color:       color,
	})
	return err
}

func (rt *runtime) fetchAttachment(ctx context.Context, att relay.Attachment) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := rt.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment fetch status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// typing keeps the indicator alive while a run is in flight; Discord expires
// it after 10 seconds.
func (rt *runtime) typing(ctx context.Context, threadID string) func() {
	typingCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := rt.session.ChannelTyping(threadID); err != nil {
			rt.logger.Debug("discord_typing_error", "thread_id", threadID, "error", err.Error())
			return
		}
		ticker := time.NewTicker(8 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				if err := rt.session.ChannelTyping(threadID); err != nil {
					return
				}
			}
		}
	}()
	return cancel
}

func (rt *runtime) guildAllowed(guildID string) bool {
	if guildID == "" {
		return false
	}
	return len(rt.allowed) == 0 || rt.allowed[guildID]
}

func isThread(ch *discordgo.Channel) bool {
	if ch == nil {
		return false
	}
	switch ch.Type {
	case discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGuildNewsThread:
		return true
	}
	return false
}

func inviteURL(clientID string) string {
	return "https://discord.com/api/oauth2/authorize?client_id=" + clientID +
		"&permissions=" + invitePermissions + "&scope=bot"
}

func messagePromptKey(channelID, userID string) string {
	return channelID + ":" + userID
}

func toAllowlist(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out[id] = true
	}
	return out
}
