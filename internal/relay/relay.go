// Package relay owns the on-message policy for chat threads: eligibility
// filtering, attachment intake, run orchestration, the post-run staleness
// check, and delivery of the rendered reply.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/KeioAIConsortium/gpt-discord-bot/internal/assistant"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/render"
)

const (
	// Thread-name prefixes carry the activation state: a thread whose name
	// loses the active prefix stops being served without any stored state.
	ActiveChatThreadPrefix    = "💬✅"
	InactiveChatThreadPrefix  = "💬❌"
	ActiveBuildThreadPrefix   = "🔨✅"
	InactiveBuildThreadPrefix = "🔨❌"

	// AssistantNotSelected is the sentinel starter value before the user has
	// picked an assistant.
	AssistantNotSelected = "Not selected"
)

// InboundMessage is one platform message event, already flattened to what the
// policy needs.
type InboundMessage struct {
	MessageID   string
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	Content     string
	Attachments []Attachment
}

// Attachment is a platform file reference; bytes are fetched lazily.
type Attachment struct {
	ID       string
	Filename string
	URL      string
	Size     int
}

// ThreadInfo describes the channel an event arrived in. Nil from the lookup
// means the channel is not a thread.
type ThreadInfo struct {
	ID       string
	Name     string
	OwnerID  string
	Archived bool
	Locked   bool
}

// StarterRecord is the out-of-band session metadata stored on the thread's
// pinned starter message.
type StarterRecord struct {
	RemoteThreadID string
	AssistantID    string
}

// ResponseGenerator drives one remote run; *assistant.Driver implements it.
type ResponseGenerator interface {
	GenerateResponse(ctx context.Context, threadID, assistantID string, newMessage assistant.MessageCreate) assistant.Outcome
}

// ChunkRenderer renders a remote message into outbound chunks;
// *render.Renderer implements it.
type ChunkRenderer interface {
	Render(ctx context.Context, msg *assistant.Message) ([]render.Chunk, error)
}

// FileUploader uploads attachment bytes to the remote service;
// *assistant.Client implements it.
type FileUploader interface {
	UploadFile(ctx context.Context, filename string, data []byte) (string, error)
}

type Options struct {
	Logger          *slog.Logger
	BotUserID       string
	AllowedGuildIDs []string

	Driver   ResponseGenerator
	Renderer ChunkRenderer
	Uploader FileUploader

	// Platform operations, injected as functions so tests substitute fakes.
	ThreadInfo      func(ctx context.Context, channelID string) (*ThreadInfo, error)
	StarterRecord   func(ctx context.Context, threadID string) (*StarterRecord, error)
	LastMessage     func(ctx context.Context, threadID string) (*InboundMessage, error)
	SendChunk       func(ctx context.Context, threadID string, chunk render.Chunk) error
	SendNotice      func(ctx context.Context, threadID, text string, warning bool) error
	FetchAttachment func(ctx context.Context, att Attachment) ([]byte, error)

	// Typing starts a typing indicator and returns a stop func. Optional.
	Typing func(ctx context.Context, threadID string) func()

	// Extension allowlists per tool capability; a file may qualify for both.
	SearchExtensions          []string
	CodeInterpreterExtensions []string
}

type Reconciler struct {
	opts       Options
	logger     *slog.Logger
	allowed    map[string]bool
	searchExts map[string]bool
	codeExts   map[string]bool
}

func New(opts Options) (*Reconciler, error) {
	if strings.TrimSpace(opts.BotUserID) == "" {
		return nil, fmt.Errorf("bot user id is required")
	}
	if opts.Driver == nil {
		return nil, fmt.Errorf("driver is required")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if opts.Uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if opts.ThreadInfo == nil || opts.StarterRecord == nil || opts.LastMessage == nil {
		return nil, fmt.Errorf("thread lookups are required")
	}
	if opts.SendChunk == nil || opts.SendNotice == nil {
		return nil, fmt.Errorf("send funcs are required")
	}
	if opts.FetchAttachment == nil {
		return nil, fmt.Errorf("attachment fetch func is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		opts:       opts,
		logger:     logger,
		allowed:    toSet(opts.AllowedGuildIDs),
		searchExts: toSet(opts.SearchExtensions),
		codeExts:   toSet(opts.CodeInterpreterExtensions),
	}, nil
}

// HandleMessage applies the eligibility checks in order, short-circuiting on
// the first failure, then drives a run and delivers the reply unless a newer
// human message made it stale. It never returns an error: everything past the
// eligibility gate is logged and swallowed so the event handler cannot take
// down the gateway loop.
func (r *Reconciler) HandleMessage(ctx context.Context, msg InboundMessage) {
	if msg.GuildID == "" {
		// DMs are not supported.
		r.logger.Info("relay_dm_ignored", "author_id", msg.AuthorID)
		return
	}
	if len(r.allowed) > 0 && !r.allowed[msg.GuildID] {
		r.logger.Info("relay_guild_blocked", "guild_id", msg.GuildID)
		return
	}
	if msg.AuthorID == r.opts.BotUserID {
		return
	}

	thread, err := r.opts.ThreadInfo(ctx, msg.ChannelID)
	if err != nil {
		r.logger.Warn("relay_thread_lookup_error", "channel_id", msg.ChannelID, "error", err.Error())
		return
	}
	if thread == nil {
		return
	}
	if thread.OwnerID != r.opts.BotUserID {
		return
	}
	if thread.Archived || thread.Locked || !strings.HasPrefix(thread.Name, ActiveChatThreadPrefix) {
		return
	}

	correlationID := "relay_" + uuid.NewString()
	r.logger.Info("relay_message_accepted",
		"correlation_id", correlationID,
		"thread_id", thread.ID,
		"author", msg.AuthorName,
		"content_len", len(msg.Content),
		"attachments", len(msg.Attachments),
	)

	if err := r.reply(ctx, correlationID, thread, msg); err != nil {
		r.logger.Warn("relay_reply_error", "correlation_id", correlationID, "thread_id", thread.ID, "error", err.Error())
	}
}

func (r *Reconciler) reply(ctx context.Context, correlationID string, thread *ThreadInfo, msg InboundMessage) error {
	starter, err := r.opts.StarterRecord(ctx, thread.ID)
	if err != nil {
		return fmt.Errorf("read starter record: %w", err)
	}
	if starter == nil || strings.TrimSpace(starter.RemoteThreadID) == "" {
		return fmt.Errorf("thread %s has no starter record", thread.ID)
	}
	if starter.AssistantID == "" || starter.AssistantID == AssistantNotSelected {
		return r.opts.SendNotice(ctx, thread.ID, "**Invalid response** - assistant not selected", true)
	}

	refs, err := r.uploadAttachments(ctx, correlationID, msg.Attachments)
	if err != nil {
		return err
	}

	if r.opts.Typing != nil {
		stop := r.opts.Typing(ctx, thread.ID)
		defer stop()
	}

	outcome := r.opts.Driver.GenerateResponse(ctx, starter.RemoteThreadID, starter.AssistantID,
		assistant.NewUserMessage(starter.RemoteThreadID, msg.AuthorName, msg.Content, refs))

	stale, err := r.isStale(ctx, thread.ID, msg.MessageID)
	if err != nil {
		return fmt.Errorf("staleness check: %w", err)
	}
	if stale {
		// Another human message superseded this one while the run was in
		// flight; its own handler will answer.
		r.logger.Info("relay_reply_stale", "correlation_id", correlationID, "thread_id", thread.ID)
		return nil
	}

	if outcome.Status != assistant.StatusOK {
		return r.opts.SendNotice(ctx, thread.ID, "**Error** - "+outcome.StatusText, true)
	}
	if outcome.Message == nil {
		text := outcome.StatusText
		if text == "" {
			text = "empty response"
		}
		return r.opts.SendNotice(ctx, thread.ID, "**Invalid response** - "+text, true)
	}

	chunks, err := r.opts.Renderer.Render(ctx, outcome.Message)
	if err != nil {
		return fmt.Errorf("render response: %w", err)
	}
	for _, chunk := range chunks {
		if err := r.opts.SendChunk(ctx, thread.ID, chunk); err != nil {
			return fmt.Errorf("send chunk: %w", err)
		}
	}
	r.logger.Info("relay_reply_sent", "correlation_id", correlationID, "thread_id", thread.ID, "chunks", len(chunks))
	return nil
}

// isStale reports whether a different, non-bot message arrived after the
// triggering one. This is the optimistic-concurrency guard: concurrent runs
// may both start, but only the reply to the newest human message is
// delivered.
func (r *Reconciler) isStale(ctx context.Context, threadID, triggerMessageID string) (bool, error) {
	last, err := r.opts.LastMessage(ctx, threadID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	return last.MessageID != triggerMessageID && last.AuthorID != r.opts.BotUserID, nil
}

func (r *Reconciler) uploadAttachments(ctx context.Context, correlationID string, atts []Attachment) ([]assistant.AttachmentRef, error) {
	var refs []assistant.AttachmentRef
	for _, att := range atts {
		tools := r.toolsForFile(att.Filename)
		if len(tools) == 0 {
			r.logger.Info("relay_attachment_skipped", "correlation_id", correlationID, "filename", att.Filename)
			continue
		}
		data, err := r.opts.FetchAttachment(ctx, att)
		if err != nil {
			return nil, fmt.Errorf("fetch attachment %s: %w", att.Filename, err)
		}
		fileID, err := r.opts.Uploader.UploadFile(ctx, att.Filename, data)
		if err != nil {
			return nil, fmt.Errorf("upload attachment %s: %w", att.Filename, err)
		}
		refs = append(refs, assistant.AttachmentRef{FileID: fileID, Tools: tools})
	}
	return refs, nil
}

// toolsForFile matches the filename extension against both allowlists; a file
// may qualify for either or both capabilities.
func (r *Reconciler) toolsForFile(filename string) []assistant.ToolType {
	ext := strings.ToLower(path.Ext(filename))
	var tools []assistant.ToolType
	if r.searchExts[ext] {
		tools = append(tools, assistant.ToolFileSearch)
	}
	if r.codeExts[ext] {
		tools = append(tools, assistant.ToolCodeInterpreter)
	}
	return tools
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}
