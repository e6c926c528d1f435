package assistant

import (
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunFailed         RunStatus = "failed"
)

// Terminal reports whether the run has stopped advancing. A terminal run is
// never resumed; a new run is created per incoming message.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunCancelled, RunExpired, RunFailed:
		return true
	default:
		return false
	}
}

type Run struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Status      RunStatus `json:"status"`
}

type Thread struct {
	ID string `json:"id"`
}

type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
}

// ToolType names a capability an uploaded file is attached for.
type ToolType string

const (
	ToolFileSearch      ToolType = "file_search"
	ToolCodeInterpreter ToolType = "code_interpreter"
)

// AttachmentRef binds an uploaded file to the tools that may consume it.
type AttachmentRef struct {
	FileID string     `json:"file_id"`
	Tools  []ToolType `json:"-"`
}

func (a AttachmentRef) MarshalJSON() ([]byte, error) {
	type toolRef struct {
		Type ToolType `json:"type"`
	}
	tools := make([]toolRef, 0, len(a.Tools))
	for _, t := range a.Tools {
		tools = append(tools, toolRef{Type: t})
	}
	return json.Marshal(struct {
		FileID string    `json:"file_id"`
		Tools  []toolRef `json:"tools,omitempty"`
	}{FileID: a.FileID, Tools: tools})
}

// MessageCreate is the single-message payload appended to a remote thread
// before a run is started.
type MessageCreate struct {
	ThreadID    string
	Role        Role
	Content     string
	Attachments []AttachmentRef
}

// NewUserMessage formats a platform message for the remote thread, prefixing
// the author name so multi-user threads stay attributable.
func NewUserMessage(threadID, authorName, content string, attachments []AttachmentRef) MessageCreate {
	return MessageCreate{
		ThreadID:    threadID,
		Role:        RoleUser,
		Content:     fmt.Sprintf("%s: %s", authorName, content),
		Attachments: attachments,
	}
}

// Message is a remote thread message: an ordered sequence of typed content
// parts. Immutable once fetched.
type Message struct {
	ID        string
	ThreadID  string
	Role      Role
	RunID     string
	Content   []ContentPart
	CreatedAt int64
}

// ContentPart is a closed variant over the content kinds the service emits.
// Unrecognized kinds decode to UnknownPart so a single odd segment cannot
// poison the rest of the message.
type ContentPart interface {
	isContentPart()
}

type TextPart struct {
	Value       string
	Annotations []Annotation
}

type ImagePart struct {
	FileID string
}

type UnknownPart struct {
	Type string
}

func (TextPart) isContentPart()    {}
func (ImagePart) isContentPart()   {}
func (UnknownPart) isContentPart() {}

// Annotation is a closed variant over text-part annotations.
type Annotation interface {
	isAnnotation()
}

// FilePathAnnotation marks a span of the text that references a file the
// remote tools produced (for example a code-interpreter output path).
type FilePathAnnotation struct {
	Text   string
	FileID string
}

type UnknownAnnotation struct {
	Type string
}

func (FilePathAnnotation) isAnnotation() {}
func (UnknownAnnotation) isAnnotation()  {}

type wireMessage struct {
	ID        string            `json:"id"`
	ThreadID  string            `json:"thread_id"`
	Role      Role              `json:"role"`
	RunID     string            `json:"run_id"`
	CreatedAt int64             `json:"created_at"`
	Content   []json.RawMessage `json:"content"`
}

type wireAnnotation struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	FilePath struct {
		FileID string `json:"file_id"`
	} `json:"file_path"`
}

type wireContentPart struct {
	Type string `json:"type"`
	Text struct {
		Value       string           `json:"value"`
		Annotations []wireAnnotation `json:"annotations"`
	} `json:"text"`
	ImageFile struct {
		FileID string `json:"file_id"`
	} `json:"image_file"`
}

func (m *Message) UnmarshalJSON(raw []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	out := Message{
		ID:        wire.ID,
		ThreadID:  wire.ThreadID,
		Role:      wire.Role,
		RunID:     wire.RunID,
		CreatedAt: wire.CreatedAt,
	}
	for _, rawPart := range wire.Content {
		part, err := decodeContentPart(rawPart)
		if err != nil {
			return err
		}
		out.Content = append(out.Content, part)
	}
	*m = out
	return nil
}

func decodeContentPart(raw json.RawMessage) (ContentPart, error) {
	var wire wireContentPart
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode content part: %w", err)
	}
	switch wire.Type {
	case "text":
		part := TextPart{Value: wire.Text.Value}
		for _, ann := range wire.Text.Annotations {
			part.Annotations = append(part.Annotations, decodeAnnotation(ann))
		}
		return part, nil
	case "image_file":
		return ImagePart{FileID: wire.ImageFile.FileID}, nil
	default:
		return UnknownPart{Type: wire.Type}, nil
	}
}

func decodeAnnotation(wire wireAnnotation) Annotation {
	switch wire.Type {
	case "file_path":
		return FilePathAnnotation{Text: wire.Text, FileID: wire.FilePath.FileID}
	default:
		return UnknownAnnotation{Type: wire.Type}
	}
}

// Assistant is a remote assistant definition, managed by the build commands.
type Assistant struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Model        string   `json:"model"`
	Instructions string   `json:"instructions"`
	Tools        []Tool   `json:"tools"`
	FileIDs      []string `json:"file_ids,omitempty"`
}

type Tool struct {
	Type ToolType `json:"type"`
}
