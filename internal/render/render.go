// Package render turns a remote assistant message into the ordered outbound
// chunks actually sent to the platform.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/KeioAIConsortium/gpt-discord-bot/internal/assistant"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/mathspan"
	"github.com/KeioAIConsortium/gpt-discord-bot/internal/splitter"
)

// File is a binary attachment ready for transmission.
type File struct {
	Name string
	Data []byte
}

// Chunk is one platform message unit: a text body within the platform limit
// plus any attachments that must travel with it.
type Chunk struct {
	Text  string
	Files []File
}

// FileFetcher fetches the raw bytes of a remote file. *assistant.Client
// implements it.
type FileFetcher interface {
	FileContent(ctx context.Context, fileID string) ([]byte, error)
}

type Options struct {
	Fetcher    FileFetcher
	Rasterizer mathspan.Rasterizer
	Logger     *slog.Logger

	// InlineMath also renders \( ... \) spans as images.
	InlineMath bool

	// Limit is the per-chunk character budget; Fence the code-fence marker.
	Limit int
	Fence string
}

type Renderer struct {
	fetcher    FileFetcher
	rasterizer mathspan.Rasterizer
	extractor  *mathspan.Extractor
	logger     *slog.Logger
	limit      int
	fence      string
}

func New(opts Options) (*Renderer, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("file fetcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = splitter.DefaultLimit
	}
	fence := opts.Fence
	if fence == "" {
		fence = splitter.DefaultFence
	}
	return &Renderer{
		fetcher:    opts.Fetcher,
		rasterizer: opts.Rasterizer,
		extractor:  &mathspan.Extractor{InlineMath: opts.InlineMath},
		logger:     logger,
		limit:      limit,
		fence:      fence,
	}, nil
}

// Render converts msg's content parts, in order, into outbound chunks. Text
// parts are expanded through the formula extractor; formula images and image
// parts attach to the chunk being accumulated; annotations render after their
// text in service order. Unrecognized parts are skipped and logged. Finally
// every chunk's text goes through the splitter, with attachments carried only
// on the last piece of a split group.
func (r *Renderer) Render(ctx context.Context, msg *assistant.Message) ([]Chunk, error) {
	if r == nil {
		return nil, fmt.Errorf("renderer is not initialized")
	}
	if msg == nil {
		return nil, fmt.Errorf("message is required")
	}

	var chunks []Chunk
	appendText := func(text string) {
		chunks = append(chunks, Chunk{Text: text})
	}
	attach := func(f File) {
		if len(chunks) == 0 {
			chunks = append(chunks, Chunk{})
		}
		last := &chunks[len(chunks)-1]
		last.Files = append(last.Files, f)
	}

	formulaCount := 0
	for _, part := range msg.Content {
		switch p := part.(type) {
		case assistant.TextPart:
			for _, seg := range r.extractor.Extract(p.Value) {
				switch seg.Kind {
				case mathspan.KindText:
					appendText(seg.Text)
				case mathspan.KindFormula:
					img, err := r.rasterize(ctx, seg.Formula)
					if err != nil {
						// Keep the reply alive: fall back to the raw formula.
						r.logger.Warn("formula_render_error", "message_id", msg.ID, "error", err.Error())
						appendText(seg.Formula)
						continue
					}
					formulaCount++
					attach(File{Name: fmt.Sprintf("formula_%d.png", formulaCount), Data: img})
				}
			}
			for _, ann := range p.Annotations {
				switch a := ann.(type) {
				case assistant.FilePathAnnotation:
					data, err := r.fetcher.FileContent(ctx, a.FileID)
					if err != nil {
						return nil, fmt.Errorf("fetch annotation file %s: %w", a.FileID, err)
					}
					attach(File{Name: annotationFilename(a.Text, a.FileID), Data: data})
				default:
					r.logger.Warn("annotation_skipped", "message_id", msg.ID, "annotation_type", fmt.Sprintf("%T", ann))
				}
			}
		case assistant.ImagePart:
			data, err := r.fetcher.FileContent(ctx, p.FileID)
			if err != nil {
				return nil, fmt.Errorf("fetch image file %s: %w", p.FileID, err)
			}
			attach(File{Name: p.FileID + ".png", Data: data})
		case assistant.UnknownPart:
			r.logger.Warn("content_part_skipped", "message_id", msg.ID, "part_type", p.Type)
		default:
			r.logger.Warn("content_part_skipped", "message_id", msg.ID, "part_type", fmt.Sprintf("%T", part))
		}
	}

	var out []Chunk
	for _, c := range chunks {
		pieces := splitter.Split(c.Text, r.limit, r.fence)
		if len(pieces) == 0 {
			if len(c.Files) > 0 {
				out = append(out, Chunk{Files: c.Files})
			}
			continue
		}
		for i, piece := range pieces {
			next := Chunk{Text: piece}
			if i == len(pieces)-1 {
				next.Files = c.Files
			}
			out = append(out, next)
		}
	}
	return out, nil
}

func (r *Renderer) rasterize(ctx context.Context, formula string) ([]byte, error) {
	if r.rasterizer == nil {
		return nil, fmt.Errorf("no rasterizer configured")
	}
	return r.rasterizer.Render(ctx, formula)
}

// annotationFilename derives an attachment name from a file-path annotation
// like "sandbox:/mnt/data/plot.png".
func annotationFilename(text, fileID string) string {
	name := path.Base(strings.TrimSpace(text))
	if name == "" || name == "." || name == "/" {
		return fileID
	}
	return name
}
