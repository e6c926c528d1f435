package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestListMessagesDecodesContentVariants(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/th_1/messages" {
			t.Errorf("path mismatch: got %q", r.URL.Path)
		}
		if got := r.Header.Get("OpenAI-Beta"); got != "assistants=v2" {
			t.Errorf("beta header mismatch: got %q", got)
		}
		_, _ = io.WriteString(w, `{"data":[{
			"id":"msg_1","thread_id":"th_1","role":"assistant","content":[
				{"type":"text","text":{"value":"see the plot","annotations":[
					{"type":"file_path","text":"sandbox:/mnt/data/plot.png","file_path":{"file_id":"file-abc"}},
					{"type":"shiny_new_kind","text":"x"}
				]}},
				{"type":"image_file","image_file":{"file_id":"file-img"}},
				{"type":"video_file","video_file":{"file_id":"file-vid"}}
			]}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", time.Second)
	msgs, err := c.ListMessages(context.Background(), "th_1", 1)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages mismatch: got %d want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.Role != RoleAssistant {
		t.Fatalf("role mismatch: got %q", msg.Role)
	}
	if len(msg.Content) != 3 {
		t.Fatalf("content parts mismatch: got %d want 3", len(msg.Content))
	}

	text, ok := msg.Content[0].(TextPart)
	if !ok {
		t.Fatalf("part 0 type mismatch: got %T", msg.Content[0])
	}
	if text.Value != "see the plot" {
		t.Fatalf("text value mismatch: got %q", text.Value)
	}
	if len(text.Annotations) != 2 {
		t.Fatalf("annotations mismatch: got %d want 2", len(text.Annotations))
	}
	ann, ok := text.Annotations[0].(FilePathAnnotation)
	if !ok {
		t.Fatalf("annotation 0 type mismatch: got %T", text.Annotations[0])
	}
	if ann.FileID != "file-abc" || ann.Text != "sandbox:/mnt/data/plot.png" {
		t.Fatalf("annotation mismatch: %+v", ann)
	}
	if _, ok := text.Annotations[1].(UnknownAnnotation); !ok {
		t.Fatalf("annotation 1 type mismatch: got %T", text.Annotations[1])
	}

	img, ok := msg.Content[1].(ImagePart)
	if !ok {
		t.Fatalf("part 1 type mismatch: got %T", msg.Content[1])
	}
	if img.FileID != "file-img" {
		t.Fatalf("image file id mismatch: got %q", img.FileID)
	}

	unknown, ok := msg.Content[2].(UnknownPart)
	if !ok {
		t.Fatalf("part 2 type mismatch: got %T", msg.Content[2])
	}
	if unknown.Type != "video_file" {
		t.Fatalf("unknown type mismatch: got %q", unknown.Type)
	}
}

func TestCreateMessageSendsAttachmentTools(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("body decode error: %v", err)
		}
		_, _ = io.WriteString(w, `{"id":"msg_2","thread_id":"th_1","role":"user","content":[]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", time.Second)
	_, err := c.CreateMessage(context.Background(), MessageCreate{
		ThreadID: "th_1",
		Content:  "bob: check this file",
		Attachments: []AttachmentRef{
			{FileID: "file-1", Tools: []ToolType{ToolFileSearch, ToolCodeInterpreter}},
		},
	})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	atts, ok := gotBody["attachments"].([]any)
	if !ok || len(atts) != 1 {
		t.Fatalf("attachments mismatch: %+v", gotBody["attachments"])
	}
	att := atts[0].(map[string]any)
	if att["file_id"] != "file-1" {
		t.Fatalf("file_id mismatch: %+v", att)
	}
	tools, ok := att["tools"].([]any)
	if !ok || len(tools) != 2 {
		t.Fatalf("tools mismatch: %+v", att["tools"])
	}
	if tools[0].(map[string]any)["type"] != "file_search" {
		t.Fatalf("tool 0 mismatch: %+v", tools[0])
	}
}

func TestUploadFileMultipart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/files" {
			t.Errorf("path mismatch: got %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
		}
		if got := r.FormValue("purpose"); got != "assistants" {
			t.Errorf("purpose mismatch: got %q", got)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
		} else {
			defer f.Close()
			if header.Filename != "notes.txt" {
				t.Errorf("filename mismatch: got %q", header.Filename)
			}
			raw, _ := io.ReadAll(f)
			if string(raw) != "file body" {
				t.Errorf("file body mismatch: got %q", raw)
			}
		}
		_, _ = io.WriteString(w, `{"id":"file-9","filename":"notes.txt","bytes":9}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", time.Second)
	id, err := c.UploadFile(context.Background(), "notes.txt", []byte("file body"))
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if id != "file-9" {
		t.Fatalf("file id mismatch: got %q", id)
	}
}

func TestClientSurfacesAPIErrorMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"No thread found","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", time.Second)
	_, err := c.GetRun(context.Background(), "th_missing", "run_1")
	if err == nil {
		t.Fatalf("GetRun() expected error")
	}
	if !strings.Contains(err.Error(), "No thread found") {
		t.Fatalf("error mismatch: got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("error missing status: got %q", err.Error())
	}
}
