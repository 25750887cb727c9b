package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/manga-translator/internal/language"
)

type fakeBackend struct {
	reply  string
	err    error
	calls  int
	system string
	user   string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.system = system
	f.user = user
	return f.reply, f.err
}

func (f *fakeBackend) Close() error { return nil }

func TestTranslateEmptyInputSkipsModel(t *testing.T) {
	backend := &fakeBackend{}
	tr := New(backend, Config{TargetLang: "vi"})

	out, err := tr.Translate(context.Background(), nil, language.Resolve("jp"))
	require.NoError(t, err)
	assert.Empty(t, out.Lines)
	assert.Equal(t, 0, backend.calls)
}

func TestTranslateJSONReply(t *testing.T) {
	backend := &fakeBackend{reply: "```json\n[\"Cái gì?!\", \"Chạy đi!\"]\n```"}
	tr := New(backend, Config{TargetLang: "vi"})

	out, err := tr.Translate(context.Background(), []string{"なんだと!?", "逃げろ!"}, language.Resolve("jp"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Cái gì?!", "Chạy đi!"}, out.Lines)
	assert.True(t, out.Alignment.Aligned())
	assert.Equal(t, ProtocolJSON, out.Alignment.Protocol)
	assert.Equal(t, 1, backend.calls)
	assert.Contains(t, backend.system, "Japanese")
	assert.Contains(t, backend.system, "Vietnamese")
	assert.Contains(t, backend.user, `["なんだと!?","逃げろ!"]`)
}

func TestTranslateMismatchIsPaddedAndReported(t *testing.T) {
	backend := &fakeBackend{reply: "Hello\nGoodbye"}
	tr := New(backend, Config{TargetLang: "en"})

	out, err := tr.Translate(context.Background(), []string{"a", "b", "c"}, language.Resolve("jp"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", "Goodbye", Placeholder}, out.Lines)
	assert.Equal(t, Alignment{Expected: 3, Received: 2, Padded: 1, Protocol: ProtocolLines}, out.Alignment)
}

func TestTranslatePlainReplyStartingWithNumber(t *testing.T) {
	backend := &fakeBackend{reply: "Chào cậu\n5... năm rồi đấy"}
	tr := New(backend, Config{TargetLang: "vi"})

	out, err := tr.Translate(context.Background(), []string{"やあ", "5年ぶりだな"}, language.Resolve("jp"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Chào cậu", "5... năm rồi đấy"}, out.Lines)
	assert.Equal(t, ProtocolLines, out.Alignment.Protocol)
	assert.True(t, out.Alignment.Aligned())
}

func TestTranslateBackendError(t *testing.T) {
	boom := errors.New("quota exceeded")
	tr := New(&fakeBackend{err: boom}, Config{})

	_, err := tr.Translate(context.Background(), []string{"x"}, language.Resolve("en"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected int
		want     []string
		protocol string
	}{
		{"json array", `["a", "b"]`, 2, []string{"a", "b"}, ProtocolJSON},
		{"json with prose", "Here you go:\n[\"a\", \"b\"]\nEnjoy", 2, []string{"a", "b"}, ProtocolJSON},
		{"json object", `{"translations": ["a", "b"]}`, 2, []string{"a", "b"}, ProtocolJSON},
		{"numbered dots", "1. a\n2. b", 2, []string{"a", "b"}, ProtocolNumbered},
		{"numbered brackets", "[1] a\n[2] b\n[3] c", 3, []string{"a", "b", "c"}, ProtocolNumbered},
		{"numbered out of order", "2) b\n1) a", 2, []string{"a", "b"}, ProtocolNumbered},
		{"numbered gap", "1. a\n3. c", 3, []string{"a", "", "c"}, ProtocolNumbered},
		{"numbered continuation", "1. first part\nsecond part\n2. b", 2, []string{"first part second part", "b"}, ProtocolNumbered},
		{"numbered fullwidth colon", "1：a\n2：b", 2, []string{"a", "b"}, ProtocolNumbered},
		{"plain lines", "a\n\n b \nc", 3, []string{"a", "b", "c"}, ProtocolLines},
		{"plain line with ellipsis number", "Chào cậu\n5... năm rồi đấy", 2, []string{"Chào cậu", "5... năm rồi đấy"}, ProtocolLines},
		{"plain line with clock time", "10:30 rồi\nĐi thôi", 2, []string{"10:30 rồi", "Đi thôi"}, ProtocolLines},
		{"plain line with thousands", "1.000 yên\nĐắt quá", 2, []string{"1.000 yên", "Đắt quá"}, ProtocolLines},
		{"number mid reply", "Chào\n2) ok", 2, []string{"Chào", "2) ok"}, ProtocolLines},
		{"index beyond bound", "Chào\n300000000. x", 2, []string{"Chào", "300000000. x"}, ProtocolLines},
		{"large leading index", "300. x\n1. y", 2, []string{"300. x", "1. y"}, ProtocolLines},
		{"sparse indexes", "1. a\n5. b", 5, []string{"1. a", "5. b"}, ProtocolLines},
		{"duplicate index", "1. a\n1. b", 2, []string{"1. a", "1. b"}, ProtocolLines},
		{"empty", "   ", 1, nil, ProtocolNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, protocol := ParseResponse(tt.raw, tt.expected)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.protocol, protocol)
		})
	}
}

func TestAlign(t *testing.T) {
	out, a := Align([]string{"a", "b", "c", "d"}, 2)
	assert.Equal(t, []string{"a", "b"}, out)
	assert.Equal(t, 2, a.Truncated)
	assert.Equal(t, 0, a.Padded)

	out, a = Align([]string{"a", " "}, 3)
	assert.Equal(t, []string{"a", Placeholder, Placeholder}, out)
	assert.Equal(t, 1, a.Padded)
	assert.False(t, a.Aligned())

	out, a = Align(nil, 0)
	assert.Empty(t, out)
	assert.True(t, a.Aligned())
}

func TestAlignLengthProperty(t *testing.T) {
	for expected := 0; expected < 6; expected++ {
		for received := 0; received < 8; received++ {
			lines := make([]string, received)
			for i := range lines {
				lines[i] = strings.Repeat("x", i+1)
			}
			out, _ := Align(lines, expected)
			assert.Len(t, out, expected)
			for _, l := range out {
				assert.NotEmpty(t, l)
			}
		}
	}
}

func TestOpenAIBackendAgainstCompatibleServer(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "qwen2.5-7b-instruct",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "[\"Xin chào\"]"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`))
	}))
	defer srv.Close()

	backend, err := NewOpenAIBackend(context.Background(), OpenAIConfig{
		BaseURL:     srv.URL + "/v1",
		Model:       "qwen2.5-7b-instruct",
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	require.NoError(t, err)

	tr := New(backend, Config{TargetLang: "vi"})
	out, err := tr.Translate(context.Background(), []string{"こんにちは"}, language.Resolve("jp"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Xin chào"}, out.Lines)
	assert.Equal(t, "qwen2.5-7b-instruct", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestNewGeminiBackendRequiresKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), GeminiConfig{APIKey: "  "})
	assert.Error(t, err)
}
