package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerators hands out generators that answer per API key
type fakeGenerators struct {
	mu       sync.Mutex
	replies  map[string]string
	failures map[string]error
	requests []GenerateRequest
	calls    []string
}

func (f *fakeGenerators) factory(provider ProviderName, key string) TextGenerator {
	return fakeGenerator{f: f, provider: provider, key: key}
}

type fakeGenerator struct {
	f        *fakeGenerators
	provider ProviderName
	key      string
}

func (g fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	g.f.requests = append(g.f.requests, req)
	g.f.calls = append(g.f.calls, string(g.provider)+":"+g.key)
	if err, ok := g.f.failures[g.key]; ok {
		return "", err
	}
	return g.f.replies[g.key], nil
}

func newTestAssistant(t *testing.T, gens *fakeGenerators) *Assistant {
	t.Helper()
	return NewAssistant(NewPromptManager(t.TempDir()), WithGeneratorFactory(gens.factory))
}

const validAnalysis = `{"verification":{"is_match":true,"found_title":"T","found_channel":"C"},
"analysis":{"summary":"S","visualStyle":"V","contentTone":"Tone","transcript":"X"}}`

func TestParseVideoAnalysis(t *testing.T) {
	a, err := ParseVideoAnalysis(validAnalysis)
	require.NoError(t, err)
	assert.True(t, a.Verification.IsMatch)
	assert.Equal(t, "C", a.Verification.FoundChannel)
	assert.Equal(t, "V", a.Analysis.VisualStyle)

	a, err = ParseVideoAnalysis("```json\n" + validAnalysis + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "S", a.Analysis.Summary)

	for _, reply := range []string{"", "Sure! Here is the analysis", `{"verification": `, "[1,2]"} {
		_, err := ParseVideoAnalysis(reply)
		assert.ErrorIs(t, err, ErrInvalidResponse, "reply %q", reply)
	}
}

func TestAssistant_ChatSendsContextAndHistory(t *testing.T) {
	gens := &fakeGenerators{replies: map[string]string{"g1": "  Long videos win.  "}}
	a := newTestAssistant(t, gens)

	session := testSession("a", t0, testVideo(1, 500))
	session.ChatHistory = []ChatMessage{
		{Role: RoleUser, Content: "first question"},
		{Role: RoleAssistant, Content: "first answer"},
	}
	settings := Settings{Provider: ProviderGemini, GeminiKeys: "g1"}

	reply, err := a.Chat(context.Background(), settings, session, " What works? ")
	require.NoError(t, err)
	assert.Equal(t, "Long videos win.", reply)

	require.Len(t, gens.requests, 1)
	req := gens.requests[0]
	assert.Equal(t, "What works?", req.Prompt)
	assert.Equal(t, DefaultModel(ProviderGemini), req.Model)
	assert.Contains(t, req.System, `"Channel a"`)
	assert.Contains(t, req.System, "Video number 1")
	assert.Len(t, req.History, 2)
	assert.False(t, req.JSON)
}

func TestAssistant_ChatRejectsEmptyQuestion(t *testing.T) {
	a := newTestAssistant(t, &fakeGenerators{})
	_, err := a.Chat(context.Background(), Settings{GeminiKeys: "k"}, testSession("a", t0), "   ")
	assert.Error(t, err)
}

func TestAssistant_MissingProviderKey(t *testing.T) {
	gens := &fakeGenerators{}
	a := newTestAssistant(t, gens)

	_, err := a.Chat(context.Background(), Settings{Provider: ProviderOpenAI, GeminiKeys: "g"}, testSession("a", t0), "q")
	var missing *MissingCredentialError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "OpenAI", missing.Service)
	assert.Empty(t, gens.calls)
}

func TestAssistant_RotatesProviderKeys(t *testing.T) {
	gens := &fakeGenerators{
		replies:  map[string]string{"o2": "answer"},
		failures: map[string]error{"o1": errors.New("401 invalid key")},
	}
	a := newTestAssistant(t, gens)

	reply, err := a.Chat(context.Background(), Settings{Provider: ProviderOpenAI, OpenAIKeys: "o1\no2"}, testSession("a", t0), "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", reply)
	assert.Equal(t, []string{"openai:o1", "openai:o2"}, gens.calls)
}

func TestAssistant_AnalyzeVideo(t *testing.T) {
	gens := &fakeGenerators{replies: map[string]string{"k": validAnalysis}}
	a := newTestAssistant(t, gens)
	video := testVideo(1, 10)

	out, err := a.AnalyzeVideo(context.Background(), Settings{GeminiKeys: "k"}, ChannelInfo{Title: "Chan"}, video)
	require.NoError(t, err)
	assert.Equal(t, "Tone", out.Analysis.ContentTone)

	req := gens.requests[0]
	assert.True(t, req.JSON)
	assert.Contains(t, req.Prompt, video.URL())
	assert.Contains(t, req.Prompt, `"Chan"`)
}

func TestAssistant_AnalyzeVideoInvalidReply(t *testing.T) {
	gens := &fakeGenerators{replies: map[string]string{"k": "I cannot watch videos."}}
	a := newTestAssistant(t, gens)

	_, err := a.AnalyzeVideo(context.Background(), Settings{GeminiKeys: "k"}, ChannelInfo{}, testVideo(1, 1))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestAssistant_CompetitiveReport(t *testing.T) {
	gens := &fakeGenerators{replies: map[string]string{"k": "# Report"}}
	a := newTestAssistant(t, gens)

	_, err := a.CompetitiveReport(context.Background(), Settings{GeminiKeys: "k"}, nil)
	assert.Error(t, err)

	report, err := a.CompetitiveReport(context.Background(), Settings{GeminiKeys: "k"}, []Session{
		testSession("a", t0, testVideo(1, 100)),
		testSession("b", t0, testVideo(2, 200)),
	})
	require.NoError(t, err)
	assert.Equal(t, "# Report", report)
	prompt := gens.requests[0].Prompt
	assert.Contains(t, prompt, "Compare the following 2 channels")
	assert.Contains(t, prompt, "## Channel a (@a)")
	assert.Contains(t, prompt, "## Channel b (@b)")
}

func TestOpenAIGenerator(t *testing.T) {
	var body map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hi there"}}]}`)
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("sk-test", srv.URL+"/")
	reply, err := g.Generate(context.Background(), GenerateRequest{
		Model:   "gpt-4o-mini",
		System:  "sys",
		Prompt:  "hello",
		History: []ChatMessage{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}},
		JSON:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4o-mini", body["model"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.(map[string]any)["role"].(string)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIGenerator_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAIGenerator("sk-bad", srv.URL+"/").Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	assert.Error(t, err)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}```"))
	assert.Equal(t, "plain", stripFences("  plain "))
}

func TestAssistant_LogsRotatedKeys(t *testing.T) {
	var buf bytes.Buffer
	gens := &fakeGenerators{
		replies:  map[string]string{"g2": "answer"},
		failures: map[string]error{"g1": errors.New("403 key disabled")},
	}
	a := NewAssistant(NewPromptManager(t.TempDir()),
		WithGeneratorFactory(gens.factory),
		WithAssistantLogger(zerolog.New(&buf)),
	)

	_, err := a.Chat(context.Background(), Settings{GeminiKeys: "g1,g2"}, testSession("a", t0), "q")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "API key failed, trying next")
	assert.Contains(t, buf.String(), `"component":"ai"`)
	assert.Contains(t, buf.String(), "403 key disabled")
}
