package internal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// DefaultRequestTimeout bounds a single provider request
const DefaultRequestTimeout = 2 * time.Minute

// VideoVerification reports whether the model looked at the intended video
type VideoVerification struct {
	IsMatch      bool   `json:"is_match"`
	FoundTitle   string `json:"found_title"`
	FoundChannel string `json:"found_channel"`
}

// VideoInsights is the model's description of a video
type VideoInsights struct {
	Summary     string `json:"summary"`
	VisualStyle string `json:"visualStyle"`
	ContentTone string `json:"contentTone"`
	Transcript  string `json:"transcript"`
}

// VideoAnalysis is the structured reply of a video analysis
type VideoAnalysis struct {
	Verification VideoVerification `json:"verification"`
	Analysis     VideoInsights     `json:"analysis"`
}

// ParseVideoAnalysis decodes a model reply. Anything that is not the
// expected JSON object yields ErrInvalidResponse.
func ParseVideoAnalysis(reply string) (*VideoAnalysis, error) {
	var out VideoAnalysis
	raw := stripFences(reply)
	if !strings.HasPrefix(raw, "{") {
		return nil, ErrInvalidResponse
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &out, nil
}

// AssistantOption configures an Assistant
type AssistantOption func(*Assistant)

// WithGeneratorFactory replaces how provider clients are created
func WithGeneratorFactory(f GeneratorFactory) AssistantOption {
	return func(a *Assistant) { a.factory = f }
}

// WithRequestTimeout bounds each provider request
func WithRequestTimeout(d time.Duration) AssistantOption {
	return func(a *Assistant) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithAssistantLogger sets the logger
func WithAssistantLogger(l zerolog.Logger) AssistantOption {
	return func(a *Assistant) { a.logger = componentLogger(l, ComponentAI) }
}

// WithAssistantMetrics sets the metrics sink
func WithAssistantMetrics(m Metrics) AssistantOption {
	return func(a *Assistant) {
		if m != nil {
			a.metrics = m
		}
	}
}

// Assistant runs chat, video analysis and competitive reports against the
// provider selected in Settings
type Assistant struct {
	factory GeneratorFactory
	prompts *PromptManager
	timeout time.Duration
	logger  zerolog.Logger
	metrics Metrics
}

// NewAssistant creates an assistant rendering prompts from pm
func NewAssistant(pm *PromptManager, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		factory: NewGenerator,
		prompts: pm,
		timeout: DefaultRequestTimeout,
		logger:  zerolog.Nop(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func providerLabel(p ProviderName) string {
	if p == ProviderOpenAI {
		return "OpenAI"
	}
	return "Gemini"
}

func (a *Assistant) generate(ctx context.Context, settings Settings, req GenerateRequest) (string, error) {
	settings = settings.Normalize()
	keys := settings.ProviderKeys()
	if len(ParseKeys(keys)) == 0 {
		return "", &MissingCredentialError{Service: providerLabel(settings.Provider)}
	}
	if req.Model == "" {
		req.Model = settings.Model
	}

	start := time.Now()
	reply, err := WithKeys(a.logger.WithContext(ctx), keys, func(ctx context.Context, key string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.factory(settings.Provider, key).Generate(ctx, req)
	}, keyObserver(a.metrics, string(settings.Provider)))
	if err != nil {
		a.logger.Error().Err(err).Str("provider", string(settings.Provider)).Msg("generation failed")
		return "", err
	}
	a.logger.Debug().
		Str("provider", string(settings.Provider)).
		Str("model", req.Model).
		Dur("elapsed", time.Since(start)).
		Int("chars", len(reply)).
		Msg("generated reply")
	return reply, nil
}

// Chat answers question about the session's channel, continuing its chat history
func (a *Assistant) Chat(ctx context.Context, settings Settings, session Session, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is empty")
	}
	videos := session.Videos
	if len(videos) > maxPromptVideos {
		videos = videos[:maxPromptVideos]
	}
	system, err := a.prompts.Render(PromptChat, ChatPromptData{
		Channel: session.Channel,
		Stats:   ComputeStats(session.Videos, 10),
		Videos:  videos,
	})
	if err != nil {
		return "", err
	}
	reply, err := a.generate(ctx, settings, GenerateRequest{
		System:  system,
		Prompt:  question,
		History: session.ChatHistory,
	})
	if err != nil {
		return "", fmt.Errorf("chatting about %s: %w", session.Channel.Title, err)
	}
	return strings.TrimSpace(reply), nil
}

// AnalyzeVideo asks the provider to verify and describe one video
func (a *Assistant) AnalyzeVideo(ctx context.Context, settings Settings, channel ChannelInfo, video Video) (*VideoAnalysis, error) {
	prompt, err := a.prompts.Render(PromptAnalyze, AnalyzePromptData{
		URL:     video.URL(),
		Video:   video,
		Channel: channel,
	})
	if err != nil {
		return nil, err
	}
	reply, err := a.generate(ctx, settings, GenerateRequest{Prompt: prompt, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("analyzing video %s: %w", video.ID, err)
	}
	analysis, err := ParseVideoAnalysis(reply)
	if err != nil {
		a.logger.Warn().Str("video", video.ID).Str("reply", Truncate(reply, 500)).Msg("undecodable analysis reply")
		return nil, err
	}
	return analysis, nil
}

// CompetitiveReport writes a markdown comparison of the given sessions
func (a *Assistant) CompetitiveReport(ctx context.Context, settings Settings, sessions []Session) (string, error) {
	if len(sessions) == 0 {
		return "", fmt.Errorf("no channels to compare")
	}
	data := ReportPromptData{Channels: make([]ReportChannel, 0, len(sessions))}
	for _, s := range sessions {
		data.Channels = append(data.Channels, ReportChannel{
			Channel: s.Channel,
			Stats:   ComputeStats(s.Videos, 10),
		})
	}
	prompt, err := a.prompts.Render(PromptReport, data)
	if err != nil {
		return "", err
	}
	reply, err := a.generate(ctx, settings, GenerateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("generating competitive report: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
