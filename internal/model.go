package internal

import (
	"strings"
	"time"
)

// Theme is the UI theme stored with the user settings
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// ProviderName selects the text generation backend
type ProviderName string

const (
	ProviderGemini ProviderName = "gemini"
	ProviderOpenAI ProviderName = "openai"
)

var defaultModels = map[ProviderName]string{
	ProviderGemini: "gemini-2.5-flash",
	ProviderOpenAI: "gpt-4o-mini",
}

// DefaultModel returns the model used when none is selected for the provider
func DefaultModel(p ProviderName) string {
	return defaultModels[p]
}

// Settings holds the user's provider credentials and preferences.
// Each key field is a newline or comma separated list of API keys.
type Settings struct {
	Theme       Theme        `json:"theme"`
	Provider    ProviderName `json:"aiProvider"`
	Model       string       `json:"aiModel"`
	YouTubeKeys string       `json:"youtubeApiKey"`
	GeminiKeys  string       `json:"geminiApiKey"`
	OpenAIKeys  string       `json:"openaiApiKey"`
}

// DefaultSettings is the first-run configuration
func DefaultSettings() Settings {
	return Settings{
		Theme:    ThemeSystem,
		Provider: ProviderGemini,
		Model:    DefaultModel(ProviderGemini),
	}
}

// Normalize fills in defaults for unset or unknown enum values
func (s Settings) Normalize() Settings {
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		s.Theme = ThemeSystem
	}
	switch s.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		s.Provider = ProviderGemini
	}
	if strings.TrimSpace(s.Model) == "" {
		s.Model = DefaultModel(s.Provider)
	}
	return s
}

// ProviderKeys returns the key blob for the selected AI provider
func (s Settings) ProviderKeys() string {
	if s.Provider == ProviderOpenAI {
		return s.OpenAIKeys
	}
	return s.GeminiKeys
}

// ChannelInfo is the channel metadata captured with a session
type ChannelInfo struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Handle            string `json:"customUrl,omitempty"`
	Description       string `json:"description,omitempty"`
	Thumbnail         string `json:"thumbnail,omitempty"`
	SubscriberCount   uint64 `json:"subscriberCount"`
	VideoCount        uint64 `json:"videoCount"`
	ViewCount         uint64 `json:"viewCount"`
	UploadsPlaylistID string `json:"uploadsPlaylistId"`
}

// Video is a single entry of a channel's catalog
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PublishedAt  time.Time `json:"publishedAt"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	Duration     string    `json:"duration"`
	ViewCount    uint64    `json:"viewCount"`
	LikeCount    uint64    `json:"likeCount"`
	CommentCount uint64    `json:"commentCount"`
	Tags         []string  `json:"tags,omitempty"`
}

// URL returns the watch URL of the video
func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a session's chat history
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is a saved snapshot of one channel's fetched videos
type Session struct {
	ID            string        `json:"id"`
	SavedAt       time.Time     `json:"savedAt"`
	Channel       ChannelInfo   `json:"channelInfo"`
	Videos        []Video       `json:"videos"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
	ChatHistory   []ChatMessage `json:"chatHistory"`
}

// Clone returns a deep copy of the session
func (s Session) Clone() Session {
	out := s
	if s.Videos != nil {
		out.Videos = make([]Video, len(s.Videos))
		for i, v := range s.Videos {
			out.Videos[i] = v
			if v.Tags != nil {
				out.Videos[i].Tags = append([]string(nil), v.Tags...)
			}
		}
	}
	if s.ChatHistory != nil {
		out.ChatHistory = append([]ChatMessage(nil), s.ChatHistory...)
	}
	return out
}

// AppendVideos adds videos to the session skipping ids already present
func (s *Session) AppendVideos(videos []Video) int {
	seen := make(map[string]struct{}, len(s.Videos))
	for _, v := range s.Videos {
		seen[v.ID] = struct{}{}
	}
	added := 0
	for _, v := range videos {
		if _, ok := seen[v.ID]; ok {
			continue
		}
		seen[v.ID] = struct{}{}
		s.Videos = append(s.Videos, v)
		added++
	}
	return added
}

func cloneSessions(sessions []Session) []Session {
	if sessions == nil {
		return nil
	}
	out := make([]Session, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
	}
	return out
}

// AnalysisState is the state of one competitive analysis request
type AnalysisState struct {
	RunID      string    `json:"runId,omitempty"`
	IsLoading  bool      `json:"isLoading"`
	Error      string    `json:"error,omitempty"`
	Result     string    `json:"result"`
	IsComplete bool      `json:"isComplete"`
	ChannelIDs []string  `json:"channelIds,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// interruptedMessage is recorded when a run was still loading when its process went away
const interruptedMessage = "analysis was interrupted, please run it again"

// Start moves the run to loading under a new run id
func (a AnalysisState) Start(runID string, channelIDs []string, now time.Time) AnalysisState {
	return AnalysisState{
		RunID:      runID,
		IsLoading:  true,
		ChannelIDs: append([]string(nil), channelIDs...),
		UpdatedAt:  now,
	}
}

// Succeed completes the run with a result. It reports false when runID is no longer current.
func (a AnalysisState) Succeed(runID, result string, now time.Time) (AnalysisState, bool) {
	if a.RunID != runID || !a.IsLoading {
		return a, false
	}
	a.IsLoading = false
	a.IsComplete = true
	a.Error = ""
	a.Result = result
	a.UpdatedAt = now
	return a, true
}

// Fail completes the run with an error message. It reports false when runID is no longer current.
func (a AnalysisState) Fail(runID, message string, now time.Time) (AnalysisState, bool) {
	if a.RunID != runID || !a.IsLoading {
		return a, false
	}
	a.IsLoading = false
	a.IsComplete = true
	a.Error = message
	a.Result = ""
	a.UpdatedAt = now
	return a, true
}

// Idle reports whether no run has been started since the last reset
func (a AnalysisState) Idle() bool {
	return !a.IsLoading && !a.IsComplete
}

// restored returns the state as it should look after being read back from storage
func (a AnalysisState) restored() AnalysisState {
	if !a.IsLoading {
		return a
	}
	a.IsLoading = false
	a.IsComplete = true
	a.Error = interruptedMessage
	return a
}

func (a AnalysisState) clone() AnalysisState {
	if a.ChannelIDs != nil {
		a.ChannelIDs = append([]string(nil), a.ChannelIDs...)
	}
	return a
}

// State is everything the sync coordinator reads and writes
type State struct {
	Settings Settings
	Sessions []Session
	Analysis AnalysisState
}

// DefaultState is the state of a fresh install
func DefaultState() State {
	return State{Settings: DefaultSettings()}
}

// Clone returns a deep copy of the state
func (s State) Clone() State {
	return State{
		Settings: s.Settings,
		Sessions: cloneSessions(s.Sessions),
		Analysis: s.Analysis.clone(),
	}
}

// Session looks up a session by channel id
func (s State) Session(id string) (Session, bool) {
	return sessionByID(s.Sessions, id)
}

func sessionByID(sessions []Session, id string) (Session, bool) {
	for _, sess := range sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return Session{}, false
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Settings *Settings
	Sessions *[]Session
	Analysis *AnalysisState
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p.Settings == nil && p.Sessions == nil && p.Analysis == nil
}

// Apply returns st with the patch applied
func (p Patch) Apply(st State) State {
	if p.Settings != nil {
		st.Settings = p.Settings.Normalize()
	}
	if p.Sessions != nil {
		st.Sessions = cloneSessions(*p.Sessions)
	}
	if p.Analysis != nil {
		st.Analysis = p.Analysis.clone()
	}
	return st
}

// SettingsPatch builds a patch replacing the settings
func SettingsPatch(s Settings) Patch { return Patch{Settings: &s} }

// SessionsPatch builds a patch replacing the session library
func SessionsPatch(s []Session) Patch { return Patch{Sessions: &s} }

// AnalysisPatch builds a patch replacing the analysis run
func AnalysisPatch(a AnalysisState) Patch { return Patch{Analysis: &a} }
