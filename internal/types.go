package internal

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ChannelRefKind is how a channel was referenced on the command line
type ChannelRefKind int

const (
	ChannelRefUnknown ChannelRefKind = iota
	ChannelRefID
	ChannelRefHandle
)

// String returns a human-readable representation of the reference kind
func (k ChannelRefKind) String() string {
	switch k {
	case ChannelRefID:
		return "id"
	case ChannelRefHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// ChannelRef is the result of parsing a channel argument
type ChannelRef struct {
	Kind          ChannelRefKind
	OriginalInput string
	// Value is the channel id, or the handle including its leading @
	Value string
	Error error
}

// IsValid returns true if the reference was understood
func (r ChannelRef) IsValid() bool {
	return r.Error == nil && r.Kind != ChannelRefUnknown
}

// String returns a formatted representation of the reference
func (r ChannelRef) String() string {
	if r.Error != nil {
		return fmt.Sprintf("ChannelRef{kind=%s, input=%q, error=%v}", r.Kind, r.OriginalInput, r.Error)
	}
	return fmt.Sprintf("ChannelRef{kind=%s, value=%s}", r.Kind, r.Value)
}

var (
	channelIDPattern = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
	handlePattern    = regexp.MustCompile(`^@[A-Za-z0-9._-]{3,30}$`)
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// IsValidChannelID checks if a string looks like a YouTube channel id
func IsValidChannelID(id string) bool {
	return channelIDPattern.MatchString(id)
}

// IsValidYouTubeID checks if a string looks like a valid YouTube video ID
func IsValidYouTubeID(id string) bool {
	return videoIDPattern.MatchString(id)
}

func isYouTubeHost(host string) bool {
	switch strings.ToLower(host) {
	case "www.youtube.com", "youtube.com", "m.youtube.com", "youtu.be":
		return true
	}
	return false
}

// ParseChannelRef accepts a channel id, an @handle or a channel URL
func ParseChannelRef(arg string) ChannelRef {
	arg = strings.TrimSpace(arg)
	ref := ChannelRef{OriginalInput: arg}

	switch {
	case IsValidChannelID(arg):
		ref.Kind, ref.Value = ChannelRefID, arg
		return ref
	case handlePattern.MatchString(arg):
		ref.Kind, ref.Value = ChannelRefHandle, arg
		return ref
	}

	if !strings.Contains(arg, "://") && strings.Contains(arg, "youtube.com/") {
		arg = "https://" + arg
	}
	u, err := url.Parse(arg)
	if err != nil || !isYouTubeHost(u.Host) {
		ref.Error = fmt.Errorf("not a channel id, @handle or channel URL: %q", ref.OriginalInput)
		return ref
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case len(parts) >= 2 && parts[0] == "channel" && IsValidChannelID(parts[1]):
		ref.Kind, ref.Value = ChannelRefID, parts[1]
	case len(parts) >= 1 && handlePattern.MatchString(parts[0]):
		ref.Kind, ref.Value = ChannelRefHandle, parts[0]
	default:
		ref.Error = fmt.Errorf("could not find a channel in URL: %s", ref.OriginalInput)
	}
	return ref
}

// ParseVideoID normalizes a video id or watch URL to the video id
func ParseVideoID(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if IsValidYouTubeID(arg) {
		return arg, nil
	}
	u, err := url.Parse(arg)
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}
	if !isYouTubeHost(u.Host) {
		return "", fmt.Errorf("not a YouTube URL: %s", arg)
	}
	if v := u.Query().Get("v"); IsValidYouTubeID(v) {
		return v, nil
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if last := parts[len(parts)-1]; IsValidYouTubeID(last) {
		return last, nil
	}
	return "", fmt.Errorf("could not extract video ID from URL: %s", arg)
}
