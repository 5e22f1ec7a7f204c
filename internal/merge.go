package internal

import (
	"sort"
)

// MergeImport combines an imported collection into an existing library.
// Entries from incoming replace existing entries with the same id regardless of SavedAt.
func MergeImport(existing, incoming []Session) []Session {
	byID := make(map[string]Session, len(existing)+len(incoming))
	for _, s := range existing {
		byID[s.ID] = s
	}
	for _, s := range incoming {
		byID[s.ID] = s
	}
	return flatten(byID)
}

// MergeNewest combines two libraries keeping, for every id, the entry with the later SavedAt.
// Ties keep the remote entry.
func MergeNewest(local, remote []Session) []Session {
	byID := make(map[string]Session, len(local)+len(remote))
	for _, s := range local {
		byID[s.ID] = s
	}
	for _, s := range remote {
		if cur, ok := byID[s.ID]; ok && cur.SavedAt.After(s.SavedAt) {
			continue
		}
		byID[s.ID] = s
	}
	return flatten(byID)
}

// UpsertSession replaces the session with the same id, or puts s first when it is new
func UpsertSession(sessions []Session, s Session) []Session {
	out := make([]Session, 0, len(sessions)+1)
	replaced := false
	for _, cur := range sessions {
		if cur.ID == s.ID {
			if !replaced {
				out = append(out, s)
				replaced = true
			}
			continue
		}
		out = append(out, cur)
	}
	if !replaced {
		out = append([]Session{s}, out...)
	}
	return out
}

// RemoveSession drops the session with the given id. It reports whether one was removed.
func RemoveSession(sessions []Session, id string) ([]Session, bool) {
	out := make([]Session, 0, len(sessions))
	removed := false
	for _, s := range sessions {
		if s.ID == id {
			removed = true
			continue
		}
		out = append(out, s)
	}
	return out, removed
}

// flatten turns an id map into a list, newest first
func flatten(byID map[string]Session) []Session {
	out := make([]Session, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	return sortSessions(out)
}

// sortedSessions returns a copy of sessions, newest first
func sortedSessions(sessions []Session) []Session {
	return sortSessions(append([]Session(nil), sessions...))
}

func sortSessions(out []Session) []Session {
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].SavedAt.After(out[j].SavedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
