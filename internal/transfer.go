package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"
)

// ExportVersion is the version written into JSON exports
const ExportVersion = 1

// maxSheetName is the longest sheet name a workbook accepts
const maxSheetName = 31

const summarySheet = "Summary"

// ExportDocument is the JSON export envelope
type ExportDocument struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Sessions   []Session `json:"sessions"`
}

// ExportJSON writes sessions as an indented ExportDocument
func ExportJSON(w io.Writer, sessions []Session, now time.Time) error {
	if sessions == nil {
		sessions = []Session{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ExportDocument{
		Version:    ExportVersion,
		ExportedAt: now.UTC(),
		Sessions:   sessions,
	}); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}

// ImportJSON reads an ExportDocument or a bare array of sessions
func ImportJSON(r io.Reader) ([]Session, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("import file is empty")
	}

	var sessions []Session
	if data[0] == '[' {
		if err := json.Unmarshal(data, &sessions); err != nil {
			return nil, fmt.Errorf("decoding sessions: %w", err)
		}
	} else {
		var doc ExportDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding export document: %w", err)
		}
		if doc.Version > ExportVersion {
			return nil, fmt.Errorf("export version %d is newer than supported version %d", doc.Version, ExportVersion)
		}
		sessions = doc.Sessions
	}

	for i, s := range sessions {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("session %d has no id", i+1)
		}
	}
	return sessions, nil
}

// SheetName turns a channel title into a valid worksheet name
func SheetName(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	name := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(name); len(runes) > maxSheetName {
		name = strings.TrimSpace(string(runes[:maxSheetName]))
	}
	if name == "" || strings.EqualFold(name, summarySheet) {
		name = "Channel"
	}
	return name
}

// uniqueSheetName appends a counter when name is already taken
func uniqueSheetName(name string, used map[string]struct{}) string {
	candidate := name
	for i := 2; ; i++ {
		if _, taken := used[strings.ToLower(candidate)]; !taken {
			break
		}
		suffix := fmt.Sprintf(" %d", i)
		base := []rune(name)
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = strings.TrimSpace(string(base)) + suffix
	}
	used[strings.ToLower(candidate)] = struct{}{}
	return candidate
}

var (
	summaryHeader = []any{"Channel", "Handle", "Channel ID", "Subscribers", "Videos fetched",
		"Total views", "Average views", "Median views", "Engagement %", "Average duration",
		"Uploads per week", "Saved at"}
	videoHeader = []any{"Title", "Published", "Duration", "Views", "Likes", "Comments", "URL", "Tags"}
)

// ExportXLSX writes a workbook with a summary sheet and one sheet per session
func ExportXLSX(w io.Writer, sessions []Session) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	if err := f.SetSheetRow(summarySheet, "A1", &summaryHeader); err != nil {
		return fmt.Errorf("writing summary header: %w", err)
	}

	used := map[string]struct{}{strings.ToLower(summarySheet): {}}
	for i, s := range sessions {
		st := ComputeStats(s.Videos, 0)
		row := []any{
			s.Channel.Title, s.Channel.Handle, s.ID, s.Channel.SubscriberCount, st.Videos,
			st.TotalViews, st.AvgViews, st.MedianViews, st.EngagementRate * 100, st.AvgDuration,
			st.UploadsPerWeek, s.SavedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary row: %w", err)
		}

		sheet := uniqueSheetName(SheetName(s.Channel.Title), used)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("creating sheet %q: %w", sheet, err)
		}
		if err := writeVideoSheet(f, sheet, s.Videos); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeVideoSheet(f *excelize.File, sheet string, videos []Video) error {
	if err := f.SetSheetRow(sheet, "A1", &videoHeader); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}
	for i, v := range videos {
		row := []any{
			v.Title, v.PublishedAt.UTC().Format("2006-01-02"), FormatDuration(v.Duration),
			v.ViewCount, v.LikeCount, v.CommentCount, v.URL(), strings.Join(v.Tags, ", "),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
