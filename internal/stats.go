package internal

import (
	"sort"
	"strings"
	"unicode"
)

// KeywordCount is a keyword and the number of videos it appears in
type KeywordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// ChannelStats are descriptive statistics over a session's videos
type ChannelStats struct {
	Videos         int            `json:"videos"`
	TotalViews     uint64         `json:"totalViews"`
	TotalLikes     uint64         `json:"totalLikes"`
	TotalComments  uint64         `json:"totalComments"`
	AvgViews       float64        `json:"avgViews"`
	MedianViews    float64        `json:"medianViews"`
	AvgLikes       float64        `json:"avgLikes"`
	AvgComments    float64        `json:"avgComments"`
	EngagementRate float64        `json:"engagementRate"`
	AvgDuration    string         `json:"avgDuration"`
	UploadsPerWeek float64        `json:"uploadsPerWeek"`
	TopVideos      []Video        `json:"topVideos"`
	TopKeywords    []KeywordCount `json:"topKeywords"`
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an and are as at be but by for from has have how i in into is it its
		my not of on or our so that the this to was we what when why with you your vs new my me
		do does did can will just all out up get got one two more most very`) {
		stopwords[w] = struct{}{}
	}
}

// ComputeStats derives engagement and keyword statistics from videos.
// topN bounds both the top video and top keyword lists.
func ComputeStats(videos []Video, topN int) ChannelStats {
	st := ChannelStats{Videos: len(videos)}
	if len(videos) == 0 {
		st.AvgDuration = formatSeconds(0)
		return st
	}

	views := make([]uint64, 0, len(videos))
	totalSeconds := 0
	for _, v := range videos {
		st.TotalViews += v.ViewCount
		st.TotalLikes += v.LikeCount
		st.TotalComments += v.CommentCount
		views = append(views, v.ViewCount)
		totalSeconds += DurationSeconds(v.Duration)
	}

	n := float64(len(videos))
	st.AvgViews = float64(st.TotalViews) / n
	st.AvgLikes = float64(st.TotalLikes) / n
	st.AvgComments = float64(st.TotalComments) / n
	if st.TotalViews > 0 {
		st.EngagementRate = float64(st.TotalLikes+st.TotalComments) / float64(st.TotalViews)
	}
	st.MedianViews = median(views)
	st.AvgDuration = formatSeconds(totalSeconds / len(videos))
	st.UploadsPerWeek = uploadsPerWeek(videos)
	st.TopVideos = topVideos(videos, topN)
	st.TopKeywords = TopKeywords(videos, topN)
	return st
}

func median(values []uint64) float64 {
	sorted := append([]uint64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return (float64(sorted[mid-1]) + float64(sorted[mid])) / 2
}

func uploadsPerWeek(videos []Video) float64 {
	first, last := videos[0].PublishedAt, videos[0].PublishedAt
	for _, v := range videos[1:] {
		if v.PublishedAt.Before(first) {
			first = v.PublishedAt
		}
		if v.PublishedAt.After(last) {
			last = v.PublishedAt
		}
	}
	weeks := last.Sub(first).Hours() / (24 * 7)
	if weeks < 1 {
		return float64(len(videos))
	}
	return float64(len(videos)) / weeks
}

func topVideos(videos []Video, n int) []Video {
	sorted := append([]Video(nil), videos...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ViewCount > sorted[j].ViewCount })
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// TopKeywords counts, per video, the distinct words of its title and tags
func TopKeywords(videos []Video, n int) []KeywordCount {
	counts := make(map[string]int)
	for _, v := range videos {
		seen := make(map[string]struct{})
		words := tokenize(v.Title)
		for _, tag := range v.Tags {
			words = append(words, tokenize(tag)...)
		}
		for _, w := range words {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			counts[w]++
		}
	}

	out := make([]KeywordCount, 0, len(counts))
	for w, c := range counts {
		out = append(out, KeywordCount{Word: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		words = append(words, f)
	}
	return words
}
