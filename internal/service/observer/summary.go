package observer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/live"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
)

const summaryPrompt = `You are an AI research observer analyzing user interviews.
Create a concise summary of the interview based on the AI observer notes provided.

Focus on:
1. Key themes and patterns
2. Important insights
3. Notable participant emotions/reactions
4. Primary user needs and pain points identified

Format your response in clear paragraphs with section headings.`

// GenerateSummary condenses the accumulated notes, the top five tags by
// frequency, and a mood trend into one summary object. The state moves to
// summarized; regenerating later is allowed.
func (e *Engine) GenerateSummary(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	e.mu.Lock()
	st := e.state(sessionID)
	notes := append([]Observation(nil), st.Notes...)
	timeline := append([]MoodPoint(nil), st.MoodTimeline...)
	e.mu.Unlock()

	var notesText strings.Builder
	for _, note := range notes {
		notesText.WriteString(fmt.Sprintf("- %s [Tags: %s]\n", note.Note, strings.Join(note.Tags, ", ")))
	}
	topTags := topTagsByFrequency(notes, 5)

	query := fmt.Sprintf(`Here are the AI observer notes from the interview:

%s

Most frequent tags: %s

Provide a concise, insightful summary.`, notesText.String(), formatTagCounts(topTags))

	summary, err := e.ai.Generate(ctx, ai.Request{
		System:      summaryPrompt,
		Query:       query,
		Temperature: observerTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate observer summary: %w", err)
	}

	names := make([]string, len(topTags))
	for i, tc := range topTags {
		names[i] = tc.tag
	}
	result := map[string]interface{}{
		"summary":       summary,
		"top_tags":      names,
		"mood_analysis": analyzeMoodTimeline(timeline),
		"generated_at":  time.Now().UTC().Format(time.RFC3339),
	}

	e.mu.Lock()
	e.state(sessionID).Status = StateSummarized
	e.mu.Unlock()

	if e.bus != nil {
		event := live.NewEvent(live.EventObserverSummary, sessionID, result)
		if err := e.bus.PublishToMonitor(sessionID, event); err != nil {
			e.log.Warn("summary publish failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return result, nil
}

type tagCount struct {
	tag   string
	count int
}

func topTagsByFrequency(notes []Observation, limit int) []tagCount {
	counts := make(map[string]int)
	for _, note := range notes {
		for _, tag := range note.Tags {
			counts[tag]++
		}
	}
	out := make([]tagCount, 0, len(counts))
	for tag, count := range counts {
		out = append(out, tagCount{tag: tag, count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].tag < out[j].tag
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func formatTagCounts(tags []tagCount) string {
	parts := make([]string, len(tags))
	for i, tc := range tags {
		parts[i] = fmt.Sprintf("%s (%d)", tc.tag, tc.count)
	}
	return strings.Join(parts, ", ")
}

// analyzeMoodTimeline classifies the trend by comparing half-window averages
// and labels the overall mood band.
func analyzeMoodTimeline(timeline []MoodPoint) string {
	if len(timeline) == 0 {
		return "No mood data available"
	}

	moods := make([]int, len(timeline))
	sum := 0
	minMood, maxMood := timeline[0].Mood, timeline[0].Mood
	for i, point := range timeline {
		moods[i] = point.Mood
		sum += point.Mood
		if point.Mood < minMood {
			minMood = point.Mood
		}
		if point.Mood > maxMood {
			maxMood = point.Mood
		}
	}
	avg := float64(sum) / float64(len(moods))

	var trend string
	if len(moods) < 2 {
		trend = "insufficient data for trend analysis"
	} else {
		firstHalf := moods[:len(moods)/2]
		secondHalf := moods[len(moods)/2:]
		firstAvg := meanInts(firstHalf)
		secondAvg := meanInts(secondHalf)
		switch {
		case secondAvg > firstAvg+1:
			trend = "rising (improving)"
		case secondAvg < firstAvg-1:
			trend = "falling (deteriorating)"
		default:
			trend = "stable"
		}
	}

	var category string
	switch {
	case avg > 5:
		category = "very positive"
	case avg > 2:
		category = "positive"
	case avg > -2:
		category = "neutral"
	case avg > -5:
		category = "negative"
	default:
		category = "very negative"
	}

	return fmt.Sprintf("Overall mood: %s (avg: %.1f, range: %d to %d). Trend: %s.",
		category, avg, minMood, maxMood, trend)
}

func meanInts(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
