package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/character"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
)

// analysisTemperature keeps analysis output factual rather than creative.
const analysisTemperature = 0.3

// genericAnalysisPrompt is the fallback when neither the guide nor the
// character carries its own analysis prompt.
const genericAnalysisPrompt = `Analyze this interview transcript to identify:

1. User Needs: What specific needs, wants, or requirements did the user express?
2. Goals: What short-term and long-term goals did the user mention?
3. Pain Points: What frustrations, challenges, or obstacles did the user describe?
4. Opportunities: What potential improvements or solutions could address the identified needs and pain points?
5. Key Quotes: What specific quotes from the user best illustrate the above points?

Structure your analysis in a clear, comprehensive way addressing each of these points.`

// Generator is the LLM surface the analysis service needs.
type Generator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

// Service runs post-interview analysis and corpus search.
type Service struct {
	store      *store.Store
	ai         Generator
	characters *character.Registry
	embedder   Embedder
	index      Searcher
	log        *zap.Logger
}

// New builds the analysis service. Embedder and index may be nil when the
// semantic layer is disabled; search then degrades to text matching.
func New(st *store.Store, gen Generator, characters *character.Registry, embedder Embedder, index Searcher, log *zap.Logger) *Service {
	return &Service{
		store:      st,
		ai:         gen,
		characters: characters,
		embedder:   embedder,
		index:      index,
		log:        log,
	}
}

// AnalyzeSession produces a structured analysis of one session's transcript,
// persists it, and advances the session status to analyzed.
func (s *Service) AnalyzeSession(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if len(sess.Messages) == 0 {
		return nil, fmt.Errorf("session %s has no transcript to analyze", sessionID)
	}

	prompt := s.resolveAnalysisPrompt(sess)
	transcript := formatTranscript(sess)

	raw, err := s.ai.Generate(ctx, ai.Request{
		System:      prompt,
		Query:       transcript,
		Temperature: analysisTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate analysis: %w", err)
	}

	result := parseAnalysis(raw, prompt)
	if _, err := s.store.SetAnalysis(sessionID, result); err != nil {
		return nil, fmt.Errorf("persist analysis: %w", err)
	}

	s.log.Info("session analyzed",
		zap.String("session_id", sessionID),
		zap.Int("raw_length", len(raw)))
	return result, nil
}

// resolveAnalysisPrompt picks the most specific configured prompt: the
// session's guide first, then the interviewer character, then the generic
// fallback.
func (s *Service) resolveAnalysisPrompt(sess *session.Session) string {
	if sess.GuideID != "" {
		if g, err := s.store.GetGuide(sess.GuideID); err == nil && strings.TrimSpace(g.AnalysisPrompt) != "" {
			return g.AnalysisPrompt
		}
	}
	if s.characters != nil && sess.Character != "" {
		if c, err := s.characters.Load(sess.Character); err == nil && strings.TrimSpace(c.AnalysisPrompt) != "" {
			return c.AnalysisPrompt
		} else if err != nil {
			s.log.Warn("could not load analysis prompt for character",
				zap.String("character", sess.Character),
				zap.Error(err))
		}
	}
	return genericAnalysisPrompt
}

// formatTranscript renders a session in the header-plus-turns shape the
// analysis prompts expect.
func formatTranscript(sess *session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interview Title: %s\n", sess.Title)
	fmt.Fprintf(&b, "Date: %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Character: %s\n\n", sess.Character)
	b.WriteString("TRANSCRIPT:\n\n")
	for _, msg := range sess.Messages {
		switch msg.Role {
		case session.RoleUser, session.RoleAssistant:
			fmt.Fprintf(&b, "%s: %s\n\n", session.SpeakerLabel(msg.Role), msg.Content)
		}
	}
	return b.String()
}

// sectionKeys maps the recognized section headers to output fields. Several
// headers alias the same field so prompt phrasing variations still parse.
var sectionKeys = map[string]string{
	"user needs":      "user_needs",
	"needs":           "user_needs",
	"goals":           "goals",
	"pain points":     "pain_points",
	"challenges":      "pain_points",
	"opportunities":   "opportunities",
	"recommendations": "recommendations",
	"key quotes":      "key_quotes",
	"quotes":          "key_quotes",
}

var sectionFields = []string{"user_needs", "goals", "pain_points", "opportunities", "recommendations", "key_quotes"}

// parseAnalysis structures a free-text analysis reply. Unrecognized text is
// never lost: the full reply stays in raw_analysis.
func parseAnalysis(raw, promptUsed string) map[string]interface{} {
	result := map[string]interface{}{
		"performed_at":         time.Now().UTC().Format(time.RFC3339),
		"analysis_prompt_used": promptUsed,
		"raw_analysis":         raw,
		"summary":              "",
	}
	sections := make(map[string][]string, len(sectionFields))

	trimmed := strings.TrimSpace(raw)

	// The opening paragraph, when it is not itself a section header, serves
	// as the summary.
	if paragraphs := strings.SplitN(trimmed, "\n\n", 2); len(paragraphs) > 0 {
		first := strings.TrimSpace(paragraphs[0])
		if firstLine := strings.SplitN(first, "\n", 2)[0]; first != "" {
			if _, _, isHeader := matchSectionHeader(firstLine); !isHeader {
				result["summary"] = first
			}
		}
	}

	var current string
	var item strings.Builder
	flush := func() {
		if current != "" && item.Len() > 0 {
			sections[current] = append(sections[current], strings.TrimSpace(item.String()))
		}
		item.Reset()
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		if key, rest, ok := matchSectionHeader(line); ok {
			flush()
			current = key
			if rest != "" {
				item.WriteString(rest)
			}
			continue
		}
		if current == "" {
			continue
		}
		if bullet, ok := trimBullet(line); ok {
			flush()
			item.WriteString(bullet)
			continue
		}
		if item.Len() > 0 {
			item.WriteString(" ")
		}
		item.WriteString(line)
	}
	flush()

	for _, field := range sectionFields {
		items := sections[field]
		if items == nil {
			items = []string{}
		}
		result[field] = items
	}
	return result
}

// matchSectionHeader reports whether a line opens a known section, returning
// the canonical field key and any content after the colon.
func matchSectionHeader(line string) (key, rest string, ok bool) {
	normalized := strings.ToLower(strings.TrimLeft(line, "#* \t"))
	normalized = strings.TrimLeft(normalized, "0123456789.")
	normalized = strings.TrimSpace(normalized)
	for header, field := range sectionKeys {
		if normalized == header {
			return field, "", true
		}
		if strings.HasPrefix(normalized, header+":") {
			// Take the trailing content from the original line so casing
			// survives the lowercase match.
			if idx := strings.Index(strings.ToLower(line), header+":"); idx >= 0 {
				rest = strings.TrimSpace(strings.Trim(line[idx+len(header)+1:], "* \t"))
			}
			return field, rest, true
		}
	}
	return "", "", false
}

// trimBullet strips a leading list marker and reports whether one was found.
func trimBullet(line string) (string, bool) {
	for _, marker := range []string{"- ", "• ", "* "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}
	return "", false
}
