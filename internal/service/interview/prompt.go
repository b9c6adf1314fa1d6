package interview

import (
	"fmt"
	"strings"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/character"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/guide"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
)

// genericInterviewerPrompt frames the model when a character carries no
// prompt prefix of its own.
const genericInterviewerPrompt = `You are a professional research interviewer conducting a user research session.
Your job is to ask thoughtful follow-up questions based on the participant's responses.
Be curious, empathetic, and probe for deeper insights.
Focus on understanding the participant's experiences, challenges, and needs.
Ask one question at a time, and avoid leading questions.`

const (
	defaultTopic = "This is an interview conversation."
	defaultGoals = "Understand the participant's experiences and needs."
)

// composeSystemPrompt builds the system message for one turn: character
// prefix, interview context, unasked scripted questions, then any system
// directives recorded since the last assistant reply.
func composeSystemPrompt(char *character.Character, g *guide.DiscussionGuide, sess *session.Session) string {
	var b strings.Builder

	prefix := char.DynamicPromptPrefix
	if g != nil && g.InterviewPrompt != "" {
		prefix = g.InterviewPrompt
	}
	if prefix == "" {
		prefix = genericInterviewerPrompt
	}
	b.WriteString(prefix)

	topic := sess.Topic
	if topic == "" {
		topic = defaultTopic
	}
	goals := sess.Goals
	if goals == "" {
		goals = defaultGoals
	}
	b.WriteString("\n\nInterview topic: " + topic)
	// Context is optional background; unlike topic and goals it has no
	// useful neutral default, so the line is omitted when empty.
	if sess.Context != "" {
		b.WriteString("\nContext: " + sess.Context)
	}
	b.WriteString("\nGoals: " + goals)

	if unasked := unaskedQuestions(sess); len(unasked) > 0 {
		b.WriteString("\n\nCover the following questions when the moment is natural, one at a time:")
		for _, q := range unasked {
			b.WriteString("\n- " + q)
		}
	}

	if directives := pendingDirectives(sess); len(directives) > 0 {
		b.WriteString("\n\nSession directives to honor on your next reply:")
		for _, d := range directives {
			b.WriteString("\n- " + d)
		}
	}
	return b.String()
}

func unaskedQuestions(sess *session.Session) []string {
	var out []string
	for _, q := range sess.CustomQuestions {
		if !q.Asked && strings.TrimSpace(q.Text) != "" {
			out = append(out, q.Text)
		}
	}
	return out
}

// pendingDirectives returns system messages recorded after the last
// assistant reply. These carry researcher interventions and identity
// reassertions into the next model call.
func pendingDirectives(sess *session.Session) []string {
	var out []string
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		msg := sess.Messages[i]
		if msg.Role == session.RoleAssistant {
			break
		}
		if msg.Role == session.RoleSystem {
			out = append(out, msg.Content)
		}
	}
	// collected newest-first; restore chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// identityMessage is the system directive written when the character changes
// mid-session so the model does not drift back to its prior persona.
func identityMessage(name string) string {
	return fmt.Sprintf("You are %s. Always respond as %s. If asked your name, say 'I am %s.'", name, name, name)
}

// displayName renders a registry key as a persona name.
func displayName(agentName string) string {
	if agentName == "" {
		return "the interviewer"
	}
	return strings.ToUpper(agentName[:1]) + agentName[1:]
}

// defaultGreeting is used when a character has no greeting of its own.
func defaultGreeting(name string) string {
	return fmt.Sprintf("Hello! I'm %s. I'll be conducting this interview today. Let's get started. Could you please introduce yourself?", name)
}
