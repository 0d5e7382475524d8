package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/rapat/domain/entities"
)

// resumeContextEntries is how many trailing transcript entries are replayed
// to the model after a reconnect.
const resumeContextEntries = 30

// BuildResumeContext renders the transcript tail as "User:"/"AI:" lines for
// the reconnect system instruction.
func BuildResumeContext(entries []entities.ConversationEntry) string {
	if len(entries) > resumeContextEntries {
		entries = entries[len(entries)-resumeContextEntries:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		role := "AI"
		if e.Speaker == entities.SpeakerUser {
			role = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, e.Text))
	}
	return strings.Join(lines, "\n")
}

// BuildMeetingReport renders the whole transcript into a markdown summary
// when the participant leaves the meeting.
func BuildMeetingReport(personaName, participantName string, entries []entities.ConversationEntry, now time.Time) entities.RoomReport {
	if personaName == "" {
		personaName = "AI Assistant"
	}

	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		var role string
		switch {
		case e.Kind == entities.EntryTranscription && e.Speaker == entities.SpeakerUser:
			role = "User (Voice)"
		case e.Kind == entities.EntryTranscription:
			role = "AI (Voice)"
		case e.Speaker == entities.SpeakerUser:
			role = "User (Chat)"
		default:
			role = "AI (Chat)"
		}
		parts = append(parts, fmt.Sprintf("**%s:**\n%s\n", role, e.Text))
	}
	transcript := strings.Join(parts, "\n")

	summary := fmt.Sprintf("# Meeting Summary - %s\nDate: %s\nParticipant: %s\n\n## Transcript\n\n%s",
		personaName, now.Format("1/2/2006, 3:04:05 PM"), participantName, transcript)

	return entities.RoomReport{
		ID:         uuid.New().String(),
		Summary:    summary,
		Transcript: transcript,
		CreatedAt:  now,
	}
}

// BuildToolReport converts a create_report tool call into a persisted report.
func BuildToolReport(title, content string, now time.Time) entities.RoomReport {
	return entities.RoomReport{
		ID:         uuid.New().String(),
		Title:      title,
		Summary:    content,
		Transcript: "Generated via Live Tool",
		CreatedAt:  now,
	}
}

// ToolReportChatEntry is the chat message that surfaces a generated report
// inline in the conversation.
func ToolReportChatEntry(title, content string) string {
	return fmt.Sprintf("# 📄 Report Generated: %s\n\n%s", title, content)
}
