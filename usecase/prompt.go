package usecase

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/satriahrh/rapat/domain/entities"
)

// maxInlineDocumentChars caps how much of one attached document is inlined
// into the system instruction.
const maxInlineDocumentChars = 20000

const conversationalStylePrompt = `
    Speak just like a real person—warm, natural, and clear.
    Use simple language and avoid technical jargon unless the user uses it first.
    Be concise; don’t stretch the discussion or add unnecessary details.
    Stay focused on what the user asks. When needed, ask short clarifying questions, but do NOT ask repetitive questions if you have enough context.
    IMPORTANT: If asked to create a report, use Markdown with clear headers (#).

    [WAITING BEHAVIOR]
    If the user says "wait", "hold on", or "just a second", you must stop talking immediately and remain SILENT.
    Do not say "Okay I'll wait". Just be silent.
    Wait until the user speaks again to re-engage.

    [NOISE HANDLING]
    If you hear very short, unclear audio or background noise, ignore it. Do not respond with "I didn't catch that". Just wait for clear speech.
    `

const meetingBehaviorPrompt = `You are a helpful AI assistant in a meeting. Your goal is to be a seamless, helpful participant. Listen to the user and continuously observe their screen when they are sharing. Proactively use the visual information from the screen as context for your responses without waiting for the user to tell you to look. Respond directly and conversationally when the user speaks to you or when you have a relevant insight based on the conversation or the shared screen. Be proactive but not interruptive.`

const toolInstruction = " You have access to a 'create_report' tool. Use it whenever the user asks to generate a file, report, summary, or document. Do not speak the full content of such documents; generate them using the tool."

// PromptResult carries the assembled system instruction plus the resources
// that must be streamed separately after connect.
type PromptResult struct {
	SystemInstruction string
	ImageResources    []entities.RoomResource
	// LoadedResourceCount is how many links, documents, and images were
	// folded into the context.
	LoadedResourceCount int
}

// BuildSystemInstruction assembles the live session's system instruction from
// the persona prompt, the room's resources, and an optional transcript of a
// previous session.
func BuildSystemInstruction(cfg entities.MeetingConfig, personaPrompt, reconnectContext string) PromptResult {
	userContext := fmt.Sprintf("The user you are speaking with is named %s. Address them by name naturally in the conversation, but do not overdo it.", cfg.ParticipantName)

	var result PromptResult
	var resourceContext strings.Builder

	if cfg.Room != nil {
		var links, texts []entities.RoomResource
		for _, r := range cfg.Room.Resources {
			switch {
			case r.Kind == entities.ResourceLink:
				links = append(links, r)
			case entities.Classify(r.Name, r.MimeType) == entities.ResourceImage:
				result.ImageResources = append(result.ImageResources, r)
			case entities.Classify(r.Name, r.MimeType) == entities.ResourceText:
				texts = append(texts, r)
			}
		}

		if len(links) > 0 {
			resourceContext.WriteString("\n\n[SHARED LINKS]\nThe user has shared the following relevant links. You can use these as context or starting points for discussion. Use your built-in Google Search tool to access their content if you do not know it:\n")
			for _, res := range links {
				fmt.Fprintf(&resourceContext, "- %s\n", res.Content)
			}
			result.LoadedResourceCount += len(links)
		}

		if len(texts) > 0 {
			resourceContext.WriteString("\n\n[ATTACHED DOCUMENTS]\nThe following documents are attached to this session. You MUST refer to them to answer user questions regarding the system or topic:\n")
			for _, res := range texts {
				content, err := base64.StdEncoding.DecodeString(res.Content)
				if err != nil {
					continue
				}
				text := string(content)
				if len(text) > maxInlineDocumentChars {
					cut := maxInlineDocumentChars
					for cut > 0 && !utf8.RuneStart(text[cut]) {
						cut--
					}
					text = text[:cut] + "\n...[TRUNCATED]"
				}
				fmt.Fprintf(&resourceContext, "\n--- START OF DOCUMENT: %s ---\n%s\n--- END OF DOCUMENT: %s ---\n", res.Name, text, res.Name)
				result.LoadedResourceCount++
			}
			resourceContext.WriteString("\n[END ATTACHED DOCUMENTS]\nUse the above documents as primary context for your answers.")
		}
		result.LoadedResourceCount += len(result.ImageResources)
	}

	instruction := fmt.Sprintf("%s %s %s %s %s %s",
		userContext, personaPrompt, resourceContext.String(),
		conversationalStylePrompt, meetingBehaviorPrompt, toolInstruction)

	combined := cfg.PreviousContext
	if reconnectContext != "" {
		combined += "\n\n[RECENT_DISCONNECTION_CONTEXT]\n" + reconnectContext
	}
	if combined != "" {
		instruction += "\n\n[SYSTEM UPDATE] The conversation is resuming. Below is the transcript of the previous session. Resume the conversation naturally from where it left off using this context. Do NOT repeat the last message unless asked.\n\n[PREVIOUS_TRANSCRIPT_START]\n" + combined + "\n[PREVIOUS_TRANSCRIPT_END]"
	}

	result.SystemInstruction = instruction
	return result
}

// ResourceLoadedNote is the chat entry announcing how many resources were
// folded into the model's context.
func ResourceLoadedNote(count int) string {
	return fmt.Sprintf("*System Note: Successfully loaded %d resource(s) into context.*", count)
}
