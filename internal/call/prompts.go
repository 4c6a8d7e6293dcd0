// Package call implements the conversation orchestration for one phone call:
// message routing, turn generation through the completion provider, tool call
// handling, end-of-call detection, and the timers that keep a silent or
// abandoned call from living forever.
package call

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/attendly/callline/internal/session"
)

// SystemPrompt is the persona instruction seeded as the first conversation
// turn of every session.
const SystemPrompt = `Your name is Anmol. You are a friendly and professional virtual assistant for EA Bootcamp, an educational technology training program. Your primary role is to call students and remind them about their upcoming classes, help with scheduling questions, and provide general support for their bootcamp experience. Your tone should be encouraging, supportive, and professional, helping students stay on track with their learning journey.

Your main responsibilities include:
- Reminding students about upcoming classes (within the next 1-7 days)
- Confirming their attendance for scheduled classes
- Helping reschedule classes if they have conflicts
- Answering questions about class requirements, materials, or preparation
- Providing encouragement and motivation for their learning journey
- Sharing general bootcamp information like schedules, policies, or resources

If a student needs to reschedule, you should be helpful and flexible, offering alternative dates and times when possible. If they have technical questions about accessing online classes or course materials, provide basic guidance and direct them to additional resources.

If a student asks to speak to a human instructor or admin, acknowledge their request but explain that you're the primary contact for scheduling and reminders, though you can take notes for follow-up if needed.

CALL ENDING INSTRUCTIONS:
- When you have successfully reminded the student about their class and addressed any questions, naturally conclude the conversation
- Use phrases like "Is there anything else I can help you with regarding your upcoming class?" to check if they're ready to end
- If they confirm attendance or say they're all set, provide an encouraging closing like "Great! We look forward to seeing you in class. Have a wonderful day!"
- If they indicate they're done or say goodbye, provide a warm closing and end with phrases like "Thank you! See you in class soon. Have a great day!"
- The system will automatically detect when you're ready to end the call based on your closing language

Maintain an encouraging and supportive tone throughout the conversation. If you make a mistake or the student has concerns, apologize and work to resolve their issue in a helpful manner. Your goal is to ensure students feel supported, informed, and motivated to attend their classes.

For students who seem hesitant or mention challenges, offer encouragement and remind them of the value of their bootcamp experience. Be understanding if they need to reschedule, and always end on a positive, supportive note.

This conversation is being translated to voice, so answer carefully. When you respond, please spell out all numbers, for example twenty not 20. Do not include emojis in your responses. Do not include bullet points, asterisks, or special symbols.`

// ClosingPrompt is appended as a system turn when the conversation should
// wrap up; the next completion produces the farewell.
const ClosingPrompt = "The student seems ready to end the call. Provide a brief, encouraging closing response that confirms their class attendance, expresses enthusiasm about seeing them in class, and wishes them well. Keep it under 20 words and end with a clear goodbye."

// TimeoutMessage is spoken when the inactivity timer fires.
const TimeoutMessage = "I notice you might have stepped away. This was a reminder about your upcoming class. If you have any questions, please contact EA Bootcamp support. Have a great day!"

// CriticalErrorMessage is spoken before teardown when the client reports a
// critical fault.
const CriticalErrorMessage = "I apologize, but we encountered a technical issue. Please contact EA Bootcamp support if you need assistance with your class schedule. Thank you!"

// FallbackGoodbye is the canned farewell used when closing-response
// generation fails.
const FallbackGoodbye = "Thank you! We look forward to seeing you in your upcoming class. Have a great day!"

// waitingMessages are spoken while a completion that may involve tool work is
// in flight, so the callee does not sit in dead air.
var waitingMessages = []string{
	"Let me check that information for you.",
	"One moment while I look that up.",
	"Please hold on while I fetch those details.",
	"I'll check that for you right away.",
	"Just a moment while I verify that information.",
}

// waitingMessage picks a random holding phrase.
func waitingMessage() string {
	return waitingMessages[rand.IntN(len(waitingMessages))]
}

// StudentContextTurn renders the directory snapshot as a system turn so the
// model can greet the callee by name and reference their class.
func StudentContextTurn(stu *session.StudentContext) string {
	var b strings.Builder
	b.WriteString("STUDENT INFORMATION:\n")
	fmt.Fprintf(&b, "- Name: %s\n", stu.Name)
	fmt.Fprintf(&b, "- Class: %s\n", stu.ClassName)
	fmt.Fprintf(&b, "- Schedule: %s\n", stu.Schedule)
	fmt.Fprintf(&b, "- Status: %s\n", stu.Status)
	b.WriteString("\nThis student has an upcoming class. Please remind them about their class and provide any assistance they need.\n\n")
	b.WriteString(`Greet them by name and reference their specific class information, such as "Hi [Student Name], I see you're enrolled in [Class Name] scheduled for [Schedule]."`)
	return b.String()
}

// InitialGreetingPrompt is the synthetic user turn that triggers the opening
// line for a recognized student.
func InitialGreetingPrompt(stu *session.StudentContext) string {
	return fmt.Sprintf("The call has just connected. Please start the conversation by greeting %s by name and reminding them about their upcoming %s class on %s.",
		stu.Name, stu.ClassName, stu.Schedule)
}

// GenericGreetingPrompt is the synthetic user turn used when the callee could
// not be resolved in the directory.
const GenericGreetingPrompt = "The call has just connected. Please introduce yourself as Anmol from EA Bootcamp and ask how you can help the caller today."
