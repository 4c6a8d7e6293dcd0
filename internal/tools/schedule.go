package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/attendly/callline/pkg/provider/llm"
)

var validScheduleActions = []string{"confirm", "not_attending"}

// ScheduleTool handles the attendance conversation flow: confirming the
// callee for their scheduled class or marking them as not attending. Its
// primary argument for duplicate detection is the action.
type ScheduleTool struct{}

func (ScheduleTool) Name() string { return "schedule_class" }

func (ScheduleTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "schedule_class",
		Description: "Help the student confirm attendance or mark them as not attending",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"description": "Type of attendance action",
					"enum":        validScheduleActions,
				},
				"reason": map[string]any{
					"type":        "string",
					"description": "Reason for the action. REQUIRED for 'not_attending' - must be the specific reason the student gave (e.g., 'scheduling conflict', 'illness', 'work emergency').",
				},
			},
			"required": []string{"action"},
		},
	}
}

func (ScheduleTool) PrimaryArg(args map[string]any) string {
	return stringArg(args, "action")
}

func (ScheduleTool) Validate(args map[string]any, _ *CallContext) error {
	action := stringArg(args, "action")
	valid := false
	for _, v := range validScheduleActions {
		if action == v {
			valid = true
			break
		}
	}
	if !valid {
		return errors.New("Would you like me to confirm your attendance, or note that you can't make it?")
	}
	if action == "not_attending" {
		return validateAbsenceReason(stringArg(args, "reason"))
	}
	return nil
}

func (ScheduleTool) Execute(ctx context.Context, args map[string]any, cc *CallContext) (*Result, error) {
	action := stringArg(args, "action")
	reason := stringArg(args, "reason")
	student := cc.Session.Student

	// Without a directory record the decision is acknowledged verbally only.
	if student == nil {
		text := "Thank you for confirming your attendance! We look forward to seeing you in class."
		if action == "not_attending" {
			text = "I've noted that you won't be able to attend your class. Thank you for letting us know."
		}
		return &Result{
			Success:      true,
			ResponseText: text,
			DetailedInfo: map[string]any{"action": action, "reason": reason, "recorded": false},
		}, nil
	}

	status := "confirmed"
	if action == "not_attending" {
		status = "not_attending"
	}
	if err := cc.Directory.RecordOutcome(ctx, student.ID, status, reason); err != nil {
		return nil, fmt.Errorf("tools: schedule action %s for %s: %w", action, student.ID, err)
	}
	cc.Session.Student.Status = status

	var text string
	if action == "confirm" {
		text = fmt.Sprintf("Perfect! I've confirmed your attendance for %s on %s. We look forward to seeing you in class!",
			student.ClassName, student.Schedule)
	} else {
		text = fmt.Sprintf("I've marked you as not attending %s scheduled for %s. Thank you for letting us know; someone from our team may follow up about makeup options.",
			student.ClassName, student.Schedule)
	}

	return &Result{
		Success:      true,
		ResponseText: text,
		DetailedInfo: map[string]any{"action": action, "status": status, "reason": reason, "recorded": true},
	}, nil
}

func (ScheduleTool) FallbackText() string {
	return "I've noted your request, but couldn't update the system right now. Someone from our team will follow up with you shortly."
}

// Compile-time interface check.
var _ Tool = ScheduleTool{}
