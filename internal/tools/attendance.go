package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/attendly/callline/pkg/provider/llm"
)

var validAttendanceStatuses = []string{"attending", "not_attending", "pending"}

// AttendanceTool records the callee's attendance decision in the directory.
// Its primary argument for duplicate detection is the status.
type AttendanceTool struct{}

func (AttendanceTool) Name() string { return "update_attendance" }

func (AttendanceTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "update_attendance",
		Description: "Update the student's attendance status in the directory",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status": map[string]any{
					"type":        "string",
					"description": "Attendance status",
					"enum":        validAttendanceStatuses,
				},
				"reason": map[string]any{
					"type":        "string",
					"description": "Reason for not attending (if applicable). Must be the specific reason the student gave.",
				},
			},
			"required": []string{"status"},
		},
	}
}

func (AttendanceTool) PrimaryArg(args map[string]any) string {
	return stringArg(args, "status")
}

func (AttendanceTool) Validate(args map[string]any, cc *CallContext) error {
	status := stringArg(args, "status")
	valid := false
	for _, v := range validAttendanceStatuses {
		if status == v {
			valid = true
			break
		}
	}
	if !valid {
		return errors.New("Just to confirm, will you be attending your class, or not?")
	}
	if status == "not_attending" {
		if err := validateAbsenceReason(stringArg(args, "reason")); err != nil {
			return err
		}
	}
	if cc.Session.Student == nil {
		return errors.New("I don't have your enrollment record on this call, so I can't update your attendance. Our team will follow up with you directly.")
	}
	return nil
}

func (AttendanceTool) Execute(ctx context.Context, args map[string]any, cc *CallContext) (*Result, error) {
	status := stringArg(args, "status")
	reason := stringArg(args, "reason")
	student := cc.Session.Student

	// Directory statuses: attending maps onto a confirmation.
	recorded := status
	if status == "attending" {
		recorded = "confirmed"
	}

	if err := cc.Directory.RecordOutcome(ctx, student.ID, recorded, reason); err != nil {
		return nil, fmt.Errorf("tools: update attendance for %s: %w", student.ID, err)
	}
	cc.Session.Student.Status = recorded

	var text string
	switch status {
	case "attending":
		text = fmt.Sprintf("Perfect! I've confirmed your attendance for %s. We look forward to seeing you in class!", student.ClassName)
	case "not_attending":
		text = fmt.Sprintf("I've noted that you won't be able to attend %s. Thank you for letting us know; someone from our team may follow up about makeup options.", student.ClassName)
	case "pending":
		text = "No problem, I've marked your attendance as undecided for now. We'll check back with you before class."
	}

	return &Result{
		Success:      true,
		ResponseText: text,
		DetailedInfo: map[string]any{
			"status": recorded,
			"reason": reason,
		},
	}, nil
}

func (AttendanceTool) FallbackText() string {
	return "I couldn't update your attendance record just now, but I've noted your response and our team will make sure it's recorded."
}

// Compile-time interface check.
var _ Tool = AttendanceTool{}
