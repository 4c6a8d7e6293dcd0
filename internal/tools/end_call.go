package tools

import (
	"context"
	"errors"
	"time"

	"github.com/attendly/callline/pkg/provider/llm"
)

var validEndReasons = []string{
	"task_completed",
	"customer_satisfied",
	"goodbye_received",
	"student_confirmed_attendance",
	"student_not_attending",
	"no_response",
	"technical_issue",
}

// EndCallTool signals that the conversation is complete. It performs no side
// effect itself; the router runs the closing flow when it sees the EndCall
// result. It is the only tool exempt from loop prevention and the
// conversation-depth guard.
type EndCallTool struct{}

func (EndCallTool) Name() string { return EndCallName }

func (EndCallTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        EndCallName,
		Description: "End the phone call when the conversation is complete and the student is satisfied",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{
					"type":        "string",
					"description": "Reason for ending the call",
					"enum":        validEndReasons,
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "Brief summary of what was accomplished in the call",
				},
				"studentResponse": map[string]any{
					"type":        "string",
					"description": "How the student responded (e.g., 'confirmed attendance', 'not available')",
				},
			},
			"required": []string{"reason"},
		},
	}
}

func (EndCallTool) PrimaryArg(args map[string]any) string {
	return stringArg(args, "reason")
}

func (EndCallTool) Validate(args map[string]any, _ *CallContext) error {
	reason := stringArg(args, "reason")
	for _, v := range validEndReasons {
		if reason == v {
			return nil
		}
	}
	return errors.New("Is there anything else I can help you with before we finish?")
}

func (EndCallTool) Execute(_ context.Context, args map[string]any, cc *CallContext) (*Result, error) {
	reason := stringArg(args, "reason")
	summary := stringArg(args, "summary")

	if cc.Logger != nil {
		cc.Logger.Info("ending call per completion request",
			"reason", reason,
			"summary", summary,
			"call_duration", time.Since(cc.Session.CreatedAt),
		)
	}

	return &Result{
		Success:   true,
		EndCall:   true,
		EndReason: reason,
		DetailedInfo: map[string]any{
			"reason":          reason,
			"summary":         summary,
			"studentResponse": stringArg(args, "studentResponse"),
		},
	}, nil
}

func (EndCallTool) FallbackText() string {
	return "Thank you for your time today. Goodbye!"
}

// Compile-time interface check.
var _ Tool = EndCallTool{}

// DefaultCatalog returns the standard tool set in a stable order, with the
// terminal tool first.
func DefaultCatalog() []Tool {
	return []Tool{EndCallTool{}, ClassInfoTool{}, ScheduleTool{}, AttendanceTool{}}
}
