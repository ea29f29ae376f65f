package gate

import "strings"

// Action is a parsed approval verb.
type Action string

// Approval verbs.
const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Command is a parsed channel message.
type Command struct {
	Action Action
	Arg    string
}

// ParseCommand recognizes "approve|approved|reject|rejected [day|content_id]".
// The argument is lowercased.
func ParseCommand(content string) (Command, bool) {
	parts := strings.Fields(strings.ToLower(content))
	if len(parts) == 0 {
		return Command{}, false
	}
	var action Action
	switch parts[0] {
	case "approve", "approved":
		action = ActionApprove
	case "reject", "rejected":
		action = ActionReject
	default:
		return Command{}, false
	}
	cmd := Command{Action: action}
	if len(parts) > 1 {
		cmd.Arg = parts[1]
	}
	return cmd, true
}
