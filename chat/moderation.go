package chat

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/onnwee/lounge/telemetry"
)

// banCommand is the single privileged in-band command: "ban <identity>".
const banCommand = "ban"

// interpretCommand checks text for the privileged ban form. It returns the
// system event to broadcast and true when the message was consumed as a
// command. Only the exact shape — the command token plus one target — from
// an approved sender counts; anything else, including a near miss with the
// wrong argument count, is an ordinary chat message.
func (c *Controller) interpretCommand(sender, text string) (Event, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 || fields[0] != banCommand {
		return Event{}, false
	}
	if !c.Registry.IsApproved(sender) {
		return Event{}, false
	}

	target := fields[1]
	var notice string
	if c.Registry.Ban(target) {
		notice = fmt.Sprintf("%s banned", target)
		telemetry.IncBans()
	} else {
		notice = fmt.Sprintf("%s already banned", target)
	}
	slog.Info("moderation command",
		slog.String("moderator", sender),
		slog.String("target", target))
	return incomingEvent(TypeSystem, true, SystemAuthor, notice), true
}
