package council

import (
	"context"
	"strings"
	"time"
)

// GenerateTitle asks the auxiliary model for a short conversation title
// derived from the first user message. Falls back to a generic title when
// the call fails.
func GenerateTitle(ctx context.Context, gw Gateway, auxModel, userQuery string) string {
	comp := gw.Complete(ctx, auxModel, userMessages(titlePrompt(userQuery)), 30*time.Second)
	if comp == nil || comp.Failed() {
		return "New Conversation"
	}
	title := strings.TrimSpace(comp.Text)
	title = strings.Trim(title, `"'`)
	if title == "" {
		return "New Conversation"
	}
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	return title
}
