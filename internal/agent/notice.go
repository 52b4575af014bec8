package agent

import (
	"fmt"
	"strings"
)

// FormatLimitNotice renders the terminal limit-exceeded condition for the
// user. The meta fields are opaque pass-through strings from the relay;
// they are printed verbatim, never re-derived.
func FormatLimitNotice(meta map[string]string) string {
	var b strings.Builder
	b.WriteString("sessioncast: relay limit exceeded, shutting down\n")

	if resource := meta["resource"]; resource != "" {
		fmt.Fprintf(&b, "  resource: %s\n", resource)
	}
	current, max := meta["current"], meta["max"]
	if current != "" || max != "" {
		fmt.Fprintf(&b, "  usage:    %s of %s\n", orDash(current), orDash(max))
	}
	if msg := meta["message"]; msg != "" {
		fmt.Fprintf(&b, "  %s\n", msg)
	}
	if action := meta["action"]; action != "" {
		fmt.Fprintf(&b, "  %s\n", action)
	} else {
		b.WriteString("  Upgrade your plan or close unused sessions, then restart the agent.\n")
	}
	return b.String()
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
