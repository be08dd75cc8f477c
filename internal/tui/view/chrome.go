package view

import (
	"fmt"
	"strings"

	tuitheme "github.com/planetary-social/planetary-cli/internal/tui/theme"
)

func Toolbar(inDetail bool) string {
	if inDetail {
		return "j/k scroll | [ ] prev/next | esc back | q quit"
	}
	return "j/k move | g/G top/bottom | enter open | s strategy | r reload | q quit"
}

// Footer summarizes the list: strategy, how many messages are loaded and
// whether the end of the feed was reached.
func Footer(mode, strategy string, shown int, exhausted bool, th tuitheme.Theme) string {
	more := "more available"
	if exhausted {
		more = "end of feed"
	}
	parts := []string{
		th.MetaLabel.Render("mode") + " " + th.MetaValue.Render(mode),
		th.MetaLabel.Render("strategy") + " " + th.MetaValue.Render(strategy),
		th.MetaValue.Render(fmt.Sprintf("%d shown", shown)),
		th.MetaValue.Render(more),
	}
	return strings.Join(parts, " • ")
}

func Message(loading bool, hasWarning bool, status, warning string, th tuitheme.Theme) string {
	state := "idle"
	if loading {
		state = "loading"
	}
	if hasWarning {
		state = "warning"
	}
	main := "Ready"
	switch {
	case status != "" && hasWarning && warning != "":
		main = status + ": " + warning
	case status != "":
		main = status
	case hasWarning:
		main = warning
	}
	stateLabel := th.StateIdle.Render("state")
	switch state {
	case "warning":
		stateLabel = th.StateWarn.Render("state")
	case "loading":
		stateLabel = th.StateLoad.Render("state")
	}
	return fmt.Sprintf("%s: %s | %s", stateLabel, state, th.MetaValue.Render(main))
}
