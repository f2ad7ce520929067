package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
	"github.com/thegoddo/ripple/internal/tui/model"
)

// StatusBar displays the profile, connection state, keybinding hints and
// flash notices.
type StatusBar struct {
	*tview.TextView
	profile    string
	connection string
	hints      []string
	flash      string
	flashLevel model.Level
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, connection: "OFFLINE"}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetConnection updates the connection state display.
func (sb *StatusBar) SetConnection(state string) {
	sb.connection = state
	sb.render()
}

// SetHints replaces the keybinding hints for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets the transient notice.
func (sb *StatusBar) SetFlash(msg string, level model.Level) {
	sb.flash = msg
	sb.flashLevel = level
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	clock := time.Now().Format("15:04")
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.profile, sb.connection, clock)
	if len(sb.hints) > 0 {
		line += fmt.Sprintf(" | [::d]%s[-:-:-]", strings.Join(sb.hints, "  "))
	}
	if sb.flash != "" {
		color := "yellow"
		if sb.flashLevel == model.LevelError {
			color = "red"
		}
		line += fmt.Sprintf(" | [%s]%s[-]", color, sanitizeForTerminal(sb.flash))
	}

	_, _ = fmt.Fprint(sb, line)
}
