package views

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/rivo/tview"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/tui/ui"
)

// ProfileView shows the local identity and the connect code other users
// scan or type to start a conversation.
type ProfileView struct {
	*tview.TextView
}

// NewProfileView creates a new profile view.
func NewProfileView(theme *ui.Theme) *ProfileView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true).SetTitle(" Profile ")
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetTitleColor(theme.TitleColor)

	return &ProfileView{TextView: tv}
}

// Update renders the identity with its connect code as a QR block.
func (pv *ProfileView) Update(id chat.Identity) {
	pv.Clear()
	_, _ = fmt.Fprintf(pv, "\n  [::b]%s[-:-:-]\n  %s\n\n  Connect code: [::b]%s[-:-:-]\n\n%s",
		sanitizeForTerminal(id.Username), id.Email, id.ConnectCode, renderQR(id.ConnectCode))
}

// renderQR converts a string to a compact ASCII QR code using Unicode
// half-block characters.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := false
			if y+1 < rows {
				bot = bitmap[y+1][x]
			}
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top && !bot:
				sb.WriteRune('▀')
			case !top && bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
