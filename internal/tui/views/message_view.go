package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rivo/tview"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/timeline"
	"github.com/thegoddo/ripple/internal/tui/ui"
)

// scrollThreshold is how many rows from the end still count as "at the
// bottom" for auto-scroll purposes.
const scrollThreshold = 3

// MessageView displays the active conversation's history.
type MessageView struct {
	*tview.TextView
	friend string
	typing bool
	userID string
	lines  int
}

// NewMessageView creates a new message view.
func NewMessageView(theme *ui.Theme) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetTitleColor(theme.TitleColor)

	return &MessageView{TextView: tv}
}

// SetUserID sets the local user id used to label own messages.
func (mv *MessageView) SetUserID(id string) {
	mv.userID = id
}

// SetFriend updates the title with the friend's name.
func (mv *MessageView) SetFriend(name string) {
	mv.friend = name
	mv.refreshTitle()
}

// SetTyping toggles the typing indicator in the title.
func (mv *MessageView) SetTyping(typing bool) {
	mv.typing = typing
	mv.refreshTitle()
}

func (mv *MessageView) refreshTitle() {
	title := fmt.Sprintf(" %s ", mv.friend)
	if mv.typing {
		title = fmt.Sprintf(" %s [yellow](typing...)[-] ", mv.friend)
	}
	mv.SetTitle(title)
}

// ShowLoading clears the view while history is being fetched.
func (mv *MessageView) ShowLoading() {
	mv.Clear()
	mv.lines = 0
	_, _ = fmt.Fprint(mv, "\n  [::d]Loading messages...[-:-:-]")
}

// Update redraws the view from an oldest-first message slice and returns
// the new content height in rows. An empty slice renders a placeholder so
// a fresh conversation is distinguishable from one still loading.
func (mv *MessageView) Update(msgs []chat.Message) int {
	mv.Clear()

	if len(msgs) == 0 {
		mv.lines = 0
		_, _ = fmt.Fprint(mv, "\n  [::d]No messages yet. Say hello![-:-:-]")
		return mv.lines
	}

	var b strings.Builder
	for _, m := range msgs {
		sender := m.Sender.Username
		if m.Sender.ID == mv.userID {
			sender = "You"
		}
		fmt.Fprintf(&b, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			sanitizeForTerminal(sender), formatTimestamp(m.CreatedAt), renderBody(m.Content))
	}
	text := b.String()
	mv.lines = strings.Count(text, "\n")
	_, _ = fmt.Fprint(mv, text)
	return mv.lines
}

// Lines returns the content height of the last Update.
func (mv *MessageView) Lines() int {
	return mv.lines
}

// AtBottom reports whether the viewport is close enough to the end that
// a live append should keep it pinned there.
func (mv *MessageView) AtBottom() bool {
	top, _ := mv.GetScrollOffset()
	_, _, _, height := mv.GetInnerRect()
	return timeline.NearBottom(top, height, mv.lines, scrollThreshold)
}

// AnchorAfterPrepend re-anchors the viewport after older history was
// inserted above it, so the rows the user was reading stay in place.
func (mv *MessageView) AnchorAfterPrepend(top, oldLines int) {
	mv.ScrollTo(timeline.AnchorAfterPrepend(top, oldLines, mv.lines), 0)
}

// renderBody turns the wire content encoding into display text.
func renderBody(content string) string {
	c := chat.ParseContent(content)
	switch c.Kind {
	case chat.ContentLocation:
		lat := strconv.FormatFloat(c.Lat, 'f', -1, 64)
		lng := strconv.FormatFloat(c.Lng, 'f', -1, 64)
		return fmt.Sprintf("[aqua]shared a location:[-] https://www.google.com/maps?q=%s,%s", lat, lng)
	case chat.ContentImage:
		return fmt.Sprintf("[aqua]sent an image:[-] %s", c.URL)
	default:
		return sanitizeForTerminal(c.Text)
	}
}
