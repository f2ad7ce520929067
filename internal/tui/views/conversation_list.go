package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/tui/ui"
)

// ConversationList is the sidebar table of conversations.
type ConversationList struct {
	*tview.Table
	theme      *ui.Theme
	convs      []chat.Conversation
	userID     string
	selectedFn func() (int, int)
}

// NewConversationList creates the conversation table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")
	table.SetBackgroundColor(theme.BgColor)
	table.SetBorderColor(theme.BorderColor)
	table.SetTitleColor(theme.TitleColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.BgColor).
		Background(theme.TableCursorBg))

	cl := &ConversationList{Table: table, theme: theme}
	cl.selectedFn = table.GetSelection
	return cl
}

// SetUserID sets the local user id used to pick the unread entry.
func (cl *ConversationList) SetUserID(id string) {
	cl.userID = id
}

// Update refreshes the list with new data.
func (cl *ConversationList) Update(convs []chat.Conversation) {
	cl.convs = convs
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Friend").SetSelectable(false).SetTextColor(cl.theme.TableHeaderFg))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(cl.theme.TableHeaderFg))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(cl.theme.TableHeaderFg))

	for i, c := range convs {
		row := i + 1
		name := c.Friend.Username
		if c.Friend.Online {
			name = "[green]●[-] " + name
		} else {
			name = "  " + name
		}
		if unread := c.UnreadCounts[cl.userID]; unread > 0 {
			name = fmt.Sprintf("%s [::b](%d)[-:-:-]", name, unread)
		}

		preview, ts := "", ""
		if c.LastMessage != nil {
			preview = sanitizeForTerminal(previewText(c.LastMessage.Content))
			ts = formatTimestamp(c.LastMessage.Timestamp)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+name).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+preview).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+ts).SetMaxWidth(12))
	}
}

// Selected returns the currently selected conversation.
func (cl *ConversationList) Selected() (chat.Conversation, bool) {
	row, _ := cl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.convs) {
		return cl.convs[idx], true
	}
	return chat.Conversation{}, false
}

// previewText renders encoded content as a one-line sidebar preview.
func previewText(content string) string {
	switch c := chat.ParseContent(content); c.Kind {
	case chat.ContentLocation:
		return "[shared a location]"
	case chat.ContentImage:
		return "[sent an image]"
	default:
		return c.Text
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
