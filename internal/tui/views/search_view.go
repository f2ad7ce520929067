package views

import (
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thegoddo/ripple/internal/store"
	"github.com/thegoddo/ripple/internal/tui/ui"
)

// SearchView searches the local message archive.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	onQuery func(query string)
	data    []store.SearchResult
}

// NewSearchView creates a new search view.
func NewSearchView(theme *ui.Theme) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true).SetTitle(" Results ")
	results.SetBackgroundColor(theme.BgColor)
	results.SetBorderColor(theme.BorderColor)
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.BgColor).
		Background(theme.TableCursorBg))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	return &SearchView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
	}
}

// SetOnQuery sets the callback when a search query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
	sv.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil {
			sv.onQuery(sv.input.GetText())
		}
	})
}

// Update refreshes search results.
func (sv *SearchView) Update(results []store.SearchResult) {
	sv.data = results
	sv.results.Clear()

	headers := []string{" FROM", " SNIPPET", " TIME"}
	for col, h := range headers {
		sv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold))
	}

	for i, r := range results {
		row := i + 1
		from := r.Message.SenderUsername
		if r.Message.FromMe {
			from = "You"
		}
		ts := formatTimestamp(time.UnixMilli(r.Message.Timestamp))
		sv.results.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(from))).SetMaxWidth(20).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(r.Snippet))).SetExpansion(1).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 2, tview.NewTableCell(" "+ts).SetMaxWidth(12).SetTextColor(sv.theme.FgColor))
	}
}

// SelectedResult returns the conversation and message id of the selection.
func (sv *SearchView) SelectedResult() (string, string) {
	row, _ := sv.results.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(sv.data) {
		return sv.data[idx].Message.ConversationID, sv.data[idx].Message.MsgID
	}
	return "", ""
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}
