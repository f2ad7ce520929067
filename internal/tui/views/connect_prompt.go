package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thegoddo/ripple/internal/tui/ui"
)

// ConnectPrompt asks for a friend's connect code.
type ConnectPrompt struct {
	*tview.Flex
	input    *tview.InputField
	onSubmit func(code string)
}

// NewConnectPrompt creates the connect-code prompt.
func NewConnectPrompt(theme *ui.Theme) *ConnectPrompt {
	input := tview.NewInputField().
		SetLabel(" Connect code: ").
		SetFieldWidth(24)
	input.SetBorder(true).SetTitle(" Add Conversation ")
	input.SetBorderColor(theme.BorderColor)
	input.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 1, false).
		AddItem(input, 3, 0, true).
		AddItem(tview.NewBox(), 0, 2, false)

	cp := &ConnectPrompt{Flex: flex, input: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && cp.onSubmit != nil {
			code := cp.input.GetText()
			if code != "" {
				cp.onSubmit(code)
				cp.input.SetText("")
			}
		}
	})

	return cp
}

// SetOnSubmit sets the callback when a code is entered.
func (cp *ConnectPrompt) SetOnSubmit(fn func(code string)) {
	cp.onSubmit = fn
}

// Input returns the code input field.
func (cp *ConnectPrompt) Input() *tview.InputField {
	return cp.input
}
