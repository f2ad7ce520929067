package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Composer is the text input for sending messages. Every edit feeds the
// typing debouncer; Enter submits.
type Composer struct {
	*tview.InputField
	onSend      func(text string)
	onKeystroke func()
}

// NewComposer creates a new message composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	c := &Composer{InputField: input}

	input.SetChangedFunc(func(text string) {
		if text != "" && c.onKeystroke != nil {
			c.onKeystroke()
		}
	})

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && c.onSend != nil {
			text := c.GetText()
			if text != "" {
				c.onSend(text)
				c.SetText("")
			}
		}
	})

	return c
}

// SetOnSend sets the callback when a message is submitted.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// SetOnKeystroke sets the callback for every edit of the input.
func (c *Composer) SetOnKeystroke(fn func()) {
	c.onKeystroke = fn
}
