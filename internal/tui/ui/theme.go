package ui

import "github.com/gdamore/tcell/v2"

// Theme holds the color constants the views draw with.
type Theme struct {
	BgColor       tcell.Color
	FgColor       tcell.Color
	BorderColor   tcell.Color
	TitleColor    tcell.Color
	TableHeaderFg tcell.Color
	TableCursorBg tcell.Color
}

// DefaultTheme returns the default dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:       tcell.ColorBlack,
		FgColor:       tcell.ColorCadetBlue,
		BorderColor:   tcell.ColorDodgerBlue,
		TitleColor:    tcell.ColorFuchsia,
		TableHeaderFg: tcell.ColorWhite,
		TableCursorBg: tcell.ColorAqua,
	}
}
