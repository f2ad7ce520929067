package timeline

// Viewport math for the message view. The browser equivalent works in
// pixels; here the same formulas are applied over content rows.

// NearBottom reports whether a viewport whose top row is top and whose
// height is height sits within threshold rows of the end of the content.
// An over-scrolled or short content area counts as at-bottom.
func NearBottom(top, height, contentHeight, threshold int) bool {
	return top+height >= contentHeight-threshold
}

// AnchorAfterPrepend returns the scroll top that keeps the viewport
// visually fixed after older content of height newHeight-oldHeight was
// inserted above it.
func AnchorAfterPrepend(top, oldHeight, newHeight int) int {
	return top + (newHeight - oldHeight)
}
