package timeline

import "testing"

func TestNearBottom(t *testing.T) {
	tests := []struct {
		name                          string
		top, height, content, thresh  int
		want                          bool
	}{
		{"at the very bottom", 80, 20, 100, 30, true},
		{"within threshold", 55, 20, 100, 30, true},
		{"just outside threshold", 49, 20, 100, 30, false},
		{"scrolled far up", 0, 20, 100, 30, false},
		{"content shorter than viewport", 0, 20, 10, 30, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NearBottom(tt.top, tt.height, tt.content, tt.thresh); got != tt.want {
				t.Errorf("NearBottom(%d, %d, %d, %d) = %v, want %v",
					tt.top, tt.height, tt.content, tt.thresh, got, tt.want)
			}
		})
	}
}

func TestAnchorAfterPrepend(t *testing.T) {
	// 40 rows of older history inserted above a viewport at row 10: the
	// same content stays under the cursor at row 50.
	if got := AnchorAfterPrepend(10, 100, 140); got != 50 {
		t.Errorf("AnchorAfterPrepend(10, 100, 140) = %d, want 50", got)
	}
	// Nothing inserted, nothing moves.
	if got := AnchorAfterPrepend(10, 100, 100); got != 10 {
		t.Errorf("AnchorAfterPrepend(10, 100, 100) = %d, want 10", got)
	}
}
