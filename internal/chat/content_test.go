package chat

import "testing"

func TestParseContentLocation(t *testing.T) {
	c := ParseContent("geo:40.0,-73.9")
	if c.Kind != ContentLocation {
		t.Fatalf("kind = %v, want ContentLocation", c.Kind)
	}
	if c.Lat != 40.0 || c.Lng != -73.9 {
		t.Errorf("lat/lng = %v/%v, want 40.0/-73.9", c.Lat, c.Lng)
	}
}

func TestParseContentImage(t *testing.T) {
	c := ParseContent("img:https://x/y.jpg")
	if c.Kind != ContentImage {
		t.Fatalf("kind = %v, want ContentImage", c.Kind)
	}
	if c.URL != "https://x/y.jpg" {
		t.Errorf("url = %q, want https://x/y.jpg", c.URL)
	}
}

func TestParseContentText(t *testing.T) {
	c := ParseContent("hello there")
	if c.Kind != ContentText {
		t.Fatalf("kind = %v, want ContentText", c.Kind)
	}
	if c.Text != "hello there" {
		t.Errorf("text = %q", c.Text)
	}
}

func TestParseContentMalformedGeoFallsBackToText(t *testing.T) {
	for _, s := range []string{"geo:", "geo:abc", "geo:1.0", "geo:1.0,xyz"} {
		c := ParseContent(s)
		if c.Kind != ContentText {
			t.Errorf("ParseContent(%q).Kind = %v, want ContentText", s, c.Kind)
		}
		if c.Text != s {
			t.Errorf("ParseContent(%q).Text = %q, want original", s, c.Text)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	loc := ParseContent(EncodeLocation(12.5, -8.25))
	if loc.Kind != ContentLocation || loc.Lat != 12.5 || loc.Lng != -8.25 {
		t.Errorf("location round trip = %+v", loc)
	}

	img := ParseContent(EncodeImage("https://cdn/a.png"))
	if img.Kind != ContentImage || img.URL != "https://cdn/a.png" {
		t.Errorf("image round trip = %+v", img)
	}
}
