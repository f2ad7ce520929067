package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// ContentKind discriminates the message content variant.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentLocation
	ContentImage
)

func (k ContentKind) String() string {
	switch k {
	case ContentLocation:
		return "location"
	case ContentImage:
		return "image"
	default:
		return "text"
	}
}

// Content is the decoded form of a message body. The wire keeps the
// original single-field encoding (a "geo:" or "img:" prefix on a plain
// string); this type is the in-process tagged variant.
type Content struct {
	Kind ContentKind
	Text string
	Lat  float64
	Lng  float64
	URL  string
}

const (
	locationPrefix = "geo:"
	imagePrefix    = "img:"
)

// ParseContent decodes a wire content string. Malformed geo payloads fall
// back to plain text rather than failing, matching how the service renders
// unparseable bodies.
func ParseContent(s string) Content {
	switch {
	case strings.HasPrefix(s, locationPrefix):
		rest := strings.TrimPrefix(s, locationPrefix)
		lat, lng, ok := parseLatLng(rest)
		if !ok {
			return Content{Kind: ContentText, Text: s}
		}
		return Content{Kind: ContentLocation, Lat: lat, Lng: lng}
	case strings.HasPrefix(s, imagePrefix):
		return Content{Kind: ContentImage, URL: strings.TrimPrefix(s, imagePrefix)}
	default:
		return Content{Kind: ContentText, Text: s}
	}
}

// EncodeLocation produces the wire form of a location share.
func EncodeLocation(lat, lng float64) string {
	return fmt.Sprintf("%s%s,%s", locationPrefix,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lng, 'f', -1, 64))
}

// EncodeImage produces the wire form of an image share.
func EncodeImage(url string) string {
	return imagePrefix + url
}

func parseLatLng(s string) (float64, float64, bool) {
	lat, lng, found := strings.Cut(s, ",")
	if !found {
		return 0, 0, false
	}
	latF, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return 0, 0, false
	}
	lngF, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return 0, 0, false
	}
	return latF, lngF, true
}
