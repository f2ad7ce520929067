package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"regexp"
	"strings"
)

// Known magic-byte signatures, hex-encoded uppercase. JPEG files vary past
// the third byte but always start with FFD8FF.
var fileSignatures = map[string]string{
	"FFD8FF":   "image/jpeg",
	"89504E47": "image/png",
	"47494638": "image/gif",
	"25504446": "application/pdf",
}

var imageExtRe = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)$`)

// DetectSignature returns the content type matching the file header, or
// empty string if no known signature matches. Four bytes are enough for
// every entry in the table.
func DetectSignature(header []byte) string {
	if len(header) > 4 {
		header = header[:4]
	}
	hexHeader := strings.ToUpper(hex.EncodeToString(header))
	for sig, contentType := range fileSignatures {
		if strings.HasPrefix(hexHeader, sig) {
			return contentType
		}
	}
	return ""
}

// ValidateImage checks the file extension and the magic-byte header before
// any upload network call. This is a defense against extension spoofing:
// a ".png" that does not open with a known signature is rejected.
func ValidateImage(name string, header []byte) error {
	if !imageExtRe.MatchString(name) {
		return fmt.Errorf("invalid file extension %q: only JPG and PNG are allowed", name)
	}
	if DetectSignature(header) == "" {
		return fmt.Errorf("file content does not match its extension")
	}
	return nil
}

// UploadResult is the backend's response to an image upload.
type UploadResult struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl"`
	Message  string `json:"message"`
}

// UploadImage validates and uploads an image, returning the hosted URL to
// be wire-encoded as an image share. Validation failures never reach the
// network.
func (c *Client) UploadImage(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if err := ValidateImage(name, data); err != nil {
		return "", err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var res UploadResult
	if err := c.post(ctx, "/upload/image", &body, w.FormDataContentType(), &res); err != nil {
		return "", err
	}
	if !res.Success {
		if res.Message != "" {
			return "", fmt.Errorf("upload rejected: %s", res.Message)
		}
		return "", fmt.Errorf("upload rejected")
	}
	return res.ImageURL, nil
}
