// Package validate classifies acquisition payloads. It is a pure function
// over bytes plus an optional declared content type: no I/O, no state.
package validate

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yourusername/sharefetch-go/internal/domain"
)

// Verdict is the classification of one raw attempt. Never mutated after
// creation.
type Verdict struct {
	Accepted       bool
	Reason         domain.ErrorKind // set when not accepted
	DetectedFormat string           // extension without dot, e.g. "png"
	MIME           string
	IsHTML         bool
	WidthPx        int // 0 when not determinable
	HeightPx       int
}

// Classify applies the fixed precedence from most to least authoritative:
//  1. declared content type says HTML        -> CONTENT_TYPE_HTML
//  2. magic bytes sniff as HTML              -> MAGIC_BYTES_HTML
//  3. declared or sniffed type is an image   -> accepted
//  4. anything else                          -> UNSUPPORTED_TYPE
//
// A 200 status is never consulted here: an HTML payload is a failure no
// matter what the transport claimed.
func Classify(data []byte, declaredContentType string) Verdict {
	if len(data) == 0 {
		return Verdict{Reason: domain.ErrCaptureFailure}
	}

	declared := normalizeContentType(declaredContentType)
	if declared == "text/html" || declared == "application/xhtml+xml" {
		return Verdict{Reason: domain.ErrContentTypeHTML, IsHTML: true, MIME: declared}
	}

	sniffed := mimetype.Detect(data)
	if sniffed.Is("text/html") || looksLikeHTML(data) {
		return Verdict{Reason: domain.ErrMagicBytesHTML, IsHTML: true, MIME: sniffed.String()}
	}

	if strings.HasPrefix(sniffed.String(), "image/") {
		v := Verdict{
			Accepted:       true,
			DetectedFormat: strings.TrimPrefix(sniffed.Extension(), "."),
			MIME:           sniffed.String(),
		}
		v.WidthPx, v.HeightPx = dimensions(data)
		return v
	}

	// The server may declare an image type the sniffer does not recognize
	// (rare raw formats). Trust the declaration as long as the bytes are
	// not HTML.
	if strings.HasPrefix(declared, "image/") {
		return Verdict{
			Accepted:       true,
			DetectedFormat: strings.TrimPrefix(declared, "image/"),
			MIME:           declared,
		}
	}

	return Verdict{Reason: domain.ErrUnsupportedType, MIME: sniffed.String()}
}

// normalizeContentType strips parameters like charset and lowercases.
func normalizeContentType(ct string) string {
	if ct == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return parsed
}

// looksLikeHTML is a backstop for payloads served with a lying content type
// and enough leading noise to fool the sniffer's html matcher.
func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.TrimLeft(head, " \t\r\n")
	lower := bytes.ToLower(head)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) ||
		bytes.HasPrefix(lower, []byte("<html"))
}

// dimensions reads pixel dimensions from the image header. Returns zeros
// when the format has no registered decoder (e.g. webp, heic).
func dimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
