package source

import (
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	defaultCharset = "utf-8"
	// minDetectConfidence is the chardet confidence, out of 100, below which detection is ignored.
	minDetectConfidence = 50
)

// decodeBody converts body to UTF-8.
// A charset declared in contentType wins. Otherwise valid UTF-8 is kept as is, and
// anything else is run through a detector before falling back to UTF-8.
func decodeBody(body []byte, contentType string) (string, string) {
	if label := charsetLabel(contentType); label != "" {
		if enc, name := charset.Lookup(label); enc != nil {
			if text, err := decodeWith(enc, body); err == nil {
				return text, name
			}
		}
	}

	if utf8.Valid(body) {
		text, _ := decodeWith(unicode.UTF8BOM, body)
		return text, defaultCharset
	}

	if result, err := chardet.NewTextDetector().DetectBest(body); err == nil && result.Confidence >= minDetectConfidence {
		if enc, name := charset.Lookup(result.Charset); enc != nil {
			if text, err := decodeWith(enc, body); err == nil {
				return text, name
			}
		}
	}
	return strings.ToValidUTF8(strings.TrimPrefix(string(body), "\ufeff"), "\ufffd"), defaultCharset
}

func charsetLabel(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

func decodeWith(enc encoding.Encoding, body []byte) (string, error) {
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(string(decoded), "\ufeff"), nil
}
