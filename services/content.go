package services

import (
	"dwilive/domain"
	"dwilive/errors"
	"encoding/base64"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// ParseBody validates raw send-message content and turns it into a message body.
// An empty type means text.
func ParseBody(content, messageType string, maxLength int) (domain.Body, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.ErrEmptyContent
	}
	if maxLength > 0 && utf8.RuneCountInString(content) > maxLength {
		return nil, errors.ErrContentTooLong
	}
	switch domain.MessageType(messageType) {
	case "", domain.TextMessage:
		return domain.TextBody{Text: content}, nil
	case domain.ImageMessage:
		if !isImageReference(content) {
			return nil, errors.ErrInvalidImage
		}
		return domain.ImageBody{URL: content}, nil
	default:
		return nil, errors.ErrInvalidType
	}
}

// isImageReference accepts an absolute http(s) URL, or a base64 data URI
// whose bytes are sniffed as an image whatever media type it claims.
func isImageReference(content string) bool {
	if rest, ok := strings.CutPrefix(content, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return false
		}
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil || len(raw) == 0 {
			return false
		}
		return strings.HasPrefix(mimetype.Detect(raw).String(), "image/")
	}
	u, err := url.Parse(content)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
