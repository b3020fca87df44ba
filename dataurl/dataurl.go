// Package dataurl converts images to and from data URLs (RFC 2397), the form
// in which images are usually passed around in a browser.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/edtenz/imgsch/imgsch"
	"github.com/gabriel-vasile/mimetype"
)

const (
	scheme = "data:"

	defaultMediaType = "text/plain;charset=US-ASCII"
)

var ErrInvalidDataURL = errors.New("invalid data url")

func IsDataURL(s string) bool {
	return len(s) >= len(scheme) && strings.EqualFold(s[:len(scheme)], scheme)
}

// Parse parses a data URL of form 'data:[<media type>][;base64],<data>'. Both base64
// and percent-encoded payloads are supported.
func Parse(s string) (mediaType string, data imgsch.EncodedImage, err error) {
	if !IsDataURL(s) {
		return "", nil, fmt.Errorf("%w: no %q prefix", ErrInvalidDataURL, scheme)
	}
	s = s[len(scheme):]

	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: no ',' separator", ErrInvalidDataURL)
	}

	isBase64 := false
	if h, found := cutSuffixFold(header, ";base64"); found {
		header = h
		isBase64 = true
	}

	mediaType = defaultMediaType
	if header != "" {
		// Media type can be omitted and only parameters passed: 'data:;charset=utf-8,...'.
		if strings.HasPrefix(header, ";") {
			header = "text/plain" + header
		}

		typ, params, err := mime.ParseMediaType(header)
		if err != nil {
			return "", nil, fmt.Errorf("%w: invalid media type: %w", ErrInvalidDataURL, err)
		}
		mediaType = mime.FormatMediaType(typ, params)
	}

	if isBase64 {
		data, err = decodeBase64(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: invalid base64 data: %w", ErrInvalidDataURL, err)
		}
		return mediaType, data, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid percent-encoded data: %w", ErrInvalidDataURL, err)
	}
	return mediaType, imgsch.EncodedImage(unescaped), nil
}

func decodeBase64(payload string) ([]byte, error) {
	// Base64 data can be split into lines.
	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		default:
			return r
		}
	}, payload)

	// Padding is optional.
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
}

func cutSuffixFold(s, suffix string) (before string, found bool) {
	if len(s) < len(suffix) || !strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s, false
	}
	return s[:len(s)-len(suffix)], true
}

// Format returns a base64 data URL for the passed image. The media type is detected
// from the content.
func Format(data imgsch.EncodedImage) string {
	mediaType := DetectMediaType(data)

	var b strings.Builder
	b.Grow(len(scheme) + len(mediaType) + len(";base64,") + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(scheme)
	b.WriteString(mediaType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// DetectMediaType returns the media type of the passed image, for example, "image/png".
func DetectMediaType(data imgsch.EncodedImage) string {
	return mimetype.Detect(data).String()
}
