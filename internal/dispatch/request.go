// Package dispatch decides how a download request is answered: a redirect
// to the media host, a proxied raw stream, or a conversion process piped
// into the response.
package dispatch

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/guiyumin/streamdl/internal/core/downloader"
)

var (
	// ErrInvalidCustomFormat indicates a custom format outside the allowed list.
	ErrInvalidCustomFormat = errors.New("custom format not allowed")
	// ErrInvalidBitrate indicates a custom bitrate that is not a positive integer.
	ErrInvalidBitrate = errors.New("invalid bitrate")
	// ErrInvalidSeek indicates a from/to bound that is not an ffmpeg time.
	ErrInvalidSeek = errors.New("invalid seek bound")
)

// MediaRequest is one download request as submitted by the user.
type MediaRequest struct {
	URL           string
	Password      string
	Audio         bool
	CustomConvert bool
	CustomFormat  string
	CustomBitrate string
	Seek          downloader.Seek
	// WithBody is false for methods that only want headers.
	WithBody bool
}

// ParseRequest builds a MediaRequest from query/form values.
func ParseRequest(method string, form url.Values) MediaRequest {
	return MediaRequest{
		URL:           strings.TrimSpace(form.Get("url")),
		Password:      form.Get("password"),
		Audio:         truthy(form.Get("audio")),
		CustomConvert: form.Has("customConvert"),
		CustomFormat:  strings.ToLower(strings.TrimSpace(form.Get("customFormat"))),
		CustomBitrate: strings.TrimSpace(form.Get("customBitrate")),
		Seek: downloader.Seek{
			From: strings.TrimSpace(form.Get("from")),
			To:   strings.TrimSpace(form.Get("to")),
		},
		WithBody: method == http.MethodGet || method == http.MethodPost,
	}
}

// HasSeek reports whether the user asked for a time range. Any non-blank
// bound counts, "0" included: an explicit start of zero still asks for a cut.
func (r MediaRequest) HasSeek() bool {
	return !r.Seek.IsZero()
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}

// [HH:][MM:]SS[.frac], the ffmpeg duration syntax without a sign.
var seekPattern = regexp.MustCompile(`^(\d+:)?(\d{1,2}:)?\d+(\.\d+)?$`)

func validSeek(s downloader.Seek) bool {
	for _, bound := range []string{s.From, s.To} {
		if bound != "" && !seekPattern.MatchString(bound) {
			return false
		}
	}
	return true
}
