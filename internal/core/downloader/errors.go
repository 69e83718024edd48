package downloader

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyURL indicates GetVideo was called without a URL.
	ErrEmptyURL = errors.New("empty url")
	// ErrPasswordRequired indicates the video is password protected.
	ErrPasswordRequired = errors.New("password required")
	// ErrWrongPassword indicates the supplied video password was rejected.
	ErrWrongPassword = errors.New("wrong password")
	// ErrPlaylistConversion indicates a playlist was asked to be converted.
	ErrPlaylistConversion = errors.New("conversion of playlists is not supported")
	// ErrProtocolConversion indicates the selected format's protocol cannot be converted.
	ErrProtocolConversion = errors.New("protocol conversion not supported")
	// ErrRemuxDisabled indicates a merge of two formats was refused by configuration.
	ErrRemuxDisabled = errors.New("remux mode is disabled")
	// ErrNotMergedFormat indicates a remux was asked for a single-url format.
	ErrNotMergedFormat = errors.New("format does not have two urls")
	// ErrExtractionFailed indicates the extractor could not resolve the url/format.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrProcessSpawn indicates an external process could not be started.
	ErrProcessSpawn = errors.New("process spawn failed")
)

// ProtocolConversionError names the protocol that blocked a conversion.
type ProtocolConversionError struct {
	Protocol string
}

func (e *ProtocolConversionError) Error() string {
	return fmt.Sprintf("%s: protocol=%s", ErrProtocolConversion, e.Protocol)
}

func (e *ProtocolConversionError) Unwrap() error {
	return ErrProtocolConversion
}

// ExtractionError carries the extractor's diagnostic output.
type ExtractionError struct {
	Output string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", ErrExtractionFailed, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrExtractionFailed, e.Output)
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailed
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ProcessError wraps a failure to start an external binary.
type ProcessError struct {
	Name string
	Err  error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrProcessSpawn, e.Name, e.Err)
}

func (e *ProcessError) Is(target error) bool {
	return target == ErrProcessSpawn
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// UpstreamStatusError indicates the media host answered with an unusable status.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream http status=%d", e.StatusCode)
}

const (
	passwordRequiredMessage = "This video is protected by a password, use the --video-password option"
	wrongPasswordMessage    = "ERROR: Wrong password"
)

// mapExtractorError turns extractor stderr into one of the package errors.
func mapExtractorError(stderr string, err error) error {
	out := strings.TrimSpace(stderr)
	switch {
	case strings.Contains(out, passwordRequiredMessage):
		return ErrPasswordRequired
	case strings.Contains(out, wrongPasswordMessage):
		return ErrWrongPassword
	}
	return &ExtractionError{Output: out, Err: err}
}
