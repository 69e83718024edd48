package dispatch

import (
	"errors"

	"github.com/guiyumin/streamdl/internal/core/downloader"
	"github.com/samber/lo"
)

// OutcomeKind is the final state of one download attempt.
type OutcomeKind int

const (
	OutcomeStream OutcomeKind = iota
	OutcomeRedirect
	OutcomePasswordChallenge
	OutcomeWrongPassword
	OutcomePlaylistUnsupported
	OutcomeProtocolUnsupported
	// OutcomeError carries a failure with no dedicated page.
	OutcomeError
)

func (k OutcomeKind) String() string {
	return [...]string{
		"stream", "redirect", "password_challenge", "wrong_password",
		"playlist_unsupported", "protocol_unsupported", "error",
	}[k]
}

// ProtocolKind groups the protocols that get a dedicated message.
type ProtocolKind int

const (
	ProtocolOther ProtocolKind = iota
	ProtocolSegmented
	ProtocolDASH
)

// Outcome is what the HTTP layer renders.
type Outcome struct {
	Kind     OutcomeKind
	Stream   *StreamHandle
	Location string
	Protocol ProtocolKind
	Err      error
}

var segmentedProtocols = []string{"m3u8", "m3u8_native"}

// ProtocolKindOf classifies a protocol tag.
func ProtocolKindOf(protocol string) ProtocolKind {
	switch {
	case lo.Contains(segmentedProtocols, protocol):
		return ProtocolSegmented
	case protocol == "http_dash_segments":
		return ProtocolDASH
	default:
		return ProtocolOther
	}
}

// Translate maps a resolve or open failure to an Outcome. Protocol failures
// outside the known set are passed through unchanged as OutcomeError.
func Translate(err error) Outcome {
	var protoErr *downloader.ProtocolConversionError
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeError, Err: errors.New("translate called without an error")}
	case errors.Is(err, downloader.ErrEmptyURL):
		return Outcome{Kind: OutcomeRedirect}
	case errors.Is(err, downloader.ErrPasswordRequired):
		return Outcome{Kind: OutcomePasswordChallenge, Err: err}
	case errors.Is(err, downloader.ErrWrongPassword):
		return Outcome{Kind: OutcomeWrongPassword, Err: err}
	case errors.Is(err, downloader.ErrPlaylistConversion):
		return Outcome{Kind: OutcomePlaylistUnsupported, Err: err}
	case errors.As(err, &protoErr):
		kind := ProtocolKindOf(protoErr.Protocol)
		if kind == ProtocolOther {
			return Outcome{Kind: OutcomeError, Err: err}
		}
		return Outcome{Kind: OutcomeProtocolUnsupported, Protocol: kind, Err: err}
	default:
		return Outcome{Kind: OutcomeError, Err: err}
	}
}
