package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/guiyumin/streamdl/internal/core/downloader"
	"github.com/sirupsen/logrus"
)

// StreamHandle is a response ready to be written: headers and, for methods
// that carry a body, the live media stream.
type StreamHandle struct {
	ContentType string
	Filename    string
	// Body is nil when the handle was opened without a body.
	Body io.ReadCloser
}

// Header returns the response headers. They do not depend on Body.
func (h *StreamHandle) Header() http.Header {
	header := http.Header{}
	header.Set("Content-Type", h.ContentType)
	header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, h.Filename))
	return header
}

// Close releases the body and whatever process feeds it.
func (h *StreamHandle) Close() error {
	if h.Body == nil {
		return nil
	}
	return h.Body.Close()
}

// Pipeline opens the stream behind a Plan.
type Pipeline struct {
	lib   Library
	remux bool
	log   *logrus.Entry
}

func NewPipeline(lib Library, remux bool) *Pipeline {
	return &Pipeline{lib: lib, remux: remux, log: logrus.WithField("component", "pipeline")}
}

// Open returns the handle for plan. Nothing is spawned or requested
// upstream unless withBody is set.
func (p *Pipeline) Open(ctx context.Context, plan Plan, withBody bool) (*StreamHandle, error) {
	if plan.Kind == PlanRedirect {
		return nil, fmt.Errorf("plan %s has no stream", plan.Kind)
	}
	if plan.Kind == PlanRemux && !p.remux {
		return nil, downloader.ErrRemuxDisabled
	}
	if plan.Kind == PlanAudio || plan.Kind == PlanCustom {
		if err := plan.Video.Convertible(); err != nil {
			return nil, err
		}
	}

	h := &StreamHandle{
		ContentType: contentType(plan),
		Filename:    strings.ReplaceAll(plan.Video.FilenameWithExtension(plan.Container), `"`, ""),
	}
	if !withBody {
		return h, nil
	}

	body, err := p.openBody(ctx, plan)
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"plan":     plan.Kind.String(),
		"filename": h.Filename,
	}).Debug("stream opened")
	h.Body = body
	return h, nil
}

func (p *Pipeline) openBody(ctx context.Context, plan Plan) (io.ReadCloser, error) {
	switch plan.Kind {
	case PlanAudio:
		return p.lib.AudioStream(ctx, plan.Video, plan.Bitrate, plan.Seek)
	case PlanCustom:
		return p.lib.ConvertedStream(ctx, plan.Video, plan.Bitrate, plan.Container)
	case PlanRemux:
		return p.lib.RemuxStream(ctx, plan.Video)
	case PlanM3U:
		return p.lib.M3uStream(ctx, plan.Video)
	default:
		return p.lib.HTTPStream(ctx, plan.Video)
	}
}

func contentType(plan Plan) string {
	switch {
	case plan.Kind == PlanRemux:
		return "video/x-matroska"
	case plan.Kind == PlanCustom:
		return "video/" + plan.Container
	case plan.Container == "mp3":
		return "audio/mpeg"
	default:
		return "video/" + plan.Container
	}
}
