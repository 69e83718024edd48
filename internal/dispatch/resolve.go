package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/guiyumin/streamdl/internal/core/config"
	"github.com/guiyumin/streamdl/internal/core/downloader"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Library is the extractor/converter the dispatcher drives.
type Library interface {
	GetVideo(url, format, password string) (*downloader.Video, error)
	Fetch(ctx context.Context, v *downloader.Video) (*downloader.Video, error)
	AudioStream(ctx context.Context, v *downloader.Video, bitrate int, seek downloader.Seek) (io.ReadCloser, error)
	ConvertedStream(ctx context.Context, v *downloader.Video, bitrate int, format string) (io.ReadCloser, error)
	M3uStream(ctx context.Context, v *downloader.Video) (io.ReadCloser, error)
	RemuxStream(ctx context.Context, v *downloader.Video) (io.ReadCloser, error)
	HTTPStream(ctx context.Context, v *downloader.Video) (io.ReadCloser, error)
}

// PlanKind says how a resolved video reaches the client.
type PlanKind int

const (
	PlanRedirect PlanKind = iota
	PlanHTTP
	PlanM3U
	PlanRemux
	PlanAudio
	PlanCustom
)

func (k PlanKind) String() string {
	return [...]string{"redirect", "http", "m3u", "remux", "audio", "custom"}[k]
}

// Plan is the outcome of format resolution.
type Plan struct {
	Kind  PlanKind
	Video *downloader.Video
	// Location is set for PlanRedirect.
	Location string
	// Container is the extension of the file the client receives.
	Container string
	Bitrate   int
	Seek      downloader.Seek
}

// Resolver turns a classified request into a Plan.
type Resolver struct {
	lib Library
	cfg *config.Config
	log *logrus.Entry
}

func NewResolver(lib Library, cfg *config.Config) *Resolver {
	return &Resolver{lib: lib, cfg: cfg, log: logrus.WithField("component", "resolver")}
}

// Resolve returns the plan for req under strategy.
func (r *Resolver) Resolve(ctx context.Context, req MediaRequest, strategy Strategy) (Plan, error) {
	base, err := r.lib.GetVideo(req.URL, r.cfg.DefaultFormat, req.Password)
	if err != nil {
		return Plan{}, err
	}

	switch strategy {
	case StrategyAudio:
		return r.resolveAudio(ctx, req, base)
	case StrategyCustom:
		return r.resolveCustom(ctx, req, base)
	default:
		return r.resolveRaw(ctx, base)
	}
}

func (r *Resolver) fallbackFormat() string {
	return "bestaudio/" + r.cfg.DefaultFormat
}

func (r *Resolver) resolveAudio(ctx context.Context, req MediaRequest, base *downloader.Video) (Plan, error) {
	// seeking needs a re-encode, a direct file cannot be cut
	if req.HasSeek() {
		return r.convertAudio(ctx, req, base)
	}

	direct := base.WithFormat("mp3")
	if !r.cfg.Stream {
		direct = base.WithFormat(downloader.AddHTTPToFormat("mp3"))
	}

	v, err := r.fetchWithURL(ctx, direct)
	if errors.Is(err, downloader.ErrExtractionFailed) {
		r.log.WithField("url", req.URL).WithError(err).Info("no direct mp3, converting")
		return r.convertAudio(ctx, req, base)
	}
	if err != nil {
		return Plan{}, err
	}

	if !r.cfg.Stream {
		return Plan{Kind: PlanRedirect, Video: v, Location: v.URLs()[0], Container: "mp3"}, nil
	}
	return r.streamPlan(v, "mp3"), nil
}

func (r *Resolver) convertAudio(ctx context.Context, req MediaRequest, base *downloader.Video) (Plan, error) {
	var seek downloader.Seek
	if r.cfg.Convert.Seek {
		if !validSeek(req.Seek) {
			return Plan{}, fmt.Errorf("%w: from=%q to=%q", ErrInvalidSeek, req.Seek.From, req.Seek.To)
		}
		seek = req.Seek
	}

	v, err := r.lib.Fetch(ctx, base.WithFormat(r.fallbackFormat()))
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Kind:      PlanAudio,
		Video:     v,
		Container: "mp3",
		Bitrate:   r.cfg.Convert.AudioBitrate,
		Seek:      seek,
	}, nil
}

func (r *Resolver) resolveCustom(ctx context.Context, req MediaRequest, base *downloader.Video) (Plan, error) {
	if !lo.Contains(r.cfg.Convert.AdvancedFormats, req.CustomFormat) {
		return Plan{}, fmt.Errorf("%w: %q", ErrInvalidCustomFormat, req.CustomFormat)
	}

	bitrate := r.cfg.Convert.AudioBitrate
	if req.CustomBitrate != "" {
		n, err := strconv.Atoi(req.CustomBitrate)
		if err != nil || n <= 0 {
			return Plan{}, fmt.Errorf("%w: %q", ErrInvalidBitrate, req.CustomBitrate)
		}
		bitrate = n
	}

	v, err := r.lib.Fetch(ctx, base)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Kind: PlanCustom, Video: v, Container: req.CustomFormat, Bitrate: bitrate}, nil
}

func (r *Resolver) resolveRaw(ctx context.Context, base *downloader.Video) (Plan, error) {
	v, err := r.fetchWithURL(ctx, base)
	if err != nil {
		return Plan{}, err
	}

	if len(v.URLs()) > 1 {
		return Plan{Kind: PlanRemux, Video: v, Container: "mkv"}, nil
	}
	if !r.cfg.Stream {
		return Plan{Kind: PlanRedirect, Video: v, Location: v.URLs()[0], Container: v.Ext()}, nil
	}
	return r.streamPlan(v, v.Ext()), nil
}

func (r *Resolver) streamPlan(v *downloader.Video, container string) Plan {
	if v.IsSegmented() {
		return Plan{Kind: PlanM3U, Video: v, Container: container}
	}
	return Plan{Kind: PlanHTTP, Video: v, Container: container}
}

// fetchWithURL resolves v and treats a format without media urls as an
// extraction failure.
func (r *Resolver) fetchWithURL(ctx context.Context, v *downloader.Video) (*downloader.Video, error) {
	v, err := r.lib.Fetch(ctx, v)
	if err != nil {
		return nil, err
	}
	if len(v.URLs()) == 0 {
		return nil, &downloader.ExtractionError{Err: fmt.Errorf("no media url for format %q", v.Format())}
	}
	return v, nil
}
