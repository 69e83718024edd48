// Package downloader drives the external media extractor (yt-dlp) and the
// ffmpeg processes that convert or remux its output.
package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cenkalti/backoff/v4"
	"github.com/guiyumin/streamdl/internal/core/config"
	"github.com/sirupsen/logrus"
)

// DefaultUserAgent is sent to media hosts that did not ask for a specific one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Seek bounds a conversion in ffmpeg time syntax. Empty fields are unbounded.
type Seek struct {
	From string
	To   string
}

// IsZero reports whether no bound is set.
func (s Seek) IsZero() bool {
	return s.From == "" && s.To == ""
}

// Downloader resolves videos and opens media streams.
type Downloader struct {
	cfg    config.DownloaderConfig
	runner Runner
	client *http.Client
	log    *logrus.Entry

	// newBackOff builds the retry policy for opening upstream media.
	newBackOff func() backoff.BackOff
}

// Option customises a Downloader.
type Option func(*Downloader)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(d *Downloader) { d.runner = r }
}

// WithHTTPClient replaces the client used to proxy upstream media.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithBackOff replaces the upstream retry policy.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(d *Downloader) { d.newBackOff = fn }
}

// New returns a Downloader for cfg.
func New(cfg config.DownloaderConfig, opts ...Option) *Downloader {
	log := logrus.WithField("component", "downloader")
	d := &Downloader{
		cfg:    cfg,
		runner: &ExecRunner{Log: log},
		client: &http.Client{
			Timeout: 0,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
		log: log,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cfg.YoutubeDL == "" {
		d.cfg.YoutubeDL = "yt-dlp"
	}
	if d.cfg.FFmpeg == "" {
		d.cfg.FFmpeg = "ffmpeg"
	}
	if d.cfg.FFmpegVerbosity == "" {
		d.cfg.FFmpegVerbosity = "error"
	}
	return d
}

// GetVideo binds url to format. The extractor is not consulted until Fetch.
func (d *Downloader) GetVideo(url, format, password string) (*Video, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	return NewVideo(url, format, password), nil
}

// Fetch asks the extractor about v and returns a resolved copy.
func (d *Downloader) Fetch(ctx context.Context, v *Video) (*Video, error) {
	if v.Resolved() {
		return v, nil
	}

	args := append([]string{}, d.cfg.Params...)
	args = append(args, "--dump-single-json")
	if v.Format() != "" {
		args = append(args, "--format", v.Format())
	}
	if v.Password() != "" {
		args = append(args, "--video-password", v.Password())
	}
	args = append(args, v.WebpageURL())

	log := d.log.WithFields(logrus.Fields{"url": v.WebpageURL(), "format": v.Format()})
	log.Debug("resolving video")

	stdout, stderr, err := d.runner.Output(ctx, d.cfg.YoutubeDL, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		mapped := mapExtractorError(string(stderr), err)
		log.WithError(mapped).Debug("extractor failed")
		return nil, mapped
	}

	var info Info
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, &ExtractionError{Err: fmt.Errorf("decode extractor output: %w", err)}
	}
	return v.WithInfo(info), nil
}

func (d *Downloader) resolve(ctx context.Context, v *Video) (*Video, []string, error) {
	v, err := d.Fetch(ctx, v)
	if err != nil {
		return nil, nil, err
	}
	urls, err := mediaURLs(v)
	if err != nil {
		return nil, nil, err
	}
	return v, urls, nil
}

// resolveConvertible is resolve for inputs fed to a converter. Playlists and
// segmented protocols are refused before the missing url check, since a flat
// playlist carries no url at all.
func (d *Downloader) resolveConvertible(ctx context.Context, v *Video) (*Video, []string, error) {
	v, err := d.Fetch(ctx, v)
	if err != nil {
		return nil, nil, err
	}
	if err := v.Convertible(); err != nil {
		return nil, nil, err
	}
	urls, err := mediaURLs(v)
	if err != nil {
		return nil, nil, err
	}
	return v, urls, nil
}

func mediaURLs(v *Video) ([]string, error) {
	urls := v.URLs()
	if len(urls) == 0 {
		return nil, &ExtractionError{Err: fmt.Errorf("no media url for format %q", v.Format())}
	}
	return urls, nil
}

func (d *Downloader) inputArgs(v *Video, urls []string) []string {
	var args []string
	ua := v.HTTPHeaders()["User-Agent"]
	if ua == "" {
		ua = DefaultUserAgent
	}
	for _, u := range urls {
		args = append(args, "-user_agent", ua, "-i", u)
	}
	return args
}

// AudioStream pipes v through ffmpeg into an MP3 stream.
func (d *Downloader) AudioStream(ctx context.Context, v *Video, bitrate int, seek Seek) (io.ReadCloser, error) {
	v, urls, err := d.resolveConvertible(ctx, v)
	if err != nil {
		return nil, err
	}

	args := []string{"-v", d.cfg.FFmpegVerbosity}
	if seek.From != "" {
		args = append(args, "-ss", seek.From)
	}
	args = append(args, d.inputArgs(v, urls)...)
	if seek.To != "" {
		args = append(args, "-to", seek.To)
	}
	args = append(args,
		"-vn",
		"-b:a", strconv.Itoa(bitrate)+"k",
		"-f", "mp3",
		"pipe:1",
	)
	return d.runner.Start(ctx, d.cfg.FFmpeg, args...)
}

// ConvertedStream pipes v through ffmpeg into the given container.
func (d *Downloader) ConvertedStream(ctx context.Context, v *Video, bitrate int, format string) (io.ReadCloser, error) {
	v, urls, err := d.resolveConvertible(ctx, v)
	if err != nil {
		return nil, err
	}

	args := []string{"-v", d.cfg.FFmpegVerbosity}
	args = append(args, d.inputArgs(v, urls)...)
	args = append(args,
		"-b:a", strconv.Itoa(bitrate)+"k",
		"-f", format,
		"pipe:1",
	)
	return d.runner.Start(ctx, d.cfg.FFmpeg, args...)
}

// M3uStream copies an HLS stream into MPEG-TS without re-encoding.
func (d *Downloader) M3uStream(ctx context.Context, v *Video) (io.ReadCloser, error) {
	v, urls, err := d.resolve(ctx, v)
	if err != nil {
		return nil, err
	}
	if !v.IsSegmented() {
		return nil, &ProtocolConversionError{Protocol: v.Protocol()}
	}

	args := []string{"-v", d.cfg.FFmpegVerbosity}
	args = append(args, d.inputArgs(v, urls[:1])...)
	args = append(args,
		"-f", "mpegts",
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"pipe:1",
	)
	return d.runner.Start(ctx, d.cfg.FFmpeg, args...)
}

// RemuxStream merges the video and audio urls of v into one Matroska stream.
func (d *Downloader) RemuxStream(ctx context.Context, v *Video) (io.ReadCloser, error) {
	v, urls, err := d.resolve(ctx, v)
	if err != nil {
		return nil, err
	}
	if len(urls) != 2 {
		return nil, ErrNotMergedFormat
	}

	args := []string{"-v", d.cfg.FFmpegVerbosity}
	args = append(args, d.inputArgs(v, urls)...)
	args = append(args,
		"-c", "copy",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-f", "matroska",
		"pipe:1",
	)
	return d.runner.Start(ctx, d.cfg.FFmpeg, args...)
}
