package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/guiyumin/streamdl/internal/core/config"
	. "github.com/smartystreets/goconvey/convey"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	stdout  string
	stderr  string
	err     error
	outputs []call
	starts  []call
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.outputs = append(f.outputs, call{name, args})
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func (f *fakeRunner) Start(_ context.Context, name string, args ...string) (io.ReadCloser, error) {
	f.starts = append(f.starts, call{name, args})
	return io.NopCloser(strings.NewReader("media")), nil
}

const singleJSON = `{"id":"abc","title":"My clip","ext":"mp4","protocol":"https","url":"https://cdn.example/v.mp4","_filename":"My_clip-abc.mp4","format_id":"18"}`

const mergedJSON = `{"id":"abc","title":"My clip","ext":"webm","protocol":"https+https","_filename":"My_clip-abc.webm",
"requested_formats":[{"format_id":"248","url":"https://cdn.example/video","protocol":"https"},{"format_id":"251","url":"https://cdn.example/audio","protocol":"https"}]}`

func newTestDownloader(r Runner) *Downloader {
	return New(config.DownloaderConfig{
		YoutubeDL: "yt-dlp",
		FFmpeg:    "ffmpeg",
		Params:    []string{"--no-warnings"},
	}, WithRunner(r), WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
}

func TestFetch(t *testing.T) {
	Convey("Downloader Fetch", t, func() {
		ctx := context.Background()
		runner := &fakeRunner{stdout: singleJSON}
		d := newTestDownloader(runner)

		Convey("GetVideo should reject an empty url", func() {
			_, err := d.GetVideo("", "best", "")
			So(errors.Is(err, ErrEmptyURL), ShouldBeTrue)
		})

		Convey("GetVideo should not run the extractor", func() {
			v, err := d.GetVideo("https://example.com/w", "best", "")
			So(err, ShouldBeNil)
			So(v.Resolved(), ShouldBeFalse)
			So(runner.outputs, ShouldBeEmpty)
		})

		Convey("Should pass format and password to the extractor", func() {
			v, _ := d.GetVideo("https://example.com/w", "mp3", "secret")
			got, err := d.Fetch(ctx, v)
			So(err, ShouldBeNil)
			So(got.Resolved(), ShouldBeTrue)
			So(v.Resolved(), ShouldBeFalse)
			So(runner.outputs, ShouldHaveLength, 1)
			So(runner.outputs[0].name, ShouldEqual, "yt-dlp")
			So(runner.outputs[0].args, ShouldResemble, []string{
				"--no-warnings", "--dump-single-json", "--format", "mp3",
				"--video-password", "secret", "https://example.com/w",
			})
			So(got.Filename(), ShouldEqual, "My_clip-abc.mp4")
			So(got.URLs(), ShouldResemble, []string{"https://cdn.example/v.mp4"})
		})

		Convey("Should map password errors", func() {
			runner.err = errors.New("exit status 1")
			runner.stderr = "ERROR: [vimeo] 123: This video is protected by a password, use the --video-password option"
			_, err := d.Fetch(ctx, NewVideo("https://vimeo.com/123", "best", ""))
			So(errors.Is(err, ErrPasswordRequired), ShouldBeTrue)

			runner.stderr = "ERROR: Wrong password\n"
			_, err = d.Fetch(ctx, NewVideo("https://vimeo.com/123", "best", "nope"))
			So(errors.Is(err, ErrWrongPassword), ShouldBeTrue)
		})

		Convey("Should report other failures as extraction errors", func() {
			runner.err = errors.New("exit status 1")
			runner.stderr = "ERROR: Requested format is not available"
			_, err := d.Fetch(ctx, NewVideo("https://example.com/w", "mp3", ""))
			So(errors.Is(err, ErrExtractionFailed), ShouldBeTrue)

			var ee *ExtractionError
			So(errors.As(err, &ee), ShouldBeTrue)
			So(ee.Output, ShouldContainSubstring, "not available")
		})
	})
}

func TestStreams(t *testing.T) {
	Convey("Downloader streams", t, func() {
		ctx := context.Background()
		runner := &fakeRunner{stdout: singleJSON}
		d := newTestDownloader(runner)
		v := NewVideo("https://example.com/w", "bestaudio/best", "")

		Convey("AudioStream should seek and encode mp3", func() {
			rc, err := d.AudioStream(ctx, v, 192, Seek{From: "10", To: "20"})
			So(err, ShouldBeNil)
			defer rc.Close()

			So(runner.starts, ShouldHaveLength, 1)
			args := strings.Join(runner.starts[0].args, " ")
			So(runner.starts[0].name, ShouldEqual, "ffmpeg")
			So(args, ShouldStartWith, "-v error -ss 10 -user_agent")
			So(args, ShouldContainSubstring, "-i https://cdn.example/v.mp4 -to 20")
			So(args, ShouldEndWith, "-vn -b:a 192k -f mp3 pipe:1")
		})

		Convey("AudioStream should refuse HLS", func() {
			runner.stdout = strings.Replace(singleJSON, `"protocol":"https"`, `"protocol":"m3u8_native"`, 1)
			_, err := d.AudioStream(ctx, v, 128, Seek{})
			var pe *ProtocolConversionError
			So(errors.As(err, &pe), ShouldBeTrue)
			So(pe.Protocol, ShouldEqual, "m3u8_native")
			So(runner.starts, ShouldBeEmpty)
		})

		Convey("ConvertedStream should refuse playlists", func() {
			runner.stdout = `{"_type":"playlist","title":"list"}`
			_, err := d.ConvertedStream(ctx, v, 128, "ogg")
			So(errors.Is(err, ErrPlaylistConversion), ShouldBeTrue)
			So(errors.Is(err, ErrExtractionFailed), ShouldBeFalse)
			So(runner.starts, ShouldBeEmpty)
		})

		Convey("AudioStream should refuse a flat playlist without urls", func() {
			runner.stdout = `{"_type":"playlist","title":"list"}`
			_, err := d.AudioStream(ctx, NewVideo("https://example.com/list", "bestaudio/best", ""), 128, Seek{})
			So(errors.Is(err, ErrPlaylistConversion), ShouldBeTrue)
			So(errors.Is(err, ErrExtractionFailed), ShouldBeFalse)
			So(runner.starts, ShouldBeEmpty)
		})

		Convey("AudioStream should still report a format without urls", func() {
			runner.stdout = `{"title":"clip","protocol":"https"}`
			_, err := d.AudioStream(ctx, v, 128, Seek{})
			So(errors.Is(err, ErrExtractionFailed), ShouldBeTrue)
		})

		Convey("ConvertedStream should use the requested container", func() {
			_, err := d.ConvertedStream(ctx, v, 128, "ogg")
			So(err, ShouldBeNil)
			So(strings.Join(runner.starts[0].args, " "), ShouldEndWith, "-b:a 128k -f ogg pipe:1")
		})

		Convey("RemuxStream should need two urls", func() {
			_, err := d.RemuxStream(ctx, v)
			So(errors.Is(err, ErrNotMergedFormat), ShouldBeTrue)

			runner.stdout = mergedJSON
			_, err = d.RemuxStream(ctx, NewVideo("https://example.com/w", "bestvideo+bestaudio", ""))
			So(err, ShouldBeNil)
			args := strings.Join(runner.starts[0].args, " ")
			So(args, ShouldContainSubstring, "-i https://cdn.example/video")
			So(args, ShouldContainSubstring, "-i https://cdn.example/audio")
			So(args, ShouldEndWith, "-f matroska pipe:1")
		})

		Convey("M3uStream should copy HLS into mpegts", func() {
			runner.stdout = strings.Replace(singleJSON, `"protocol":"https"`, `"protocol":"m3u8"`, 1)
			_, err := d.M3uStream(ctx, v)
			So(err, ShouldBeNil)
			So(strings.Join(runner.starts[0].args, " "), ShouldEndWith, "-f mpegts -c copy -bsf:a aac_adtstoasc pipe:1")
		})
	})
}

func TestHTTPStream(t *testing.T) {
	Convey("Downloader HTTPStream", t, func() {
		var hits int32
		failures := int32(1)
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&hits, 1)
			if r.URL.Path == "/gone" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if n <= failures {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = io.WriteString(w, "payload")
		}))
		Reset(upstream.Close)

		runner := &fakeRunner{}
		d := newTestDownloader(runner)
		d.cfg.Retries = 3

		Convey("Should retry a 5xx before streaming", func() {
			runner.stdout = `{"ext":"mp4","protocol":"https","url":"` + upstream.URL + `/v.mp4"}`
			rc, err := d.HTTPStream(context.Background(), NewVideo("https://example.com/w", "best", ""))
			So(err, ShouldBeNil)
			defer rc.Close()
			body, _ := io.ReadAll(rc)
			So(string(body), ShouldEqual, "payload")
			So(atomic.LoadInt32(&hits), ShouldEqual, 2)
		})

		Convey("Should not retry a 4xx", func() {
			runner.stdout = `{"ext":"mp4","protocol":"https","url":"` + upstream.URL + `/gone"}`
			_, err := d.HTTPStream(context.Background(), NewVideo("https://example.com/w", "best", ""))
			var se *UpstreamStatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.StatusCode, ShouldEqual, http.StatusNotFound)
			So(atomic.LoadInt32(&hits), ShouldEqual, 1)
		})
	})
}
