package downloader

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Info is the subset of the extractor's JSON dump that streamdl consumes.
type Info struct {
	Type             string            `json:"_type"`
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	WebpageURL       string            `json:"webpage_url"`
	Extractor        string            `json:"extractor_key"`
	FormatID         string            `json:"format_id"`
	Ext              string            `json:"ext"`
	Protocol         string            `json:"protocol"`
	URL              string            `json:"url"`
	Filename         string            `json:"_filename"`
	Thumbnail        string            `json:"thumbnail"`
	Duration         float64           `json:"duration"`
	HTTPHeaders      map[string]string `json:"http_headers"`
	RequestedFormats []Format          `json:"requested_formats"`
}

// Format is one of the streams merged into a requested format.
type Format struct {
	FormatID    string            `json:"format_id"`
	URL         string            `json:"url"`
	Ext         string            `json:"ext"`
	Protocol    string            `json:"protocol"`
	HTTPHeaders map[string]string `json:"http_headers"`
}

// Video is a page URL bound to a requested format. A Video never changes:
// WithFormat and WithInfo return new values.
type Video struct {
	webpageURL string
	format     string
	password   string
	info       *Info
}

// NewVideo binds url and format without contacting the extractor.
func NewVideo(url, format, password string) *Video {
	return &Video{webpageURL: url, format: format, password: password}
}

// WithFormat returns an unresolved copy asking for another format.
func (v *Video) WithFormat(format string) *Video {
	return &Video{webpageURL: v.webpageURL, format: format, password: v.password}
}

// WithInfo returns a resolved copy carrying info.
func (v *Video) WithInfo(info Info) *Video {
	return &Video{webpageURL: v.webpageURL, format: v.format, password: v.password, info: &info}
}

func (v *Video) WebpageURL() string { return v.webpageURL }
func (v *Video) Format() string     { return v.format }
func (v *Video) Password() string   { return v.password }

// Resolved reports whether the extractor has already been consulted.
func (v *Video) Resolved() bool { return v.info != nil }

// Info returns the extractor data, zero when unresolved.
func (v *Video) Info() Info {
	if v.info == nil {
		return Info{}
	}
	return *v.info
}

func (v *Video) Ext() string      { return v.Info().Ext }
func (v *Video) Protocol() string { return v.Info().Protocol }
func (v *Video) Title() string    { return v.Info().Title }

// IsPlaylist reports whether the url resolved to a playlist.
func (v *Video) IsPlaylist() bool {
	return v.Info().Type == "playlist"
}

// URLs returns the media urls: two for a merged video+audio format.
func (v *Video) URLs() []string {
	info := v.Info()
	if len(info.RequestedFormats) > 0 {
		return lo.FilterMap(info.RequestedFormats, func(f Format, _ int) (string, bool) {
			return f.URL, f.URL != ""
		})
	}
	if info.URL == "" {
		return nil
	}
	return []string{info.URL}
}

// Protocols returns the protocol of every stream that makes up the format.
func (v *Video) Protocols() []string {
	info := v.Info()
	if len(info.RequestedFormats) > 0 {
		return lo.Map(info.RequestedFormats, func(f Format, _ int) string { return f.Protocol })
	}
	return strings.Split(info.Protocol, "+")
}

// HTTPHeaders returns the headers the media host expects.
func (v *Video) HTTPHeaders() map[string]string {
	info := v.Info()
	if len(info.HTTPHeaders) > 0 {
		return info.HTTPHeaders
	}
	if len(info.RequestedFormats) > 0 {
		return info.RequestedFormats[0].HTTPHeaders
	}
	return nil
}

var unsafeFilename = regexp.MustCompile(`[^\pL\pN._-]+`)

// Filename returns the download file name proposed by the extractor.
func (v *Video) Filename() string {
	info := v.Info()
	if info.Filename != "" {
		return filepath.Base(info.Filename)
	}
	name := strings.Trim(unsafeFilename.ReplaceAllString(info.Title, "_"), "_")
	if name == "" {
		name = info.ID
	}
	if name == "" {
		name = "video"
	}
	if info.Ext == "" {
		return name
	}
	return name + "." + info.Ext
}

// FilenameWithExtension swaps the file name's extension for ext.
func (v *Video) FilenameWithExtension(ext string) string {
	name := v.Filename()
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + ext
}

var unconvertibleProtocols = []string{"m3u8", "m3u8_native", "http_dash_segments"}

// Convertible fails when the video cannot be piped through a converter.
func (v *Video) Convertible() error {
	if v.IsPlaylist() {
		return ErrPlaylistConversion
	}
	for _, p := range v.Protocols() {
		if lo.Contains(unconvertibleProtocols, p) {
			return &ProtocolConversionError{Protocol: p}
		}
	}
	return nil
}

// IsSegmented reports whether the format is delivered as an HLS manifest.
func (v *Video) IsSegmented() bool {
	return lo.Contains([]string{"m3u8", "m3u8_native"}, v.Protocol())
}

// AddHTTPToFormat restricts every alternative of format to plain http(s)
// protocols, so the resulting url can be handed to a browser.
func AddHTTPToFormat(format string) string {
	var out []string
	for _, sub := range strings.Split(format, "/") {
		out = append(out, sub+"[protocol=https]", sub+"[protocol=http]")
	}
	return strings.Join(out, "/")
}
