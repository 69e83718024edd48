package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/streamdl/internal/core/downloader"
	"github.com/guiyumin/streamdl/internal/dispatch"
	"github.com/sirupsen/logrus"
)

// handleDownload answers /download and /redirect
func (s *Server) handleDownload(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		s.log.WithError(err).Debug("unreadable form")
		s.displayError(c, http.StatusBadRequest, s.t.Errors.InvalidRequest)
		return
	}

	req := dispatch.ParseRequest(c.Request.Method, c.Request.Form)
	out := s.dispatcher.Dispatch(c.Request.Context(), req)

	switch out.Kind {
	case dispatch.OutcomeRedirect:
		c.Redirect(http.StatusFound, out.Location)
	case dispatch.OutcomeStream:
		s.writeStream(c, out.Stream)
	case dispatch.OutcomePasswordChallenge:
		s.passwordPrompt(c)
	case dispatch.OutcomeWrongPassword:
		s.displayError(c, http.StatusForbidden, s.t.Errors.WrongPassword)
	case dispatch.OutcomePlaylistUnsupported:
		s.displayError(c, http.StatusUnprocessableEntity, s.t.Errors.PlaylistConversion)
	case dispatch.OutcomeProtocolUnsupported:
		message := s.t.Errors.M3U8Conversion
		if out.Protocol == dispatch.ProtocolDASH {
			message = s.t.Errors.DASHConversion
		}
		s.displayError(c, http.StatusUnprocessableEntity, message)
	default:
		_ = c.Error(out.Err)
	}
}

// passwordPrompt asks for the video password and re-submits every other
// download parameter with it.
func (s *Server) passwordPrompt(c *gin.Context) {
	fields := map[string]string{}
	for name, values := range c.Request.Form {
		if name != "password" && len(values) > 0 {
			fields[name] = values[0]
		}
	}
	c.HTML(http.StatusUnauthorized, "password.tmpl", gin.H{
		"Title":  s.t.UI.PasswordTitle,
		"T":      s.t.UI,
		"Fields": fields,
	})
}

// writeStream sends the handle's headers and, if present, its body.
// A body whose producer fails on Close was truncated even if it read to EOF.
func (s *Server) writeStream(c *gin.Context, h *dispatch.StreamHandle) {
	for key, values := range h.Header() {
		c.Writer.Header()[key] = values
	}
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	if h.Body == nil {
		return
	}

	n, err := copyStream(c.Request.Context(), c.Writer, h.Body)
	closeErr := h.Close()
	log := s.log.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"filename":   h.Filename,
		"bytes":      n,
	})
	if err != nil {
		log.WithError(err).Warn("stream interrupted")
		return
	}
	if closeErr != nil {
		log.WithError(closeErr).Warn("stream truncated")
		return
	}
	log.Debug("stream complete")
}

// copyStream forwards r to w chunk by chunk, flushing each one. It stops on
// the first write error or when ctx is done.
func copyStream(ctx context.Context, w gin.ResponseWriter, r io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			m, writeErr := w.Write(buf[:n])
			written += int64(m)
			if writeErr != nil {
				return written, fmt.Errorf("write response: %w", writeErr)
			}
			w.Flush()
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("read stream: %w", readErr)
		}
	}
}

// handleInfo returns the resolved metadata of a url as JSON
func (s *Server) handleInfo(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Data:    nil,
			Message: "url parameter is required",
		})
		return
	}

	format := c.DefaultQuery("format", s.cfg.DefaultFormat)
	video, err := s.lib.GetVideo(url, format, c.Query("password"))
	if err == nil {
		video, err = s.lib.Fetch(c.Request.Context(), video)
	}
	if err != nil {
		switch {
		case errors.Is(err, downloader.ErrPasswordRequired):
			c.JSON(http.StatusUnauthorized, Response{Code: 401, Data: nil, Message: "password required"})
		case errors.Is(err, downloader.ErrWrongPassword):
			c.JSON(http.StatusForbidden, Response{Code: 403, Data: nil, Message: s.t.Errors.WrongPassword})
		default:
			_ = c.Error(err)
		}
		return
	}

	info := video.Info()
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"title":     info.Title,
			"id":        info.ID,
			"extractor": info.Extractor,
			"format":    video.Format(),
			"format_id": info.FormatID,
			"ext":       info.Ext,
			"protocol":  info.Protocol,
			"filename":  video.Filename(),
			"thumbnail": info.Thumbnail,
			"duration":  info.Duration,
			"playlist":  video.IsPlaylist(),
			"urls":      video.URLs(),
		},
		Message: "video resolved",
	})
}
