package server

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) handleUpload(c *gin.Context) {
	if s.deps.Pinner == nil {
		writeError(c, http.StatusServiceUnavailable, "upload is not configured")
		return
	}
	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeValidation(c, []fieldError{{Field: "image", Message: "File is too large"}})
			return
		}
		writeValidation(c, []fieldError{{Field: "image", Message: "File is required"}})
		return
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		writeValidation(c, []fieldError{{Field: "image", Message: "Only image files are allowed"}})
		return
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	path := filepath.Join(s.cfg.TmpDir, name)
	// removed on every path below, including a failed spool
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logFor(c).WithError(err).WithField("path", path).Warn("remove upload temp file")
		}
	}()
	if err := spool(fh, path); err != nil {
		s.logFor(c).WithError(err).Error("spool upload")
		writeError(c, http.StatusInternalServerError, "failed to store upload")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()
	res, err := s.deps.Pinner.PinFile(ctx, path, name)
	if err != nil {
		s.logFor(c).WithError(err).WithField("file", name).Error("pin upload")
		writeError(c, http.StatusBadGateway, "failed to pin file")
		return
	}
	s.logFor(c).WithField("hash", res.IpfsHash).WithField("file", name).Info("upload pinned")
	writeJSON(c, http.StatusOK, uploadResponse{
		Success: true,
		Hash:    res.IpfsHash,
		URL:     s.deps.Pinner.GatewayURL(res.IpfsHash),
	})
}

func spool(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
