package web

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
)

const maxPhotoSize = 20 * 1024 * 1024 // 20 MB

// allowedImageTypes is the set of MIME types accepted for uploaded photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniff spec (and
// therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	propertyID := r.PathValue("id")
	evaluationID := r.PathValue("evaluationID")

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+maxJSONBody)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		s.badRequest(w, "failed to parse form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		s.badRequest(w, "image file required")
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("read upload failed", "property_id", propertyID, "evaluation_id", evaluationID, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read file"})
		return
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		s.badRequest(w, "unsupported image format")
		return
	}

	photo, err := s.service.UploadPhoto(r.Context(), propertyID, r.PathValue("itemID"), evaluationID, mimeType, bytes.NewReader(imageData))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, photo)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	reader, mimeType, err := s.service.Photo(r.Context(), r.PathValue("id"), r.PathValue("evaluationID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "evaluation_id", r.PathValue("evaluationID"), "error", err)
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
