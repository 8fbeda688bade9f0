/*
Package handler provides the HTTP handlers and routing for the Parley server.

This file holds the presigned-URL endpoints used by image messages. File
bytes never pass through the chat server.
*/
package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/req"
	"parley/internal/pkg/resp"
)

const (
	// MaxUploadBytes caps a single image upload.
	MaxUploadBytes = 5 * 1024 * 1024

	// PresignDuration is how long a generated URL stays valid.
	PresignDuration = 5 * time.Minute
)

// allowedMIMETypes is the set of image types accepted for upload.
var allowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// extToMIME maps allowed file extensions to their MIME type.
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// validateUpload checks size, MIME type, and extension consistency.
func validateUpload(fileName, mimeType string, fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.New(errs.ErrInvalidParams)
	}
	if fileSize > MaxUploadBytes {
		return errs.New(errs.ErrFileSizeTooLarge)
	}

	lowerMIME := strings.ToLower(mimeType)
	if _, ok := allowedMIMETypes[lowerMIME]; !ok {
		return errs.New(errs.ErrFileTypeInvalid)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	expected, ok := extToMIME[ext]
	if !ok || expected != lowerMIME {
		return errs.New(errs.ErrFileTypeInvalid)
	}

	return nil
}

// PresignUploadInput is the JSON body for requesting an upload URL.
type PresignUploadInput struct {
	RoomID   string `json:"room_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// HandlePresignUpload generates a time-limited upload URL scoped to a room
// the caller belongs to.
func HandlePresignUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.PayloadFromContext(r)
		if identity == nil {
			resp.Error(w, r, errs.New(errs.ErrUnauthorized))
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.Error(w, r, customErr)
			return
		}

		if !deps.Messages.IsMember(r.Context(), input.RoomID, identity.ID) {
			resp.Error(w, r, errs.New(errs.ErrNotRoomMember))
			return
		}

		if customErr := validateUpload(input.FileName, input.MimeType, input.FileSize); customErr != nil {
			resp.Error(w, r, customErr)
			return
		}

		ext := strings.ToLower(filepath.Ext(input.FileName))
		fileKey := fmt.Sprintf("%s/%s%s", input.RoomID, uuid.New().String(), ext)

		url, err := deps.Storage.PresignUpload(r.Context(), fileKey, input.MimeType, input.FileSize, PresignDuration)
		if err != nil {
			logx.Error(err, "Failed to presign upload", "file_key", fileKey)
			resp.Error(w, r, errs.New(errs.ErrFileStorageFailed))
			return
		}

		resp.Success(w, r, map[string]any{
			"uploadUrl": url,
			"fileKey":   fileKey,
			"expiresIn": int(PresignDuration.Seconds()),
		})
	}
}

// HandlePresignDownload generates a time-limited download URL for a key in a
// room the caller belongs to. Keys are namespaced by room id.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.PayloadFromContext(r)
		if identity == nil {
			resp.Error(w, r, errs.New(errs.ErrUnauthorized))
			return
		}

		fileKey := r.URL.Query().Get("key")
		roomID, _, found := strings.Cut(fileKey, "/")
		if !found || roomID == "" {
			resp.Error(w, r, errs.New(errs.ErrFileKeyInvalid))
			return
		}

		if !deps.Messages.IsMember(r.Context(), roomID, identity.ID) {
			resp.Error(w, r, errs.New(errs.ErrNotRoomMember))
			return
		}

		url, err := deps.Storage.PresignDownload(r.Context(), fileKey, PresignDuration)
		if err != nil {
			logx.Error(err, "Failed to presign download", "file_key", fileKey)
			resp.Error(w, r, errs.New(errs.ErrFileStorageFailed))
			return
		}

		resp.Success(w, r, map[string]any{
			"downloadUrl": url,
			"expiresIn":   int(PresignDuration.Seconds()),
		})
	}
}
