package uploads

import (
	"mime/multipart"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tiktik-live/backend/pkg/metrics"
	"github.com/tiktik-live/backend/pkg/response"
	"github.com/tiktik-live/backend/pkg/storage"
)

// PresignRequest is the body for POST /uploads/presign.
type PresignRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Kind        string `json:"kind"` // video | short | live
}

// Handler handles media upload endpoints. Files land in S3; playback uses the
// returned public URL.
type Handler struct {
	s3      *storage.S3
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewHandler creates an uploads handler.
func NewHandler(s3 *storage.S3, logger *zap.Logger, m *metrics.Metrics) *Handler {
	return &Handler{s3: s3, logger: logger, metrics: m}
}

func folderForKind(kind string) string {
	switch kind {
	case "short":
		return storage.FolderShorts
	case "live":
		return storage.FolderLive
	default:
		return storage.FolderVideos
	}
}

func (h *Handler) acceptFile(c *gin.Context) (*multipart.FileHeader, bool) {
	file, err := c.FormFile("video")
	if err != nil {
		response.BadRequest(c, "video file required")
		return nil, false
	}
	if file.Size > storage.MaxVideoFileSize {
		response.BadRequest(c, "file exceeds 500MB limit")
		return nil, false
	}
	contentType := file.Header.Get("Content-Type")
	if !storage.ValidateVideoType(contentType, file.Filename) {
		response.BadRequest(c, "unsupported video format")
		return nil, false
	}
	return file, true
}

func (h *Handler) upload(c *gin.Context, folder, kind string) {
	file, ok := h.acceptFile(c)
	if !ok {
		return
	}
	src, err := file.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer src.Close()

	key := storage.MediaKey(folder, file.Filename, time.Now())
	url, err := h.s3.Upload(c.Request.Context(), key, file.Header.Get("Content-Type"), src, file.Size)
	if err != nil {
		h.logger.Error("upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "upload failed")
		return
	}
	h.metrics.IncUploads(kind)
	h.logger.Info("media uploaded",
		zap.String("key", key),
		zap.String("kind", kind),
		zap.Int64("size", file.Size))
	response.Created(c, gin.H{"url": url, "key": key})
}

// UploadVideo handles POST /uploads/video (multipart form, field "video").
func (h *Handler) UploadVideo(c *gin.Context) {
	h.upload(c, storage.FolderVideos, "video")
}

// UploadShort handles POST /uploads/short.
func (h *Handler) UploadShort(c *gin.Context) {
	h.upload(c, storage.FolderShorts, "short")
}

// SaveLiveStream handles POST /uploads/live, storing a finished broadcast's
// file so it can be replayed as a regular video.
func (h *Handler) SaveLiveStream(c *gin.Context) {
	h.upload(c, storage.FolderLive, "live")
}

// Presign handles POST /uploads/presign. Large clients upload straight to S3
// with the signed URL instead of proxying bytes through the API.
func (h *Handler) Presign(c *gin.Context) {
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateVideoType(req.ContentType, req.Filename) {
		response.BadRequest(c, "unsupported video format")
		return
	}
	key := storage.MediaKey(folderForKind(req.Kind), req.Filename, time.Now())
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), key, req.ContentType)
	if err != nil {
		h.logger.Error("presign failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to generate upload url")
		return
	}
	response.OK(c, gin.H{
		"upload_url": url,
		"key":        key,
		"public_url": h.s3.PublicObjectURL(key),
		"expires_in": int(h.s3.PresignExpire().Seconds()),
	})
}

// Config handles GET /uploads/config, the client-facing upload limits.
func (h *Handler) Config(c *gin.Context) {
	types := make([]string, 0, len(storage.AllowedVideoTypes))
	for t := range storage.AllowedVideoTypes {
		types = append(types, t)
	}
	response.OK(c, gin.H{
		"max_file_size": storage.MaxVideoFileSize,
		"allowed_types": types,
	})
}
