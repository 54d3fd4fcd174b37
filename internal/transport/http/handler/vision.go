package handler

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mushroom-classifier/internal/app"
	"mushroom-classifier/internal/logging"
	"mushroom-classifier/internal/transport/http/middleware"
	"mushroom-classifier/internal/transport/http/response"
	"mushroom-classifier/internal/upload"
	"mushroom-classifier/web"
)

// VisionHandler is the JSON counterpart of the /predict page.
type VisionHandler struct {
	predictions *app.PredictionService
	log         *zap.Logger
}

func NewVisionHandler(predictions *app.PredictionService, log *zap.Logger) *VisionHandler {
	return &VisionHandler{predictions: predictions, log: log}
}

func (h *VisionHandler) Predict(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	pred, err := h.predictions.Classify(c.Request.Context(), userID, formFile(c, "file"))
	if err != nil {
		if msg := upload.Message(err); msg != "" {
			response.Error(c, http.StatusBadRequest, response.CodeUploadRejected, msg)
			return
		}
		logging.FromContext(c, h.log).Error("classify upload failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "classification failed")
		return
	}

	response.OK(c, gin.H{
		"label":     pred.Label,
		"index":     pred.Index,
		"score":     pred.Score,
		"image_url": web.UploadURL(pred.Filename),
	})
}

func (h *VisionHandler) Recent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	response.OK(c, gin.H{"predictions": h.predictions.Recent(c.Request.Context(), userID)})
}

// formFile returns nil when the request carries no multipart field
// named key. A field sent with an empty filename is parsed as a plain
// value; it comes back as a header with no name so it can be rejected
// as an unselected file.
func formFile(c *gin.Context, key string) *multipart.FileHeader {
	fh, err := c.FormFile(key)
	if err == nil {
		return fh
	}
	if form := c.Request.MultipartForm; form != nil {
		if _, ok := form.Value[key]; ok {
			return &multipart.FileHeader{}
		}
	}
	return nil
}
