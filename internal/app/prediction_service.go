package app

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"go.uber.org/zap"

	"mushroom-classifier/internal/metrics"
	"mushroom-classifier/internal/model"
	"mushroom-classifier/internal/upload"
	"mushroom-classifier/internal/vision"
)

type Predictor interface {
	PredictFile(ctx context.Context, path string) (vision.Prediction, error)
}

// PredictionRecorder receives every successful prediction. It is either
// the Redis history itself or the queue publisher feeding it.
type PredictionRecorder interface {
	Record(ctx context.Context, p model.Prediction) error
}

type HistoryReader interface {
	Recent(ctx context.Context, userID uint) ([]model.Prediction, error)
}

type PredictionService struct {
	uploads   *upload.Store
	predictor Predictor
	recorder  PredictionRecorder
	history   HistoryReader
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func NewPredictionService(uploads *upload.Store, predictor Predictor, m *metrics.Metrics, log *zap.Logger) *PredictionService {
	return &PredictionService{
		uploads:   uploads,
		predictor: predictor,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// WithHistory enables recording and listing of recent predictions.
// Either argument may be nil.
func (s *PredictionService) WithHistory(recorder PredictionRecorder, history HistoryReader) *PredictionService {
	s.recorder = recorder
	s.history = history
	return s
}

// Classify stores the upload and runs it through the model. Validation
// failures are returned as the upload package's sentinel errors.
func (s *PredictionService) Classify(ctx context.Context, userID uint, fh *multipart.FileHeader) (model.Prediction, error) {
	name, err := s.uploads.Save(fh)
	if err != nil {
		if reason := rejectionReason(err); reason != "" {
			s.metrics.UploadRejections.WithLabelValues(reason).Inc()
		}
		return model.Prediction{}, err
	}

	path, err := s.uploads.Path(name)
	if err != nil {
		return model.Prediction{}, err
	}

	start := time.Now()
	pred, err := s.predictor.PredictFile(ctx, path)
	s.metrics.ObserveInference(start)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("predict %s: %w", name, err)
	}
	s.metrics.Predictions.WithLabelValues(pred.Label).Inc()

	result := model.Prediction{
		UserID:    userID,
		Filename:  name,
		Label:     pred.Label,
		Index:     pred.Index,
		Score:     pred.Score,
		CreatedAt: s.now().UTC(),
	}

	if s.recorder != nil && userID != 0 {
		if err := s.recorder.Record(ctx, result); err != nil {
			s.log.Warn("record prediction failed",
				zap.Uint("user_id", userID),
				zap.String("filename", name),
				zap.Error(err),
			)
		}
	}
	return result, nil
}

// Recent lists the user's latest predictions. History problems are
// logged and yield an empty list.
func (s *PredictionService) Recent(ctx context.Context, userID uint) []model.Prediction {
	if s.history == nil || userID == 0 {
		return nil
	}
	items, err := s.history.Recent(ctx, userID)
	if err != nil {
		s.log.Warn("load recent predictions failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil
	}
	return items
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, upload.ErrNoFile):
		return "no_file"
	case errors.Is(err, upload.ErrEmptyFilename):
		return "empty_filename"
	case errors.Is(err, upload.ErrNotAllowed):
		return "extension"
	case errors.Is(err, upload.ErrTooLarge):
		return "too_large"
	}
	return ""
}
