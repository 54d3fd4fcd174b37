package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mushroom-classifier/internal/app"
	"mushroom-classifier/internal/cache"
	"mushroom-classifier/internal/config"
	"mushroom-classifier/internal/logging"
	"mushroom-classifier/internal/metrics"
	"mushroom-classifier/internal/platform/database"
	rabbitmqClient "mushroom-classifier/internal/platform/rabbitmq"
	redisClient "mushroom-classifier/internal/platform/redis"
	"mushroom-classifier/internal/repository"
	"mushroom-classifier/internal/transport/http/session"
	"mushroom-classifier/internal/upload"
	"mushroom-classifier/internal/vision"
	"mushroom-classifier/internal/worker"
)

// App is everything a request handler may need. It is built once in
// main and passed down; nothing here lives in package state.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *gorm.DB
	Metrics *metrics.Metrics

	Users       *repository.UserRepository
	Auth        *app.AuthService
	Predictor   app.Predictor
	Predictions *app.PredictionService
	Uploads     *upload.Store
	Sessions    *session.Manager

	Redis         *redis.Client
	History       *cache.PredictionHistory
	MQConn        *amqp.Connection
	HistoryWorker *worker.PredictionHistoryWorker

	StartedAt time.Time

	closers []io.Closer
}

type options struct {
	logger    *zap.Logger
	predictor app.Predictor
	hashCost  int
}

type Option func(*options)

// WithLogger replaces the logger built from app.env.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithPredictor skips loading the ONNX model.
func WithPredictor(p app.Predictor) Option {
	return func(o *options) { o.predictor = p }
}

// WithHashCost sets the bcrypt cost, tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(o *options) { o.hashCost = cost }
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		built, err := logging.New(cfg.App.Env)
		if err != nil {
			return nil, fmt.Errorf("build logger failed: %w", err)
		}
		log = built
	}

	a := &App{
		Config:    cfg,
		Logger:    log,
		Metrics:   metrics.New(),
		StartedAt: time.Now(),
	}
	ready := false
	defer func() {
		if !ready {
			_ = a.Close()
		}
	}()

	var err error
	if a.DB, err = database.New(ctx, cfg); err != nil {
		return nil, err
	}
	a.Users = repository.NewUserRepository(a.DB)
	if err = a.Users.Migrate(ctx); err != nil {
		return nil, err
	}

	a.Auth = app.NewAuthService(
		a.Users,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	if o.hashCost > 0 {
		a.Auth.WithHashCost(o.hashCost)
	}

	if a.Uploads, err = upload.NewStore(cfg.Upload.Dir, cfg.Upload.AllowedExtensions, cfg.Upload.MaxBytes); err != nil {
		return nil, err
	}

	a.Sessions = session.NewManager(
		[]byte(cfg.Auth.SessionSecret),
		cfg.Auth.SessionName,
		cfg.Auth.SessionMaxAge,
		cfg.App.Env == "prod",
	)

	if a.Predictor = o.predictor; a.Predictor == nil {
		if a.Predictor, err = a.loadClassifier(); err != nil {
			return nil, err
		}
	}
	a.Predictions = app.NewPredictionService(a.Uploads, a.Predictor, a.Metrics, log)

	if err = a.wireHistory(ctx); err != nil {
		return nil, err
	}

	log.Info("app ready",
		zap.String("env", cfg.App.Env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("upload_dir", cfg.Upload.Dir),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("rabbitmq", cfg.RabbitMQ.Enabled),
	)
	ready = true
	return a, nil
}

func (a *App) loadClassifier() (*vision.Classifier, error) {
	cfg := a.Config.Vision
	clf, err := vision.NewClassifier(vision.Options{
		ModelPath:         cfg.ModelPath,
		LabelsPath:        cfg.LabelsPath,
		ONNXSharedLibPath: cfg.ONNXSharedLibPath,
	})
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "cannot open shared object file") || strings.Contains(msg, "Error loading ONNX shared library") {
			return nil, fmt.Errorf("onnx runtime library not found, set VISION_ONNX_LIB to libonnxruntime: %w", err)
		}
		return nil, fmt.Errorf("load model %s failed: %w", cfg.ModelPath, err)
	}
	a.closers = append(a.closers, clf)

	if n := len(clf.Labels()); clf.OutputWidth() != n {
		a.Logger.Warn("model output width does not match label table",
			zap.Int("output_width", clf.OutputWidth()),
			zap.Int("labels", n),
		)
	}
	a.Logger.Info("model loaded", zap.String("path", cfg.ModelPath), zap.Int("classes", clf.OutputWidth()))
	return clf, nil
}

// wireHistory connects the optional recent-prediction pipeline. With
// RabbitMQ on, predictions go through the queue and the worker fills
// Redis; otherwise they are written to Redis directly.
func (a *App) wireHistory(ctx context.Context) error {
	cfg := a.Config
	if !cfg.Redis.Enabled {
		if cfg.RabbitMQ.Enabled {
			a.Logger.Warn("rabbitmq enabled without redis, prediction events are not consumed")
		}
		return nil
	}

	client, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	a.Redis = client
	a.History = cache.NewPredictionHistory(
		client,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		cfg.Redis.HistorySize,
	)

	if !cfg.RabbitMQ.Enabled {
		a.Predictions.WithHistory(a.History, a.History)
		return nil
	}

	conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	a.MQConn = conn

	a.HistoryWorker = worker.NewPredictionHistoryWorker(conn, a.History, cfg.RabbitMQ.PredictionQueue, a.Logger)
	// the worker outlives New's ctx, so it gets its own root
	if err := a.HistoryWorker.Start(context.Background()); err != nil {
		return fmt.Errorf("start prediction history worker failed: %w", err)
	}

	publisher := rabbitmqClient.NewPredictionPublisher(conn, cfg.RabbitMQ.PredictionQueue)
	a.Predictions.WithHistory(publisher, a.History)
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.HistoryWorker != nil {
		a.HistoryWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	_ = a.Logger.Sync()
	return closeErr
}
