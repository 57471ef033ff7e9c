// Package app はコマンドの解析と依存関係のワイヤリング、サーバーの起動を行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/subosito/gotenv"

	"github.com/hitoshi/citizenai/internal/auth"
	"github.com/hitoshi/citizenai/internal/chat"
	"github.com/hitoshi/citizenai/internal/config"
	"github.com/hitoshi/citizenai/internal/credential"
	"github.com/hitoshi/citizenai/internal/database"
	"github.com/hitoshi/citizenai/internal/feedback"
	"github.com/hitoshi/citizenai/internal/generator"
	"github.com/hitoshi/citizenai/internal/handler"
	"github.com/hitoshi/citizenai/internal/logger"
	"github.com/hitoshi/citizenai/internal/metrics"
	"github.com/hitoshi/citizenai/internal/middleware"
	"github.com/hitoshi/citizenai/internal/repository"
	"github.com/hitoshi/citizenai/internal/session"
	"github.com/hitoshi/citizenai/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .envファイルがあれば環境変数に読み込み、設定を読み込んでJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envファイルの読み込み。既に設定済みの環境変数は上書きしない
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("storage", cfg.StorageBackend),
		slog.String("generator", cfg.GeneratorBackend),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// Server はワイヤリング済みのAPIサーバー一式を保持する。
type Server struct {
	Handler http.Handler

	cleanupJob  *cleanup.CleanupJob
	rateLimiter *middleware.RateLimiter
	db          *sql.DB
}

// NewServer は設定に従ってストア・生成バックエンド・サービスを構築し、ルーターを返す。
// regがnilの場合はメトリクスを新しいレジストリに登録する。
func NewServer(ctx context.Context, cfg *config.Config, reg *prometheus.Registry) (*Server, error) {
	log := slog.Default()
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	mc := metrics.NewCollector(reg)

	srv := &Server{}

	// 1. ストアの初期化
	var (
		users        repository.UserRepository
		feedbackRepo repository.FeedbackRepository
		health       handler.HealthChecker
	)
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		db, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		srv.db = db
		users = repository.NewPostgresUserRepo(db)
		feedbackRepo = repository.NewPostgresFeedbackRepo(db)
		health = db
	default:
		users = repository.NewJSONUserRepo(cfg.UserStorePath)
		feedbackRepo = repository.NewJSONLFeedbackRepo(cfg.FeedbackLogPath)
	}

	// 2. 応答生成バックエンドの初期化
	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		srv.Close()
		return nil, err
	}
	log.Info("generator initialized", slog.String("generator", gen.Name()))

	// 3. ドメインサービスの初期化
	hasher := credential.NewArgon2Hasher(credential.Argon2Params{
		Time:    cfg.PasswordHashTime,
		Memory:  cfg.PasswordHashMemory,
		Threads: cfg.PasswordHashThreads,
	})
	credentials := credential.NewService(users, hasher, log)

	sessions := session.NewManager(
		repository.NewMemorySessionRepo(),
		session.Config{MaxAge: time.Duration(cfg.SessionMaxAge) * time.Second},
		log,
	)
	authService := auth.NewService(credentials, sessions, mc, log)
	gateway := chat.NewGateway(gen, mc, log)
	sink := feedback.NewSink(feedbackRepo, mc, log)

	// 4. クリーンアップジョブの初期化
	srv.cleanupJob = cleanup.NewCleanupJob(sessions, mc, log)
	srv.cleanupJob.Interval = cfg.SessionSweepInterval

	// 5. ルーターの構築
	srv.rateLimiter = middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitChat, cfg.RateLimitAuth),
	)

	srv.Handler = handler.NewRouter(&handler.RouterDeps{
		IdentityResolver:  authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       srv.rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger: log,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ChatGateway:  gateway,
		FeedbackSink: sink,

		Metrics:        mc,
		MetricsHandler: metrics.Handler(reg),
		HealthChecker:  health,
	})

	return srv, nil
}

// StartBackground はクリーンアップジョブをバックグラウンドで起動する。
// ctxがキャンセルされると停止する。
func (s *Server) StartBackground(ctx context.Context) {
	go s.cleanupJob.Start(ctx)
}

// Close はレートリミッターとDB接続を解放する。
func (s *Server) Close() error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// openDatabase はDB接続を開き、スキーマが適用済みであることを確認する。
func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, err
	}

	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	version, dirty, err := database.Version(databaseURL)
	if err != nil {
		db.Close()
		return nil, err
	}
	if dirty {
		db.Close()
		return nil, fmt.Errorf("database schema version %d is dirty; fix it and run migrate", version)
	}
	if version == 0 {
		slog.Warn("database schema is not migrated; run the migrate command")
	}

	slog.Info("database connection established",
		slog.Uint64("schema_version", uint64(version)),
	)
	return db, nil
}

// namedGenerator は起動ログに名前を出せる応答生成バックエンド。
type namedGenerator interface {
	chat.Generator
	Name() string
}

// newGenerator は設定に従って応答生成バックエンドを返す。
func newGenerator(ctx context.Context, cfg *config.Config) (namedGenerator, error) {
	switch cfg.GeneratorBackend {
	case config.GeneratorEcho:
		return generator.Echo{}, nil
	default:
		gen, err := generator.NewGemini(ctx, generator.GeminiConfig{
			APIKey:       cfg.GeminiAPIKey,
			Model:        cfg.GeminiModel,
			SystemPrompt: cfg.SystemPrompt,
			MaxTokens:    cfg.GenerationMaxTokens,
			Temperature:  cfg.GenerationTemperature,
			TopP:         cfg.GenerationTopP,
			Timeout:      cfg.GenerationTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
		return gen, nil
	}
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := NewServer(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer srv.Close()

	srv.StartBackground(ctx)

	// WriteTimeoutは生成の上限時間より長くする
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("migrate requires STORAGE_BACKEND=%s", config.StoragePostgres)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
