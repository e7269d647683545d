package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/socialfeed/internal/auth"
	"github.com/hitoshi/socialfeed/internal/comment"
	"github.com/hitoshi/socialfeed/internal/config"
	"github.com/hitoshi/socialfeed/internal/database"
	"github.com/hitoshi/socialfeed/internal/handler"
	"github.com/hitoshi/socialfeed/internal/like"
	"github.com/hitoshi/socialfeed/internal/logger"
	"github.com/hitoshi/socialfeed/internal/metrics"
	"github.com/hitoshi/socialfeed/internal/middleware"
	"github.com/hitoshi/socialfeed/internal/post"
	"github.com/hitoshi/socialfeed/internal/repository"
	"github.com/hitoshi/socialfeed/internal/security"
	"github.com/hitoshi/socialfeed/internal/worker"
	"github.com/hitoshi/socialfeed/internal/worker/cleanup"
	"github.com/hitoshi/socialfeed/internal/worker/likeaudit"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。ctxがキャンセルされるとサーバーとワーカーは停止する。
func Run(ctx context.Context, w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

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
		slog.String("session_store", cfg.SessionStore),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// openSessionStore は設定に応じたセッションリポジトリを返す。
// Redisを使う場合は接続を確認し、クライアントのクローズ関数を返す。
func openSessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.SessionRepository, func() error, error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return repository.NewPostgresSessionRepo(db), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis session store connected", slog.String("addr", cfg.RedisAddr))
	return repository.NewRedisSessionRepo(client), client.Close, nil
}

// newMetrics はプロセス・ランタイムのコレクタを含むレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	sessionRepo, closeSessions, err := openSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeSessions()

	userRepo := repository.NewPostgresUserRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	likeRepo := repository.NewPostgresLikeRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)

	// 3. メトリクスとセキュリティ
	reg, collector := newMetrics()
	sanitizer := security.NewContentSanitizer()

	// 4. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	postService := post.NewService(postRepo, sanitizer, collector)
	likeService := like.NewService(likeRepo, collector)
	commentService := comment.NewService(commentRepo, postRepo, sanitizer, collector)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		PostService:    postService,
		LikeService:    likeService,
		CommentService: commentService,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("API server starting", slog.String("addr", server.Addr))
	if err := serveUntilDone(ctx, server); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// serveUntilDone はサーバーを起動し、ctxのキャンセルでシャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...", slog.String("addr", server.Addr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// runWorker はワーカーモードで起動する。
// いいねカウンタの監査と期限切れセッションの削除を定期実行する。
// 監視用に/healthと/metricsだけを公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. サービスの初期化
	reg, collector := newMetrics()
	likeService := like.NewService(repository.NewPostgresLikeRepo(db), collector)

	// 3. ジョブの登録
	schedules := []worker.Schedule{
		{
			Name:     "like_audit",
			Job:      likeaudit.NewJob(likeService, slog.Default()),
			Interval: cfg.LikeAuditInterval,
		},
	}
	// Redisのセッションは TTL で失効するため、削除ジョブはPostgreSQLストアのみ
	if cfg.SessionStore == config.SessionStorePostgres {
		schedules = append(schedules, worker.Schedule{
			Name:     "session_cleanup",
			Job:      cleanup.NewSessionCleanupJob(db, slog.Default()),
			Interval: cfg.SessionCleanupInterval,
		})
	}
	scheduler := worker.NewScheduler(slog.Default(), schedules...)

	// 4. 監視用サーバー
	mux := http.NewServeMux()
	mux.Handle("GET /health", handler.NewHealthHandler(db))
	mux.Handle("GET /metrics", metrics.Handler(reg))
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("worker starting",
		slog.Duration("like_audit_interval", cfg.LikeAuditInterval),
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		err := serveUntilDone(ctx, server)
		if err != nil {
			// 監視用サーバーが起動できなければワーカーも止める
			cancel()
		}
		serverErr <- err
	}()

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)
	cancel()

	if err := <-serverErr; err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("schema_version", uint64(version)))
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	u.RawQuery = ""
	return u.Redacted()
}
