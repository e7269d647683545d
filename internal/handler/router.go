package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialfeed/internal/metrics"
	"github.com/hitoshi/socialfeed/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.Recorder
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 投稿・いいね・コメント
	PostService    PostServiceInterface
	LikeService    LikeServiceInterface
	CommentService CommentServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS
//	  認証が必要なルートのみ: Session → RateLimit(General) → CSRF
//
// 認証ルート（/auth/*）とヘルスチェックはセッションチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// ログを最外周に置き、リカバリーが返した500も記録する
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	postHandler := NewPostHandler(deps.PostService)
	likeHandler := NewLikeHandler(deps.LikeService)
	commentHandler := NewCommentHandler(deps.CommentService)
	userHandler := NewUserHandler(deps.PostService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		write := deps.RateLimiter.WriteMiddleware()

		r.Route("/api/posts", func(r chi.Router) {
			r.Get("/", postHandler.ListPosts)
			// POST /api/posts - 投稿作成（書き込み用レート制限を追加）
			r.With(write).Post("/", postHandler.CreatePost)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.GetPost)
				r.Delete("/", postHandler.DeletePost)
				r.Post("/like", likeHandler.ToggleLike)

				r.Get("/comments", commentHandler.ListComments)
				r.With(write).Post("/comments", commentHandler.CreateComment)
			})
		})

		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/posts", userHandler.ListMyPosts)
			r.Get("/likes", likeHandler.ListLikedPosts)
		})
	})

	return r
}
