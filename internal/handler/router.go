package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/jukebox/internal/metrics"
	"github.com/hitoshi/jukebox/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// 運用エンドポイント
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer
	Recorder        metrics.AuthRecorder

	// 認証ゲート
	Authenticator middleware.Authenticator
	SessionFinder middleware.SessionFinder
	UserFinder    middleware.UserFinder
	GateConfig    middleware.GateConfig

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証フロー
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カバーアート
	ArtDir string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → [AuthGate → RateLimit]
//
// 運用エンドポイント（/health、/metrics）とバウンサー（/unauthenticated、
// /403.html）は認証ゲートの外に配置する。認証フロー自体（/login、/auth/*）と
// カバーアートはゲート内に置き、免除パス判定で通過させる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Recorder))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.AuthService, deps.AuthConfig)
	artHandler := NewArtHandler(deps.ArtDir)

	// --- 認証ゲート外のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Get("/unauthenticated", pageHandler.Unauthenticated)
	r.Get("/403.html", pageHandler.Forbidden)

	// --- 認証ゲート内のルート ---

	gate := middleware.NewAuthGate(
		deps.Authenticator,
		deps.SessionFinder,
		deps.UserFinder,
		deps.Recorder,
		deps.GateConfig,
	)

	r.Group(func(r chi.Router) {
		r.Use(gate)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 認証フロー（免除パス）。ログインフロー専用のIP別レート制限を追加
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.LoginFlowMiddleware())

			r.Get("/login", pageHandler.LoginPage)
			r.Get("/auth/github/login", authHandler.Login)
			r.Get("/auth/github/callback", authHandler.Callback)
		})

		// カバーアート（免除パス）
		r.Get("/images/art/{file}", artHandler.Serve)

		// 認証が必要なルート
		r.Get("/", pageHandler.Index)
		r.Get("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Get("/token", authHandler.Token)
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
