package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/jukebox/internal/auth"
	"github.com/hitoshi/jukebox/internal/metrics"
	"github.com/hitoshi/jukebox/internal/model"
)

const sessionCookieName = "session_id"

// Authenticator は認証ゲートが必要とする認証サービスのインターフェース。
type Authenticator interface {
	// Authenticate は抽出済みクレデンシャルからユーザーを解決する。
	Authenticate(ctx context.Context, creds auth.Credentials) (*model.User, error)
	// IssueSession は解決済みユーザーのセッションを作成し永続化する。
	IssueSession(ctx context.Context, userID string) (*model.Session, error)
}

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// UserFinder はセッションからのユーザー復元に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// GateConfig は認証ゲートの設定。
type GateConfig struct {
	// Disabled は全チェックをスキップするテスト実行モード。
	// 構築時に設定で注入され、本番では必ずfalseにすること。
	Disabled bool

	// LoginPath は未認証ブラウザGETリクエストのリダイレクト先。
	// 空の場合はリダイレクトせず401を返す。
	LoginPath string

	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// NewAuthGate はリクエストごとの認証ゲートミドルウェアを返す。
// 保護対象ハンドラーの実行前に1回だけ呼び出され、
// 免除パス判定 → セッション確認 → 認証判定 → 通過/拒否を行う。
// 成功時は解決済みユーザーをリクエストコンテキストとセッションの
// 両方に格納する。失敗はそのリクエストにとって終端的であり、
// 以降のハンドラーは実行されない。
func NewAuthGate(
	authn Authenticator,
	sessions SessionFinder,
	users UserFinder,
	recorder metrics.AuthRecorder,
	cfg GateConfig,
) func(next http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. テスト実行モードでは全チェックをスキップ
			if cfg.Disabled {
				next.ServeHTTP(w, r)
				return
			}

			// 2. 免除パスはそのまま通過
			if auth.ExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// 3. 有効なセッションがあれば再認証せずに通過
			user, err := userFromSession(r, sessions, users)
			if err != nil {
				slog.Error("failed to restore session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusInternalServerError, model.NewDirectoryUnavailableError())
				return
			}
			if user != nil {
				ctx := ContextWithUser(r.Context(), user)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// 4. 認証判定
			creds := auth.Extract(r)
			start := time.Now()
			user, err = authn.Authenticate(r.Context(), creds)
			recorder.RecordAuthLatency(time.Since(start))

			if err != nil {
				rejectRequest(w, r, creds, err, recorder, cfg)
				return
			}

			recorder.RecordAuthAttempt(creds.Channel.String(), "success")

			// 5. 解決済みユーザーをセッションとコンテキストの両方に格納
			if session, sessErr := authn.IssueSession(r.Context(), user.ID); sessErr == nil {
				http.SetCookie(w, &http.Cookie{
					Name:     sessionCookieName,
					Value:    session.ID,
					Path:     "/",
					Domain:   cfg.CookieDomain,
					MaxAge:   cfg.SessionMaxAge,
					HttpOnly: true,
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			} else {
				// 認証自体は成功しているため、セッション永続化の失敗で
				// リクエストを落とさない
				slog.Error("failed to persist session",
					slog.String("login", user.Login),
					slog.String("error", sessErr.Error()),
				)
			}

			ctx := ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userFromSession はセッションCookieから解決済みユーザーを復元する。
// Cookieがない・セッションが無効な場合は(nil, nil)を返す。
// セッション行の存在が認証済みの証明であり、元のクレデンシャルの
// 再検証は行わない。
func userFromSession(r *http.Request, sessions SessionFinder, users UserFinder) (*model.User, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	session, err := sessions.FindByID(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	return users.FindByID(r.Context(), session.UserID)
}

// rejectRequest は認証失敗をHTTPレスポンスに変換する。
func rejectRequest(
	w http.ResponseWriter,
	r *http.Request,
	creds auth.Credentials,
	err error,
	recorder metrics.AuthRecorder,
	cfg GateConfig,
) {
	channel := creds.Channel.String()

	switch {
	case errors.Is(err, auth.ErrLoginRequired):
		recorder.RecordAuthAttempt(channel, "login_required")
		// 対話的ログインが必要。ブラウザのGETはログインページへ誘導する
		if r.Method == http.MethodGet && cfg.LoginPath != "" {
			http.Redirect(w, r, cfg.LoginPath, http.StatusFound)
			return
		}
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginRequiredError())

	case errors.Is(err, auth.ErrDirectoryUnavailable):
		recorder.RecordAuthAttempt(channel, "directory_unavailable")
		slog.Error("user directory unavailable",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, http.StatusInternalServerError, model.NewDirectoryUnavailableError())

	case errors.Is(err, auth.ErrProviderFailure):
		recorder.RecordAuthAttempt(channel, "provider_failure")
		slog.Warn("identity provider failure",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewProviderFailureError())

	default:
		recorder.RecordAuthAttempt(channel, "unauthenticated")
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
	}
}
