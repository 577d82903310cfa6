package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jukebox/internal/middleware"
)

const loginPageHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>Jukebox - Login</title>
</head>
<body>
<h1>Jukebox</h1>
<p><a href="/auth/github/login">GitHubでログイン</a></p>
</body>
</html>
`

const forbiddenPageHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>Jukebox - Forbidden</title>
</head>
<body>
<h1>403 Forbidden</h1>
<p>このアカウントには利用権限がありません。組織のメンバーであることを確認してください。</p>
<p><a href="/login">ログインに戻る</a></p>
</body>
</html>
`

// PageHandler は認証フロー周辺のHTMLページを提供するハンドラー。
type PageHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(service AuthServiceInterface, config AuthHandlerConfig) *PageHandler {
	return &PageHandler{
		service: service,
		config:  config,
	}
}

// Index は認証済みユーザー向けのトップページを返す。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	login := ""
	if user, err := middleware.UserFromContext(r.Context()); err == nil {
		login = user.Login
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>Jukebox</title>
</head>
<body>
<h1>Jukebox</h1>
<p>` + template.HTMLEscapeString(login) + ` としてログイン中。<a href="/logout">ログアウト</a></p>
</body>
</html>
`))
}

// LoginPage はOAuthフローへの導線となるログインページを返す。
// GET /login
func (h *PageHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(loginPageHTML))
}

// Forbidden は組織要件を満たさないユーザー向けの403ページを返す。
// GET /403.html
func (h *PageHandler) Forbidden(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(forbiddenPageHTML))
}

// Unauthenticated は認証に失敗したブラウザを振り分けるバウンサー。
// 古いセッションCookieを持っている場合はセッションを破棄して403ページへ、
// 持っていない場合はトップページへリダイレクトする。
// GET /unauthenticated
func (h *PageHandler) Unauthenticated(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Warn("failed to clear stale session",
				slog.String("error", logoutErr.Error()),
			)
		}
		clearSessionCookie(w, h.config)
		http.Redirect(w, r, "/403.html", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}
