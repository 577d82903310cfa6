package auth

import "regexp"

// 認証を免除するパスのパターン。
// ログインUI、OAuthリダイレクト先、公開埋め込み可能なカバーアート画像は
// 認証前に到達できる必要がある。
var (
	loginPathPattern = regexp.MustCompile(`/login`)
	oauthPathPattern = regexp.MustCompile(`/auth`)
	artPathPattern   = regexp.MustCompile(`/images/art/.*\.png$`)
)

// ExemptPath は指定パスが認証を免除されるかを判定する。
// 純粋なパターンマッチであり副作用はない。
func ExemptPath(path string) bool {
	return loginPathPattern.MatchString(path) ||
		oauthPathPattern.MatchString(path) ||
		artPathPattern.MatchString(path)
}
