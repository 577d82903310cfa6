package auth

import "errors"

// 認証コアのエラー種別。すべてリクエスト単位で終端的であり、
// コア内での自動リトライは行わない。
var (
	// ErrUnauthenticated はどのクレデンシャルもユーザーに解決できなかった
	// ことを示す。ゲートは401で応答し、以降のハンドラーは実行されない。
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrLoginRequired はブラウザチャネルで対話的なOAuthフローが
	// 必要であることを示す。ゲートはログインページへ誘導する。
	ErrLoginRequired = errors.New("interactive login required")

	// ErrProviderFailure は外部IdPの呼び出しが失敗・拒否されたことを示す。
	// 組織メンバーシップ不足による拒否もこの種別に含まれる。
	ErrProviderFailure = errors.New("identity provider failure")

	// ErrDirectoryUnavailable はユーザーディレクトリに到達できないことを示す。
	// 認証失敗（ErrUnauthenticated）と混同してはならない。混同すると
	// 障害中に正当なクレデンシャルを誤って拒否してしまう。
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
)
