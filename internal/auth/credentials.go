// Package auth は認証判定コアを提供する。
// チャネル選択、クレデンシャル検証、ユーザー解決・自動登録、
// およびGitHub OAuthプロバイダー統合を含む。
package auth

import "net/http"

// LoginHeaderName はマシンチャネルで認証対象のloginを指定する
// カスタムヘッダー名。
const LoginHeaderName = "X-Jukebox-Login"

// Channel は認証チャネルを表す列挙型。
// 真偽値による暗黙のチャネル選択を避けるため、抽出時に1回だけ計算する。
type Channel int

const (
	// ChannelBrowserOAuth は外部IdP経由の人間ユーザー向けチャネル。
	ChannelBrowserOAuth Channel = iota
	// ChannelMachineToken は共有シークレットまたは個別トークンによる
	// プログラムクライアント向けチャネル。
	ChannelMachineToken
)

// String はChannelのログ・メトリクス用表現を返す。
func (c Channel) String() string {
	switch c {
	case ChannelMachineToken:
		return "machine_token"
	default:
		return "browser_oauth"
	}
}

// Credentials はリクエストから抽出したクレデンシャル候補を保持する。
// 全フィールドが空でもよく、抽出は常に成功する。
type Credentials struct {
	Token   string  // Authorizationヘッダー、なければtokenパラメータ
	Login   string  // X-Jukebox-Loginヘッダー、なければloginパラメータ
	Channel Channel // 抽出時に1回だけ決定されるチャネル
}

// Extract はリクエストのヘッダーとクエリ/フォームパラメータから
// クレデンシャル候補を抽出する。副作用はフォームのパースのみ。
//
// チャネル判定はtokenパラメータまたはAuthorizationヘッダーの「存在」で
// 行う。値が空であってもパラメータが存在すればマシンチャネルに
// ルーティングされる（空トークンはどのユーザーにも解決されないため、
// OAuthチャネルへ落ちることなく認証失敗で終端する）。
func Extract(r *http.Request) Credentials {
	// クエリとPOSTフォームを統合する。パース失敗時はクエリのみ残る。
	_ = r.ParseForm()

	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.Form.Get("token")
	}

	login := r.Header.Get(LoginHeaderName)
	if login == "" {
		login = r.Form.Get("login")
	}

	_, hasTokenParam := r.Form["token"]
	_, hasAuthHeader := r.Header["Authorization"]

	channel := ChannelBrowserOAuth
	if hasTokenParam || hasAuthHeader {
		channel = ChannelMachineToken
	}

	return Credentials{
		Token:   token,
		Login:   login,
		Channel: channel,
	}
}
