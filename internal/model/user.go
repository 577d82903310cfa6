// Package model はドメインモデルを定義する。
package model

import "time"

// User はこのサービスが認識する認証済みアイデンティティを表す。
// 事前登録（トークン持ち）またはOAuth初回ログイン時の自動作成のいずれかで
// 1回だけ作成され、本コアからは作成後に変更・削除されない。
type User struct {
	ID        string
	Login     string // 一意な安定識別子。IdP由来または事前登録で設定される
	Email     string // 任意。作成時にのみ設定される
	Token     string // マシンチャネル認証用の個別トークン。空のユーザーはトークン認証不可
	CreatedAt time.Time
}

// Session はブラウザセッションとユーザーの関連付けを表す。
// セッション行の存在が認証済みであることの証明であり、リクエストごとに
// 元のクレデンシャルを再検証することはない。ログアウトで完全に削除される。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
