// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/jukebox/internal/model"
)

// UserRepository はユーザーディレクトリの永続化インターフェース。
// 認証コアはこのインターフェースを介してのみユーザーを解決する。
// ドライバエラーは呼び出し側に伝播させ、未検出（nil）と混同しないこと。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByLogin は指定loginのユーザーを取得する。見つからない場合はnilを返す。
	FindByLogin(ctx context.Context, login string) (*model.User, error)

	// FindByToken は指定の個別トークンを持つユーザーを取得する。
	// 見つからない場合はnilを返す。トークンを持たないユーザーは決して一致しない。
	FindByToken(ctx context.Context, token string) (*model.User, error)

	// Create は指定loginのユーザーを作成する。loginに対して冪等であり、
	// 同一loginの同時初回ログインでも行は1つだけ作成され、
	// どの呼び出しも同じユーザーを返す。
	Create(ctx context.Context, login, email string) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。関連付けを完全に除去する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
