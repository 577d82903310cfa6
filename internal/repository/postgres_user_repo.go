package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/jukebox/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, login, email, COALESCE(token, ''), created_at`

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Login, &user.Email, &user.Token, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByLogin は指定loginのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = $1`,
		login,
	).Scan(&user.ID, &user.Login, &user.Email, &user.Token, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by login: %w", err)
	}

	return user, nil
}

// FindByToken は指定の個別トークンを持つユーザーを取得する。
// 見つからない場合はnilを返す。tokenカラムは空文字列を保持しないため、
// 空トークンは決して一致しない。
func (r *PostgresUserRepo) FindByToken(ctx context.Context, token string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE token = $1`,
		token,
	).Scan(&user.ID, &user.Login, &user.Email, &user.Token, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by token: %w", err)
	}

	return user, nil
}

// Create は指定loginのユーザーを作成する。
// ON CONFLICT (login) DO NOTHINGによりloginに対して冪等。
// 同時初回ログインで別のリクエストが先に作成していた場合は、
// その既存行を取得して返す。check-then-createではなく
// 一意制約に裏付けられたupsertなので、login一意性の不変条件が
// 競合下でも保たれる。
func (r *PostgresUserRepo) Create(ctx context.Context, login, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, login, email, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (login) DO NOTHING
		 RETURNING `+userColumns,
		uuid.New().String(), login, email, time.Now(),
	).Scan(&user.ID, &user.Login, &user.Email, &user.Token, &user.CreatedAt)

	if err == sql.ErrNoRows {
		// 競合した先行リクエストが作成済み
		existing, findErr := r.FindByLogin(ctx, login)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, fmt.Errorf("user %q vanished after conflicting insert", login)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
