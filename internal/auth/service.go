package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jukebox/internal/metrics"
	"github.com/hitoshi/jukebox/internal/model"
	"github.com/hitoshi/jukebox/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// AuthToken は共有シークレット。一致したリクエストは任意のloginとして
	// 認証できる特権クレデンシャルであり、対象ユーザーが個別トークンを
	// 持つかどうかに関わらずバイパスが成立する（オペレーター用の
	// 意図的な逃し弁）。設定由来の値のみを使い、ユーザーデータから
	// 導出してはならない。
	AuthToken string

	SessionMaxAge int // セッション有効期間（秒）
}

// OAuthProvider は対話的OAuthフローを持つIdPのインターフェース。
// IdentityProviderに加えて、ログインURL生成と認可コード交換を提供する。
type OAuthProvider interface {
	IdentityProvider
	// LoginURL はOAuth認証URLを生成する。
	LoginURL(state string) string
	// ExchangeCode は認可コードを検証済みアイデンティティに交換する。
	ExchangeCode(ctx context.Context, code string) (*ExternalIdentity, error)
}

// Service は認証判定コアを提供する。
// チャネルごとのクレデンシャル検証、ユーザー解決・自動登録、
// セッション発行・破棄を担う。
type Service struct {
	provider OAuthProvider
	users    repository.UserRepository
	sessions repository.SessionRepository
	recorder metrics.AuthRecorder
	config   ServiceConfig
}

// NewService はServiceを生成する。recorderがnilの場合は記録を行わない。
func NewService(
	provider OAuthProvider,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	recorder metrics.AuthRecorder,
	config ServiceConfig,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Service{
		provider: provider,
		users:    users,
		sessions: sessions,
		recorder: recorder,
		config:   config,
	}
}

// Authenticate は抽出済みクレデンシャルからユーザーを解決する。
// どちらのチャネルでもユーザーに解決できなかった場合はErrUnauthenticatedを、
// ディレクトリ障害の場合はErrDirectoryUnavailableを返す。
// ブラウザチャネルで対話的フローが必要な場合はErrLoginRequiredを返す。
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*model.User, error) {
	if creds.Channel == ChannelMachineToken {
		return s.authenticateMachine(ctx, creds)
	}
	return s.authenticateBrowser(ctx)
}

// authenticateMachine はマシンチャネルの認証を行う。
// トークンが共有シークレットと完全一致する場合はloginフィールドで
// ユーザーを選択する（トークン自体は照合にのみ使い、検索には使わない）。
// それ以外は個別トークンでユーザーを検索する。
func (s *Service) authenticateMachine(ctx context.Context, creds Credentials) (*model.User, error) {
	var user *model.User
	var err error

	if creds.Token == s.config.AuthToken {
		user, err = s.users.FindByLogin(ctx, creds.Login)
	} else {
		user, err = s.users.FindByToken(ctx, creds.Token)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}

	return user, nil
}

// authenticateBrowser はブラウザ/OAuthチャネルの認証を行う。
// プロバイダーが検証済みアイデンティティを返した場合のみ
// ユーザー解決・自動登録に進む。対話的プロバイダーは
// ErrLoginRequiredを返し、その処理はゲートに委ねられる。
func (s *Service) authenticateBrowser(ctx context.Context) (*model.User, error) {
	identity, err := s.provider.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return s.ResolveIdentity(ctx, identity)
}

// ResolveIdentity は検証済み外部アイデンティティをユーザーに解決する。
// 未登録のloginは自動作成する。作成はloginに対して冪等であり、
// 同一loginの同時初回ログインでもユーザーは1人だけ作成される。
func (s *Service) ResolveIdentity(ctx context.Context, identity *ExternalIdentity) (*model.User, error) {
	user, err := s.users.FindByLogin(ctx, identity.Login)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if user != nil {
		return user, nil
	}

	user, err = s.users.Create(ctx, identity.Login, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	s.recorder.RecordUserProvisioned()
	slog.Info("new user provisioned",
		slog.String("login", user.Login),
	)

	return user, nil
}

// LoginURL はOAuth認証URLを生成する。
func (s *Service) LoginURL(state string) string {
	return s.provider.LoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 認可コードを検証済みアイデンティティに交換し、ユーザーを解決・自動登録
// した上でセッションを作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	identity, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.ResolveIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}

	session, err := s.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in",
		slog.String("login", user.Login),
		slog.String("session_id", session.ID),
	)

	return session, nil
}

// IssueSession は指定ユーザーのセッションを作成し永続化する。
func (s *Service) IssueSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	s.recorder.RecordSessionIssued()
	return session, nil
}

// Logout はセッションを破棄する。関連付けは完全に除去され、
// 以降のリクエストは再び認証フローに入る。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentUser はセッションIDから現在のユーザーを取得する。
// セッションが存在しない・期限切れの場合はErrUnauthenticatedを返す。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, ErrUnauthenticated
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if session == nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}

	return user, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
