package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/jukebox/internal/model"
	"github.com/hitoshi/jukebox/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByLoginFn func(ctx context.Context, login string) (*model.User, error)
	findByTokenFn func(ctx context.Context, token string) (*model.User, error)
	createFn      func(ctx context.Context, login, email string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	if m.findByLoginFn != nil {
		return m.findByLoginFn(ctx, login)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByToken(ctx context.Context, token string) (*model.User, error) {
	if m.findByTokenFn != nil {
		return m.findByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, login, email string) (*model.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, login, email)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type mockProvider struct {
	authenticateFn func(ctx context.Context) (*ExternalIdentity, error)
	loginURLFn     func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*ExternalIdentity, error)
}

func (m *mockProvider) Authenticate(ctx context.Context) (*ExternalIdentity, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx)
	}
	return nil, ErrLoginRequired
}

func (m *mockProvider) LoginURL(state string) string {
	if m.loginURLFn != nil {
		return m.loginURLFn(state)
	}
	return ""
}

func (m *mockProvider) ExchangeCode(ctx context.Context, code string) (*ExternalIdentity, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockProvider)(nil)

const testSecret = "shared-operator-secret"

func newTestService(users *mockUserRepo, sessions *mockSessionRepo, provider *mockProvider) *Service {
	if users == nil {
		users = &mockUserRepo{}
	}
	if sessions == nil {
		sessions = &mockSessionRepo{}
	}
	if provider == nil {
		provider = &mockProvider{}
	}
	return NewService(provider, users, sessions, nil, ServiceConfig{
		AuthToken:     testSecret,
		SessionMaxAge: 86400,
	})
}

// --- マシンチャネル ---

// 共有シークレット一致時はloginフィールドでユーザーを選択すること。
// トークンは照合にのみ使われ、検索には使われない。
func TestAuthenticate_SharedSecretBypass_ResolvesByLogin(t *testing.T) {
	var lookedUpLogin string
	users := &mockUserRepo{
		findByLoginFn: func(ctx context.Context, login string) (*model.User, error) {
			lookedUpLogin = login
			return &model.User{ID: "u1", Login: login}, nil
		},
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			t.Fatal("FindByToken should not be called on the bypass path")
			return nil, nil
		},
	}
	svc := newTestService(users, nil, nil)

	user, err := svc.Authenticate(context.Background(), Credentials{
		Token:   testSecret,
		Login:   "alice",
		Channel: ChannelMachineToken,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Login != "alice" {
		t.Errorf("login = %q, want %q", user.Login, "alice")
	}
	if lookedUpLogin != "alice" {
		t.Errorf("looked up login = %q, want %q", lookedUpLogin, "alice")
	}
}

// 共有シークレット一致だがloginが存在しない場合は認証失敗となること。
func TestAuthenticate_SharedSecretBypass_UnknownLogin_Unauthenticated(t *testing.T) {
	users := &mockUserRepo{
		findByLoginFn: func(ctx context.Context, login string) (*model.User, error) {
			return nil, nil
		},
	}
	svc := newTestService(users, nil, nil)

	_, err := svc.Authenticate(context.Background(), Credentials{
		Token:   testSecret,
		Login:   "nobody",
		Channel: ChannelMachineToken,
	})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

// 個別トークンでユーザーが解決されること。
func TestAuthenticate_DirectToken_ResolvesByToken(t *testing.T) {
	users := &mockUserRepo{
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			if token == "abc123" {
				return &model.User{ID: "u2", Login: "bob", Token: "abc123"}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(users, nil, nil)

	user, err := svc.Authenticate(context.Background(), Credentials{
		Token:   "abc123",
		Channel: ChannelMachineToken,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Login != "bob" {
		t.Errorf("login = %q, want %q", user.Login, "bob")
	}
}

// 空トークンのマシンチャネルリクエストはOAuthチャネルへ落ちることなく
// 認証失敗で終端すること。プロバイダーは呼び出されない。
func TestAuthenticate_EmptyMachineToken_NeverFallsThroughToOAuth(t *testing.T) {
	provider := &mockProvider{
		authenticateFn: func(ctx context.Context) (*ExternalIdentity, error) {
			t.Fatal("identity provider should not be invoked on the machine channel")
			return nil, nil
		},
	}
	svc := newTestService(nil, nil, provider)

	_, err := svc.Authenticate(context.Background(), Credentials{
		Token:   "",
		Channel: ChannelMachineToken,
	})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

// ディレクトリ障害は認証失敗と区別されること。
func TestAuthenticate_DirectoryError_IsNotUnauthenticated(t *testing.T) {
	users := &mockUserRepo{
		findByTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(users, nil, nil)

	_, err := svc.Authenticate(context.Background(), Credentials{
		Token:   "abc123",
		Channel: ChannelMachineToken,
	})
	if !errors.Is(err, ErrDirectoryUnavailable) {
		t.Errorf("err = %v, want ErrDirectoryUnavailable", err)
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Error("directory outage must not be reported as unauthenticated")
	}
}

// --- ブラウザチャネル ---

// 対話的プロバイダーのErrLoginRequiredがそのまま伝播すること。
func TestAuthenticate_BrowserChannel_LoginRequired(t *testing.T) {
	svc := newTestService(nil, nil, &mockProvider{})

	_, err := svc.Authenticate(context.Background(), Credentials{
		Channel: ChannelBrowserOAuth,
	})
	if !errors.Is(err, ErrLoginRequired) {
		t.Errorf("err = %v, want ErrLoginRequired", err)
	}
}

// プロバイダーが検証済みアイデンティティを返した場合は
// ユーザー解決・自動登録に進むこと。
func TestAuthenticate_BrowserChannel_ResolvesIdentity(t *testing.T) {
	provider := &mockProvider{
		authenticateFn: func(ctx context.Context) (*ExternalIdentity, error) {
			return &ExternalIdentity{Login: "carol", Email: "carol@example.com"}, nil
		},
	}
	users := &mockUserRepo{
		findByLoginFn: func(ctx context.Context, login string) (*model.User, error) {
			return &model.User{ID: "u3", Login: login}, nil
		},
	}
	svc := newTestService(users, nil, provider)

	user, err := svc.Authenticate(context.Background(), Credentials{
		Channel: ChannelBrowserOAuth,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Login != "carol" {
		t.Errorf("login = %q, want %q", user.Login, "carol")
	}
}

// --- ユーザー解決・自動登録 ---

// 既存ユーザーは再作成されないこと。
func TestResolveIdentity_ExistingUser_IsNotRecreated(t *testing.T) {
	users := &mockUserRepo{
		findByLoginFn: func(ctx context.Context, login string) (*model.User, error) {
			return &model.User{ID: "u4", Login: login, Email: "old@example.com"}, nil
		},
		createFn: func(ctx context.Context, login, email string) (*model.User, error) {
			t.Fatal("Create should not be called for an existing login")
			return nil, nil
		},
	}
	svc := newTestService(users, nil, nil)

	user, err := svc.ResolveIdentity(context.Background(), &ExternalIdentity{
		Login: "dave",
		Email: "new@example.com",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Email != "old@example.com" {
		t.Errorf("email = %q, existing record must be kept as-is", user.Email)
	}
}

// 未登録のloginは自動作成されること。
func TestResolveIdentity_NewUser_IsProvisioned(t *testing.T) {
	var createdLogin, createdEmail string
	users := &mockUserRepo{
		createFn: func(ctx context.Context, login, email string) (*model.User, error) {
			createdLogin = login
			createdEmail = email
			return &model.User{ID: "u5", Login: login, Email: email}, nil
		},
	}
	svc := newTestService(users, nil, nil)

	user, err := svc.ResolveIdentity(context.Background(), &ExternalIdentity{
		Login: "erin",
		Email: "erin@example.com",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "u5" {
		t.Errorf("id = %q, want %q", user.ID, "u5")
	}
	if createdLogin != "erin" || createdEmail != "erin@example.com" {
		t.Errorf("created (%q, %q), want (erin, erin@example.com)", createdLogin, createdEmail)
	}
}

// 同一loginの同時初回ログインでもユーザーは1人だけ作成され、
// 両方のリクエストが同じユーザーを参照すること。
// リポジトリのCreateは一意制約に裏付けられた冪等なupsertを模し、
// 2回目以降の呼び出しは既存ユーザーを返す。
func TestResolveIdentity_ConcurrentFirstLogins_SingleUser(t *testing.T) {
	var mu sync.Mutex
	var created *model.User
	createCalls := 0

	users := &mockUserRepo{
		findByLoginFn: func(ctx context.Context, login string) (*model.User, error) {
			// どちらのリクエストも未登録として進む（check-then-create競合の再現）
			return nil, nil
		},
		createFn: func(ctx context.Context, login, email string) (*model.User, error) {
			mu.Lock()
			defer mu.Unlock()
			createCalls++
			if created == nil {
				created = &model.User{ID: "u6", Login: login, Email: email}
			}
			return created, nil
		},
	}
	svc := newTestService(users, nil, nil)

	identity := &ExternalIdentity{Login: "frank", Email: "frank@example.com"}

	var wg sync.WaitGroup
	results := make([]*model.User, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := svc.ResolveIdentity(context.Background(), identity)
			if err != nil {
				t.Errorf("request %d: %v", i, err)
				return
			}
			results[i] = user
		}(i)
	}
	wg.Wait()

	if results[0] == nil || results[1] == nil {
		t.Fatal("both requests must resolve a user")
	}
	if results[0].ID != results[1].ID {
		t.Errorf("requests resolved different users: %q vs %q", results[0].ID, results[1].ID)
	}
	if createCalls != 2 {
		t.Errorf("createCalls = %d, want 2 (both raced into the upsert)", createCalls)
	}
}

// --- コールバック・セッション ---

func TestHandleCallback_IssuesSession(t *testing.T) {
	provider := &mockProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*ExternalIdentity, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want %q", code, "auth-code")
			}
			return &ExternalIdentity{Login: "grace", Email: "grace@example.com"}, nil
		},
	}
	users := &mockUserRepo{
		findByLoginFn: func(ctx context.Context, login string) (*model.User, error) {
			return &model.User{ID: "u7", Login: login}, nil
		},
	}
	var createdSession *model.Session
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	svc := newTestService(users, sessions, provider)

	session, err := svc.HandleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session.UserID != "u7" {
		t.Errorf("session.UserID = %q, want %q", session.UserID, "u7")
	}
	if createdSession == nil {
		t.Fatal("session must be persisted")
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64 hex chars", len(session.ID))
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("session must expire in the future")
	}
}

func TestHandleCallback_ProviderFailure_Propagates(t *testing.T) {
	provider := &mockProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*ExternalIdentity, error) {
			return nil, ErrProviderFailure
		},
	}
	svc := newTestService(nil, nil, provider)

	_, err := svc.HandleCallback(context.Background(), "bad-code")
	if !errors.Is(err, ErrProviderFailure) {
		t.Errorf("err = %v, want ErrProviderFailure", err)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	var deletedID string
	sessions := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	svc := newTestService(nil, sessions, nil)

	if err := svc.Logout(context.Background(), "sess-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if deletedID != "sess-1" {
		t.Errorf("deleted ID = %q, want %q", deletedID, "sess-1")
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc := newTestService(nil, nil, nil)
	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "u8", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Login: "henry"}, nil
		},
	}
	svc := newTestService(users, sessions, nil)

	user, err := svc.CurrentUser(context.Background(), "sess-2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Login != "henry" {
		t.Errorf("login = %q, want %q", user.Login, "henry")
	}
}

func TestCurrentUser_MissingSession_Unauthenticated(t *testing.T) {
	svc := newTestService(nil, &mockSessionRepo{}, nil)

	_, err := svc.CurrentUser(context.Background(), "expired-session")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}
