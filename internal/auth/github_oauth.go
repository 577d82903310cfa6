package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGitHubAuthURL  = "https://github.com/login/oauth/authorize"
	defaultGitHubTokenURL = "https://github.com/login/oauth/access_token"
	defaultGitHubUserURL  = "https://api.github.com/user"
	defaultGitHubOrgsURL  = "https://api.github.com/user/orgs"
)

// ExternalIdentity はIdPが検証した外部アイデンティティを表す。
type ExternalIdentity struct {
	Login string
	Email string
}

// IdentityProvider は外部IdP統合のインターフェース。
type IdentityProvider interface {
	// Authenticate は検証済みの外部アイデンティティを返す。
	// 対話的フロー（ブラウザリダイレクト）を要するプロバイダーは
	// ErrLoginRequiredを返し、フローの完了はコールバックハンドラーが担う。
	Authenticate(ctx context.Context) (*ExternalIdentity, error)
}

// GitHubOAuthConfig はGitHub OAuthプロバイダーの設定。
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// 空でない場合、この組織のメンバーのみログインを許可する。
	RequiredOrg string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	UserURL  string
	OrgsURL  string
}

// GitHubOAuthProvider はGitHub OAuth 2.0（組織スコープ付き）による認証を提供する。
type GitHubOAuthProvider struct {
	config GitHubOAuthConfig
}

// NewGitHubOAuthProvider はGitHubOAuthProviderを生成する。
func NewGitHubOAuthProvider(config GitHubOAuthConfig) *GitHubOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGitHubAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGitHubTokenURL
	}
	if config.UserURL == "" {
		config.UserURL = defaultGitHubUserURL
	}
	if config.OrgsURL == "" {
		config.OrgsURL = defaultGitHubOrgsURL
	}
	return &GitHubOAuthProvider{config: config}
}

// Authenticate はErrLoginRequiredを返す。
// GitHubの認証はブラウザリダイレクトを伴う対話的フローであり、
// リクエスト内で同期的に完了できない。フローの完了は
// /auth/github/callback ハンドラーがExchangeCodeで行う。
func (p *GitHubOAuthProvider) Authenticate(ctx context.Context) (*ExternalIdentity, error) {
	return nil, ErrLoginRequired
}

// LoginURL はGitHub OAuthの認証URLを生成する。
// 組織制約がある場合はread:orgスコープを含める。
func (p *GitHubOAuthProvider) LoginURL(state string) string {
	scope := "read:user user:email"
	if p.config.RequiredOrg != "" {
		scope += " read:org"
	}

	params := url.Values{
		"client_id":    {p.config.ClientID},
		"redirect_uri": {p.config.RedirectURL},
		"scope":        {scope},
		"state":        {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// githubTokenResponse はGitHubのトークンエンドポイントのレスポンス。
type githubTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// githubUser はGitHubの/userエンドポイントのレスポンス。
type githubUser struct {
	Login string `json:"login"`
	Email string `json:"email"`
}

// githubOrg はGitHubの/user/orgsエンドポイントのレスポンス要素。
type githubOrg struct {
	Login string `json:"login"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、検証済みの
// 外部アイデンティティを取得する。組織制約が設定されている場合は
// メンバーシップも検証し、不足していればErrProviderFailureを返す。
func (p *GitHubOAuthProvider) ExchangeCode(ctx context.Context, code string) (*ExternalIdentity, error) {
	tokenResp, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	user, err := p.fetchUser(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	if p.config.RequiredOrg != "" {
		member, err := p.isOrgMember(ctx, tokenResp.AccessToken, p.config.RequiredOrg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
		}
		if !member {
			return nil, fmt.Errorf("%w: %s is not a member of organization %q",
				ErrProviderFailure, user.Login, p.config.RequiredOrg)
		}
	}

	return &ExternalIdentity{
		Login: user.Login,
		Email: user.Email,
	}, nil
}

// exchangeToken は認可コードをアクセストークンに交換する。
func (p *GitHubOAuthProvider) exchangeToken(ctx context.Context, code string) (*githubTokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// GitHubはデフォルトでクエリ文字列形式を返すため、JSONを明示する
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp githubTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tokenResp, nil
}

// fetchUser はアクセストークンでGitHubのユーザー情報を取得する。
func (p *GitHubOAuthProvider) fetchUser(ctx context.Context, accessToken string) (*githubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user githubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}

	if user.Login == "" {
		return nil, fmt.Errorf("empty login in user response")
	}

	return &user, nil
}

// isOrgMember はアクセストークンの所有者が指定組織のメンバーかを判定する。
func (p *GitHubOAuthProvider) isOrgMember(ctx context.Context, accessToken, org string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.OrgsURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create orgs request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("orgs request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read orgs response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("orgs fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var orgs []githubOrg
	if err := json.Unmarshal(body, &orgs); err != nil {
		return false, fmt.Errorf("failed to parse orgs response: %w", err)
	}

	for _, o := range orgs {
		if strings.EqualFold(o.Login, org) {
			return true, nil
		}
	}
	return false, nil
}

// compile-time interface check
var _ OAuthProvider = (*GitHubOAuthProvider)(nil)
