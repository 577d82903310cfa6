package handler

import (
	"net/http"
	"path/filepath"
	"strings"
)

// ArtHandler はカバーアート画像を配信するハンドラー。
// 認証ゲートの免除対象であり、外部埋め込み（チャットのプレビュー等）から
// 直接参照される。
type ArtHandler struct {
	dir string
}

// NewArtHandler は指定ディレクトリから画像を配信するArtHandlerを生成する。
func NewArtHandler(dir string) *ArtHandler {
	return &ArtHandler{dir: dir}
}

// Serve はカバーアートのPNGファイルを返す。
// ディレクトリトラバーサルを防ぐため、パスのファイル名部分のみを使用する。
// GET /images/art/{file}
func (h *ArtHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.URL.Path)

	// PNG以外は配信しない
	if !strings.HasSuffix(name, ".png") || name == ".png" {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filepath.Join(h.dir, name))
}
