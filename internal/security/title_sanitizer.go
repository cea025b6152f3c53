package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TitleSanitizer は予定タイトルからHTMLを除去し、プレーンテキストに正規化する。
// 予定の保存時（POST /events）に使用する。
type TitleSanitizer interface {
	Sanitize(title string) string
}

// titleSanitizer はbluemondayのStrictPolicyで全タグを除去する実装。
// script/styleは要素の内容ごと除去される。
type titleSanitizer struct {
	policy *bluemonday.Policy
}

// NewTitleSanitizer はTitleSanitizerの新しいインスタンスを生成する。
func NewTitleSanitizer() *titleSanitizer {
	return &titleSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去した後にエンティティを戻し、前後の空白を取り除く。
// タイトルはHTMLとして描画しないため、"&" などはそのまま保持する。
func (s *titleSanitizer) Sanitize(title string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(title)))
}
