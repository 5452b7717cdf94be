// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（認証情報）を表す。
// メールアドレスをユーザー名として扱う。
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	EmailConfirmed    bool
	LockoutEnabled    bool
	AccessFailedCount int
	LockoutEnd        *time.Time // nilまたは過去時刻ならロックされていない
	Claims            []Claim
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsLockedOut は指定時刻にアカウントがロック中かどうかを返す。
func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnabled && u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

// Claim はユーザーに付与された名前/値の属性。細粒度の認可判定に使う。
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ClaimTag は操作ごとに要求されるクレーム種別。
// 動的なポリシー登録は行わず、ここで列挙したものだけを使う。
type ClaimTag string

const (
	// ClaimDeleteTask はタスク削除に必要なクレーム。
	ClaimDeleteTask ClaimTag = "DeleteTask"
)

// Principal は検証済みトークンから復元した呼び出し元の情報。
type Principal struct {
	UserID string
	Email  string
	Claims []Claim
}

// HasClaim は指定種別のクレームを保持しているかを返す。値は問わない。
func (p *Principal) HasClaim(tag ClaimTag) bool {
	for _, c := range p.Claims {
		if c.Type == string(tag) {
			return true
		}
	}
	return false
}

// AccessToken は登録・ログイン成功時に返すトークン情報。
type AccessToken struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64 // 秒
	ExpiresAt   time.Time
	User        TokenUser
}

// TokenUser はトークンに埋め込まれたユーザー情報。
type TokenUser struct {
	ID     string
	Email  string
	Claims []Claim
}
