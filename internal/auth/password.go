package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost はパスワードハッシュのbcryptコスト。
const DefaultCost = bcrypt.DefaultCost

// HashPassword はパスワードのbcryptハッシュを生成する。
// costがbcryptの許容範囲外の場合はDefaultCostを使用する。
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword はパスワードがハッシュと一致するかどうかを返す。
// 空のハッシュ（資格情報なしのユーザー）は常に不一致となる。
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
