package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// GenerateCodeVerifier は暗号的に安全なPKCEコード検証子を生成する。
// 48バイトの乱数をbase64url（パディングなし）でエンコードし、64文字になる。
// RFC 7636の43〜128文字の要件を満たす。
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ChallengeS256 はコード検証子からS256方式のPKCEチャレンジを導出する。
// SHA-256ハッシュをbase64url（パディングなし）でエンコードする。
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState はCSRF対策用のランダムなstate値を生成する。
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
