package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"Investa/config"
)

// HashPhone 日志里不出现明文手机号，只记录加盐哈希，盐 + ":" + phone
func HashPhone(phone string) string {
	if phone == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(config.Cfg.PhoneHashSalt + ":" + phone))
	return hex.EncodeToString(sum[:8])
}
