package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// IdentityHash derives the stable pseudonymous customer id used as the
// idempotency key for CRM subscriber and customer resources. The CRM keys list
// members by the MD5 of the lower-cased email address, so the digest choice is
// part of the wire contract and not interchangeable.
func IdentityHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
