package trade

import (
	"strconv"
	"strings"
	"time"
)

const keyVersion = "v2"

// NewKey mints the position key for an episode of symbol in accountID that
// opened at openedAt. The key is a pure function of its inputs so the tag
// resolver can re-derive it for rows that were never assigned one.
func NewKey(accountID, symbol string, openedAt time.Time) string {
	return keyVersion + "|" + accountID + "|" + symbol + "|" + strconv.FormatInt(openedAt.UnixMilli(), 10)
}

// LegacyKey renders the colon delimited key written before versioned keys.
func LegacyKey(accountID, symbol string, openedAt time.Time) string {
	return accountID + ":" + symbol + ":" + strconv.FormatInt(openedAt.UnixMilli(), 10)
}

// ValidKey reports whether k is a well formed current-version key. Only
// well formed keys are trusted and reused by the identity assigner.
func ValidKey(k string) bool {
	rest, ok := strings.CutPrefix(k, keyVersion+"|")
	if !ok {
		return false
	}
	i := strings.LastIndexByte(rest, '|')
	if i <= 0 {
		return false
	}
	if _, err := strconv.ParseInt(rest[i+1:], 10, 64); err != nil {
		return false
	}
	account, symbol, ok := strings.Cut(rest[:i], "|")
	return ok && account != "" && symbol != ""
}
