package aggregator

import (
	"chat-bot/internal/providers/price"
	"strings"
	"unicode"
)

type cryptoKeyword struct {
	word  string
	asset string
}

// cryptoKeywords is checked in order; the first keyword present in a query wins.
var cryptoKeywords = []cryptoKeyword{
	{"bitcoin", "bitcoin"}, {"btc", "bitcoin"},
	{"ethereum", "ethereum"}, {"eth", "ethereum"},
	{"dogecoin", "dogecoin"}, {"doge", "dogecoin"},
	{"litecoin", "litecoin"}, {"ltc", "litecoin"},
	{"ripple", "ripple"}, {"xrp", "ripple"},
	{"cardano", "cardano"}, {"ada", "cardano"},
	{"solana", "solana"}, {"sol", "solana"},
	{"binance", "binancecoin"}, {"bnb", "binancecoin"},
	{"polygon", "polygon"}, {"matic", "polygon"},
	{"avalanche", "avalanche-2"}, {"avax", "avalanche-2"},
}

// pairSuffixes may follow a keyword inside one token, as in "btcusd" or "ethusdt"
var pairSuffixes = []string{"s", "es", "usd", "usdt", "usdc", "eur", "gbp", "btc", "eth"}

// DetectAsset returns the canonical asset mentioned in query. Keywords are checked in
// table order; a token names a keyword when it equals it or extends it by a plural or
// quote-currency suffix, so "bitcoins" and "BTCUSD" match while "solution" does not.
func DetectAsset(query string) (price.Asset, bool) {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, kw := range cryptoKeywords {
		for _, w := range words {
			if namesKeyword(w, kw.word) {
				return price.Lookup(kw.asset), true
			}
		}
	}
	return price.Asset{}, false
}

func namesKeyword(word, keyword string) bool {
	rest, ok := strings.CutPrefix(word, keyword)
	if !ok {
		return false
	}
	if rest == "" {
		return true
	}
	for _, suffix := range pairSuffixes {
		if rest == suffix {
			return true
		}
	}
	return false
}
