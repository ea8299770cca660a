package gateway

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	slashSymbol   = regexp.MustCompile(`^[A-Z]+/[A-Z]+$`)
	compactSymbol = regexp.MustCompile(`^[A-Z]{2,}$`)
)

// quoteAssets 用于拆分无分隔符的交易对，长的在前以免 USDT 被识别为 USD。
var quoteAssets = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "USD", "EUR", "GBP", "TRY", "DAI", "BTC", "ETH", "BNB"}

// ValidateSymbol 转大写并校验 BASE/QUOTE 或 BASEQUOTE 格式。
func ValidateSymbol(symbol string) (string, error) {
	if strings.TrimSpace(symbol) == "" {
		return "", fmt.Errorf("%w: symbol is required", ErrInvalidSymbol)
	}
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	if !slashSymbol.MatchString(upper) && !compactSymbol.MatchString(upper) {
		return "", fmt.Errorf("%w: %s. Expected: BTC/USDT or BTCUSDT", ErrInvalidSymbol, symbol)
	}
	return upper, nil
}

// Pair 交易对的基础币与计价币。
type Pair struct {
	Base  string
	Quote string
}

// String 返回统一格式 BASE/QUOTE。
func (p Pair) String() string { return p.Base + "/" + p.Quote }

// Join 以交易所要求的分隔符拼接，例如 "" (MEXC/Binance) 或 "_" (Gate.io)。
func (p Pair) Join(sep string) string { return p.Base + sep + p.Quote }

// ParsePair 拆分交易对；无分隔符时按已知计价币后缀匹配。
func ParsePair(symbol string) (Pair, error) {
	sym, err := ValidateSymbol(symbol)
	if err != nil {
		return Pair{}, err
	}
	if base, quote, ok := strings.Cut(sym, "/"); ok {
		return Pair{Base: base, Quote: quote}, nil
	}
	for _, q := range quoteAssets {
		if strings.HasSuffix(sym, q) && len(sym) > len(q) {
			return Pair{Base: strings.TrimSuffix(sym, q), Quote: q}, nil
		}
	}
	return Pair{}, fmt.Errorf("%w: cannot determine quote asset of %s, use BASE/QUOTE", ErrInvalidSymbol, symbol)
}
