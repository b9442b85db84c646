package collector

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultQuote is appended to bare base assets such as "BTC".
const DefaultQuote = "USDT"

// Quote currencies in detection order.
var quoteCurrencies = []string{"USDT", "USDC", "FDUSD", "BUSD", "BTC", "ETH", "BNB", "EUR"}

var validSymbol = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

// Pair is a base/quote trading pair.
type Pair struct {
	Base  string
	Quote string
}

// String renders the pair as BASE/QUOTE, the form used for storage and
// display.
func (p Pair) String() string {
	if p.Quote == "" {
		return p.Base
	}
	return p.Base + "/" + p.Quote
}

// Exchange renders the pair as BASEQUOTE, the form exchange REST APIs take.
func (p Pair) Exchange() string {
	return p.Base + p.Quote
}

// ParsePair accepts "BTC", "btc/usdt", "BTC-USDT", "BTC_USDT" or "BTCUSDT".
// Bare bases get DefaultQuote.
func ParsePair(input string) (Pair, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return Pair{}, fmt.Errorf("symbol cannot be empty")
	}
	if len(s) > 30 {
		return Pair{}, fmt.Errorf("symbol too long: %s", input)
	}

	for _, sep := range []string{"/", "-", "_"} {
		if base, quote, ok := strings.Cut(s, sep); ok {
			if !validSymbol.MatchString(base) || !validSymbol.MatchString(quote) {
				return Pair{}, fmt.Errorf("invalid symbol format: %s", input)
			}
			return Pair{Base: base, Quote: quote}, nil
		}
	}

	if !validSymbol.MatchString(s) {
		return Pair{}, fmt.Errorf("invalid symbol format: %s", input)
	}
	// a base must be left over once the quote is removed
	for _, q := range quoteCurrencies {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return Pair{Base: strings.TrimSuffix(s, q), Quote: q}, nil
		}
	}
	return Pair{Base: s, Quote: DefaultQuote}, nil
}
