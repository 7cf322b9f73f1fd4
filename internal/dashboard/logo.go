package dashboard

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultLogoID is used when no mapping matches a firm name.
const DefaultLogoID = "fundingpips"

var logoAliases = map[string]string{
	"fundingpips":         "fundingpips",
	"the5ers":             "the5ers",
	"e8markets":           "e8markets",
	"alphacapital":        "alphacapital",
	"fundednext":          "fundednext",
	"ftmo":                "ftmo",
	"maven":               "maven",
	"oandaproptrader":     "oandaprop",
	"toponetrader":        "toponetrader",
	"fortraders":          "fortraders",
	"brightfunded":        "brightfunded",
	"breakout":            "breakoutprop",
	"goatfundedtrader":    "goatfunded",
	"aquafunded":          "aquafunded",
	"seacrestfunded":      "seacrestfunded",
	"qtfunded":            "qtfunded",
	"citytradersimperium": "citytraders",
	"fundingtraders":      "fundingtrader",
	"fundedtradingplus":   "fundedtradingplus",
	"blueberryfunded":     "blueberry",
	"instantfunding":      "instantfunding",
	"fintokei":            "fintokei",
	"blueguardian":        "blueguardian",
	"the5":                "the5ers",
	"e8":                  "e8markets",
	"oanda":               "oandaprop",
	"cti":                 "citytraders",
	"goat":                "goatfunded",
	"qt":                  "qtfunded",
	"blueberry":           "blueberry",
	"funding":             "fundingpips",
	"pips":                "fundingpips",
	"myfundedfutures":     "myfundedfutures",
	"topstep":             "topstep",
	"alphafutures":        "alphafutures",
	"toponefutures":       "toponefutures",
	"fundingticks":        "fundingticks",
	"fundednextfutures":   "fundednextfutures",
	"apextraderfunding":   "apextrader",
	"apextrader":          "apextrader",
	"aquafutures":         "aquafutures",
	"takeprofittrader":    "takeprofittrader",
	"tradeify":            "tradeify",
	"blueguardianfutures": "blueguardianfutures",
	"earn2trade":          "earn2trade",
	"thetradingpit":       "thetradingpit",
	"tradeday":            "tradeday",
	"traderslaunch":       "traderslaunch",
}

// aliasKeys is the partial-match scan order: longest key first so that
// "fundednextfutures" wins over "fundednext".
var aliasKeys = func() []string {
	keys := make([]string, 0, len(logoAliases))
	for k := range logoAliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// LogoID maps a firm name to the id of its logo asset.
func LogoID(firm string) string {
	normalized := normalizeName(firm)
	if normalized == "" {
		return DefaultLogoID
	}
	if id, ok := logoAliases[normalized]; ok {
		return id
	}
	for _, key := range aliasKeys {
		if strings.Contains(normalized, key) || strings.Contains(key, normalized) {
			return logoAliases[key]
		}
	}
	return DefaultLogoID
}

func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
