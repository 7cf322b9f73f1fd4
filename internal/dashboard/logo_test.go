package dashboard

import "testing"

func TestLogoID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"FundingPips":            "fundingpips",
		"The5ers":                "the5ers",
		"E8 Markets":             "e8markets",
		"OANDA Prop Trader":      "oandaprop",
		"City Traders Imperium":  "citytraders",
		"Funded Next Futures":    "fundednextfutures",
		"Apex Trader Funding":    "apextrader",
		"Goat Funded Trader Pro": "goatfunded",
		"Unknown Capital":        DefaultLogoID,
		"":                       DefaultLogoID,
	}
	for name, want := range cases {
		if got := LogoID(name); got != want {
			t.Fatalf("LogoID(%q) = %q, want %q", name, got, want)
		}
	}
}
