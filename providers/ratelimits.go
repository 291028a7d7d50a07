package providers

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/modelatlas/pipeline/schemas"
)

// rateLimitFieldRe matches one labeled limit, e.g. "RPM: 30", "TPM 6K" or
// "rpd=14,400".
var rateLimitFieldRe = regexp.MustCompile(`(?i)\b(rpm|rpd|tpm|tpd)\b\s*[:=]?\s*([\d][\d,.]*\s*[km]?)`)

// ParseRateLimits extracts the rpm/rpd/tpm/tpd fields from a raw provider
// limit string. Parseable is true when at least one field was read; the raw
// string is always carried through verbatim.
func ParseRateLimits(raw string, provider schemas.InferenceProvider) schemas.RateLimitRow {
	row := schemas.RateLimitRow{
		InferenceProvider: string(provider),
		RawString:         raw,
	}
	for _, match := range rateLimitFieldRe.FindAllStringSubmatch(raw, -1) {
		value, ok := parseLimitValue(match[2])
		if !ok {
			continue
		}
		switch strings.ToLower(match[1]) {
		case "rpm":
			row.RPM = value
		case "rpd":
			row.RPD = value
		case "tpm":
			row.TPM = value
		case "tpd":
			row.TPD = value
		}
		row.Parseable = true
	}
	return row
}

// parseLimitValue reads a human count: "30", "14,400", "6K", "1.5M".
func parseLimitValue(raw string) (int64, bool) {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1_000
		s = strings.TrimSpace(strings.TrimSuffix(s, "K"))
	case strings.HasSuffix(s, "M"):
		multiplier = 1_000_000
		s = strings.TrimSpace(strings.TrimSuffix(s, "M"))
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(value * float64(multiplier))), true
}
