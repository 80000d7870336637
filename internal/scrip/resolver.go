package scrip

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const (
	optionsSegment = "NFO"
	optionsType    = "OPTIDX"
)

// familyRule pins an underlying to an exact catalog name plus the sibling
// symbol prefixes it must never match. Substring matching across index
// families (NIFTY vs BANKNIFTY vs FINNIFTY) is exactly the bug this table
// exists to prevent.
type familyRule struct {
	name            string
	excludePrefixes []string
}

var familyRules = map[string]familyRule{
	"NIFTY": {
		name:            "NIFTY",
		excludePrefixes: []string{"NIFTYBANK", "NIFTYFIN", "NIFTYMID", "NIFTYNXT", "BANKNIFTY", "FINNIFTY", "MIDCPNIFTY"},
	},
	"BANKNIFTY": {
		name: "BANKNIFTY",
	},
	"FINNIFTY": {
		name: "FINNIFTY",
	},
	"SENSEX": {
		name: "SENSEX",
	},
}

// ruleFor falls back to an exact-name rule for underlyings without an
// explicit entry.
func ruleFor(underlying string) familyRule {
	base := strings.ToUpper(strings.TrimSpace(underlying))
	if rule, ok := familyRules[base]; ok {
		return rule
	}
	return familyRule{name: base}
}

// Resolve maps (underlying, strike, option side) to one tradable contract.
// A miss is an expected condition (catalog not loaded yet, strike not
// listed) and surfaces as exception.ErrScripNotFound; callers skip the
// cycle rather than treating it as fatal.
//
// Among multiple expiries the earliest parseable one wins; rows with
// unparsable expiry sort last and never beat a parseable one.
func (c *Catalog) Resolve(underlying string, strike int64, side enum.OptionSide) (model.Contract, error) {
	if !side.IsAvailable() {
		return model.Contract{}, exception.ErrScripUnknownSide
	}

	rows := c.Rows()
	if len(rows) == 0 {
		return model.Contract{}, exception.ErrScripEmptyCatalog
	}

	rule := ruleFor(underlying)
	suffix := side.String()
	// Catalogs encode strike at x100 fixed point.
	strikeScaled := strike * 100

	type candidate struct {
		row       model.CatalogRow
		expiry    time.Time
		parseable bool
	}

	var matches []candidate
	for _, row := range rows {
		if !strings.EqualFold(row.ExchSeg, optionsSegment) {
			continue
		}
		if !strings.EqualFold(row.InstrumentType, optionsType) {
			continue
		}

		symbol := strings.ToUpper(row.Symbol)
		if !strings.HasSuffix(symbol, suffix) {
			continue
		}
		if !strings.EqualFold(row.Name, rule.name) {
			continue
		}
		if excluded(symbol, rule.excludePrefixes) {
			continue
		}
		if !strikeEqual(row.Strike, strikeScaled) {
			continue
		}

		expiry, ok := parseExpiry(row.Expiry)
		matches = append(matches, candidate{row: row, expiry: expiry, parseable: ok})
	}

	if len(matches) == 0 {
		return model.Contract{}, exception.ErrScripNotFound
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].parseable != matches[j].parseable {
			return matches[i].parseable
		}
		return matches[i].expiry.Before(matches[j].expiry)
	})

	chosen := matches[0]
	lotSize, err := strconv.ParseInt(strings.TrimSpace(chosen.row.LotSize), 10, 64)
	if err != nil || lotSize <= 0 {
		lotSize = 1
	}

	return model.Contract{
		Exchange:      optionsSegment,
		TradingSymbol: chosen.row.Symbol,
		Token:         chosen.row.Token,
		LotSize:       lotSize,
		Expiry:        chosen.expiry,
	}, nil
}

func excluded(symbol string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(symbol, prefix) {
			return true
		}
	}
	return false
}

// strikeEqual compares the row's string strike against the target at the
// same x100 fixed-point scale.
func strikeEqual(raw string, targetScaled int64) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return false
	}
	return int64(math.Round(f)) == targetScaled
}
