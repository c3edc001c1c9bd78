package aircon

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalized mode values shared across firmware generations.
const (
	ModeAuto = "auto"
	ModeCool = "cool"
	ModeHeat = "heat"
	ModeFan  = "fan"
	ModeDry  = "dry"
)

// Normalized power values.
const (
	PowerOn  = "1"
	PowerOff = "0"
)

// modeCodes maps traditional API mode codes to normalized mode names.
// Codes 0, 1 and 7 are all variants of automatic operation.
var modeCodes = map[string]string{
	"0": ModeAuto,
	"1": ModeAuto,
	"7": ModeAuto,
	"2": ModeDry,
	"3": ModeCool,
	"4": ModeHeat,
	"6": ModeFan,
}

// fanRateCodes maps traditional API fan codes to normalized fan rates.
// "A" is automatic, "B" is quiet/night mode, 3..7 are speeds 1..5.
var fanRateCodes = map[string]string{
	"A": "auto",
	"B": "quiet",
	"3": "1",
	"4": "2",
	"5": "3",
	"6": "4",
	"7": "5",
}

// fanDirCodes maps traditional API swing codes to normalized directions.
var fanDirCodes = map[string]string{
	"0": "off",
	"1": "vertical",
	"2": "horizontal",
	"3": "3d",
}

// ParseKeyValueResponse parses a traditional Daikin controller response body
// of the form "ret=OK,pow=1,mode=3,stemp=24.0". It returns the key/value
// pairs with the name field URL-unescaped.
//
// A missing or non-OK "ret" field is an error: the body is a firmware error
// response, not a settings payload.
func ParseKeyValueResponse(body string) (map[string]string, error) {
	pairs := strings.Split(strings.TrimSpace(body), ",")
	values := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		k, v, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		values[k] = v
	}

	if ret, ok := values["ret"]; !ok || ret != "OK" {
		return nil, fmt.Errorf("%w: ret=%q", ErrBadResponse, values["ret"])
	}

	if name, ok := values["name"]; ok {
		if unescaped, err := url.QueryUnescape(name); err == nil {
			values["name"] = unescaped
		}
	}

	return values, nil
}

// Normalize converts raw key/value pairs from a traditional-API bridge into
// normalized field values. Keys that are not controllable fields and codes
// outside the known tables are passed through untouched; normalization is a
// convenience, not a gate (bridges for newer firmwares already publish
// normalized names).
func Normalize(raw map[string]string) map[Field]string {
	out := make(map[Field]string, len(raw))
	for k, v := range raw {
		f := Field(k)
		if !KnownField(f) {
			continue
		}
		out[f] = NormalizeValue(f, v)
	}
	return out
}

// NormalizeValue translates a single raw value into its normalized form.
// Already-normalized values pass through unchanged.
func NormalizeValue(f Field, raw string) string {
	switch f {
	case FieldMode:
		if name, ok := modeCodes[raw]; ok {
			return name
		}
	case FieldFanRate:
		if name, ok := fanRateCodes[raw]; ok {
			return name
		}
	case FieldFanDir:
		if name, ok := fanDirCodes[raw]; ok {
			return name
		}
	case FieldPower, FieldTargetTemp:
		// Power is already "0"/"1"; temperatures stay as decimal strings.
	}
	return raw
}
