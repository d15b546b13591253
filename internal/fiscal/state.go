package fiscal

import (
	"sort"
	"strings"

	"github.com/rezonia/sefaz-bridge/internal/model"
)

// stateCodes maps IBGE numeric codes to federative unit abbreviations
var stateCodes = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA",
	"16": "AP", "17": "TO", "21": "MA", "22": "PI", "23": "CE",
	"24": "RN", "25": "PB", "26": "PE", "27": "AL", "28": "SE",
	"29": "BA", "31": "MG", "32": "ES", "33": "RJ", "35": "SP",
	"41": "PR", "42": "SC", "43": "RS", "50": "MS", "51": "MT",
	"52": "GO", "53": "DF",
}

var ibgeCodes = func() map[string]string {
	m := make(map[string]string, len(stateCodes))
	for code, uf := range stateCodes {
		m[uf] = code
	}
	return m
}()

// StateFromCode returns the abbreviation for a two-digit IBGE code
func StateFromCode(code string) (string, bool) {
	uf, ok := stateCodes[code]
	return uf, ok
}

// StateFromKey returns the issuing state of an access key from its first two digits
func StateFromKey(key string) (string, bool) {
	if len(key) < 2 {
		return "", false
	}
	return StateFromCode(key[:2])
}

// IBGECode returns the two-digit IBGE code for a state abbreviation
func IBGECode(uf string) (string, bool) {
	code, ok := ibgeCodes[strings.ToUpper(strings.TrimSpace(uf))]
	return code, ok
}

// ValidState reports whether uf is one of the 27 federative units
func ValidState(uf string) bool {
	_, ok := IBGECode(uf)
	return ok
}

// States returns all federative unit abbreviations in alphabetical order
func States() []string {
	out := make([]string, 0, len(ibgeCodes))
	for uf := range ibgeCodes {
		out = append(out, uf)
	}
	sort.Strings(out)
	return out
}

// CleanAccessKey strips non-digits from raw and checks it is usable as an
// NF-e key. NFS-e keys (50-56 digits) are issued by municipalities and are
// reported separately.
func CleanAccessKey(raw string) (model.AccessKey, error) {
	digits := Digits(raw)
	switch n := len(digits); {
	case n == model.AccessKeyLength:
		return model.AccessKey(digits), nil
	case n >= 50 && n <= 56:
		return "", model.NewInvalidKeyError(n, "NFS-e keys are issued by municipalities and are not supported")
	default:
		return "", model.NewInvalidKeyError(n, "NF-e access key must have 44 digits")
	}
}
