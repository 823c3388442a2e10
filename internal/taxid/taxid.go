// Package taxid normalizes Brazilian taxpayer identifiers (CPF and CNPJ) and
// postal codes (CEP). All functions are pure string transforms, cheap enough to
// run on every keystroke.
package taxid

import "strings"

// Kind tells which identifier a digit string is, judged only by its length.
type Kind string

const (
	KindPerson  Kind = "person"
	KindEntity  Kind = "entity"
	KindInvalid Kind = "invalid"
)

const (
	personLen = 11
	entityLen = 14
	postalLen = 8
)

// Result is the outcome of NormalizeTaxID.
type Result struct {
	Digits    string `json:"digits"`
	Formatted string `json:"formatted"`
	Kind      Kind   `json:"kind"`
}

// PostalCode is the outcome of NormalizePostalCode.
type PostalCode struct {
	Digits    string `json:"digits"`
	Formatted string `json:"formatted"`
	Valid     bool   `json:"valid"`
}

// Masks, as positions after which a separator is inserted.
var (
	personMask = []maskStop{{3, '.'}, {6, '.'}, {9, '-'}}
	entityMask = []maskStop{{2, '.'}, {5, '.'}, {8, '/'}, {12, '-'}}
	postalMask = []maskStop{{5, '-'}}
)

type maskStop struct {
	after int
	sep   byte
}

// Digits removes every character that is not an ASCII digit.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

// NormalizeTaxID canonicalizes a CPF or CNPJ typed in any punctuation.
// Lengths other than 11 or 14 are reported as KindInvalid; their Formatted
// value carries the mask only as far as the typed digits reach, the way the
// input field shows it while the user is still typing.
func NormalizeTaxID(raw string) Result {
	d := Digits(raw)
	switch {
	case len(d) == personLen:
		return Result{Digits: d, Formatted: applyMask(d, personMask), Kind: KindPerson}
	case len(d) == entityLen:
		return Result{Digits: d, Formatted: applyMask(d, entityMask), Kind: KindEntity}
	case len(d) < personLen:
		return Result{Digits: d, Formatted: applyMask(d, personMask), Kind: KindInvalid}
	case len(d) < entityLen:
		return Result{Digits: d, Formatted: applyMask(d, entityMask), Kind: KindInvalid}
	default:
		return Result{Digits: d, Formatted: d, Kind: KindInvalid}
	}
}

// FormatTaxID returns the display form of an identifier.
func FormatTaxID(raw string) string {
	return NormalizeTaxID(raw).Formatted
}

// NormalizePostalCode canonicalizes a CEP. Only exactly 8 digits are valid.
func NormalizePostalCode(raw string) PostalCode {
	d := Digits(raw)
	if len(d) != postalLen {
		return PostalCode{Digits: d, Formatted: d}
	}
	return PostalCode{Digits: d, Formatted: applyMask(d, postalMask), Valid: true}
}

func applyMask(d string, mask []maskStop) string {
	var b strings.Builder
	b.Grow(len(d) + len(mask))
	next := 0
	for i := 0; i < len(d); i++ {
		if next < len(mask) && i == mask[next].after {
			b.WriteByte(mask[next].sep)
			next++
		}
		b.WriteByte(d[i])
	}
	return b.String()
}
