package taxid

// ValidCheckDigits verifies the two mod-11 check digits of a CPF (11 digits)
// or CNPJ (14 digits). Other lengths are never valid. Repeated-digit strings
// such as 000.000.000-00 pass the arithmetic but are rejected.
func ValidCheckDigits(raw string) bool {
	d := Digits(raw)
	switch len(d) {
	case personLen:
		if allSame(d) {
			return false
		}
		return cpfDigit(d[:9], 10) == d[9] && cpfDigit(d[:10], 11) == d[10]
	case entityLen:
		if allSame(d) {
			return false
		}
		return cnpjDigit(d[:12], cnpjWeights1) == d[12] && cnpjDigit(d[:13], cnpjWeights2) == d[13]
	}
	return false
}

// Hint returns the inline helper text for an identifier field, or "" when
// there is nothing to say. It never blocks input.
func Hint(raw string) string {
	n := NormalizeTaxID(raw)
	if n.Digits == "" {
		return ""
	}
	switch n.Kind {
	case KindInvalid:
		if len(n.Digits) > entityLen {
			return "Identificador com dígitos demais"
		}
		return "CPF tem 11 dígitos e CNPJ tem 14"
	case KindPerson:
		if !ValidCheckDigits(n.Digits) {
			return "CPF com dígito verificador inválido"
		}
	case KindEntity:
		if !ValidCheckDigits(n.Digits) {
			return "CNPJ com dígito verificador inválido"
		}
	}
	return ""
}

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

func cpfDigit(d string, firstWeight int) byte {
	sum := 0
	for i := 0; i < len(d); i++ {
		sum += int(d[i]-'0') * (firstWeight - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		r = 0
	}
	return byte('0' + r)
}

func cnpjDigit(d string, weights []int) byte {
	sum := 0
	for i := 0; i < len(d); i++ {
		sum += int(d[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}
