package usecase

import "strings"

// Indian-numbering amount-in-words conversion. Groups digits as
// thousand / lakh / crore rather than thousand / million / billion,
// e.g. 12,34,567 -> "Twelve Lakh Thirty Four Thousand Five Hundred
// Sixty Seven".

var onesWords = []string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
	"Seventeen", "Eighteen", "Nineteen",
}

var tensWords = []string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
}

// twoDigits renders 0-99.
func twoDigits(n int64) string {
	if n < 20 {
		return onesWords[n]
	}
	w := tensWords[n/10]
	if n%10 != 0 {
		w += " " + onesWords[n%10]
	}
	return w
}

// threeDigits renders 0-999.
func threeDigits(n int64) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, onesWords[n/100]+" Hundred")
		n %= 100
	}
	if n > 0 {
		parts = append(parts, twoDigits(n))
	}
	return strings.Join(parts, " ")
}

// numberToIndianWords renders a non-negative integer in the Indian
// system: the last three digits form one group, every higher group is
// two digits (thousand, lakh, crore, then recursively "<words> Crore"
// for amounts past 10^9).
func numberToIndianWords(n int64) string {
	if n == 0 {
		return "Zero"
	}

	var parts []string
	if n >= 1_00_00_000 { // crore
		parts = append(parts, numberToIndianWords(n/1_00_00_000)+" Crore")
		n %= 1_00_00_000
	}
	if n >= 1_00_000 { // lakh
		parts = append(parts, twoDigits(n/1_00_000)+" Lakh")
		n %= 1_00_000
	}
	if n >= 1_000 { // thousand
		parts = append(parts, twoDigits(n/1_000)+" Thousand")
		n %= 1_000
	}
	if n > 0 {
		parts = append(parts, threeDigits(n))
	}
	return strings.Join(parts, " ")
}

// AmountInWords converts a minor-unit amount (paise) into the phrase
// printed on invoices, e.g. 1234567 -> "Twelve Thousand Three Hundred
// Forty Five Rupees and Sixty Seven Paise Only".
func AmountInWords(amountMinor int64) string {
	if amountMinor < 0 {
		return "Minus " + AmountInWords(-amountMinor)
	}
	rupees := amountMinor / 100
	paise := amountMinor % 100

	var b strings.Builder
	b.WriteString(numberToIndianWords(rupees))
	b.WriteString(" Rupees")
	if paise > 0 {
		b.WriteString(" and ")
		b.WriteString(twoDigits(paise))
		b.WriteString(" Paise")
	}
	b.WriteString(" Only")
	return b.String()
}
