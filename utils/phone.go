package utils

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts a user-typed phone number into E.164 form. Numbers
// without a leading "+" are read in the region of defaultCountryCode (digits,
// e.g. "1" or "44"); a leading "00" is read as "+". Only numbers valid for
// their region are accepted.
func NormalizePhone(raw, defaultCountryCode string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidPhone
	}
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}

	num, err := phonenumbers.Parse(s, regionFor(defaultCountryCode))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// regionFor maps a calling code to its main region. Unknown codes yield "ZZ",
// which only accepts numbers written with a leading "+".
func regionFor(countryCode string) string {
	cc, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(countryCode), "+"))
	if err != nil {
		return "ZZ"
	}
	return phonenumbers.GetRegionCodeForCountryCode(cc)
}

// MaskPhone hides all but the last four digits for log output.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
