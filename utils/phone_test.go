package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"leadintake/utils"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, cc, want string
	}{
		{"+12015550123", "1", "+12015550123"},
		{"+1 (201) 555-0123", "1", "+12015550123"},
		{"201.555.0123", "1", "+12015550123"},
		{"1 201 555 0123", "1", "+12015550123"},
		{"0044 20 7946 0958", "1", "+442079460958"},
		// national trunk prefix
		{"020 7946 0958", "44", "+442079460958"},
		{"20 7946 0958", "+44", "+442079460958"},
		{"+12015550123", "", "+12015550123"},
	}
	for _, tc := range cases {
		got, err := utils.NormalizePhone(tc.in, tc.cc)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalizePhoneRejects(t *testing.T) {
	cases := []struct {
		in, cc string
	}{
		{"", "1"},
		{"   ", "1"},
		{"call me", "1"},
		{"12345", "1"},
		// too short for NANP
		{"+1 555 1234", "1"},
		// no such area code
		{"+1 000 000 0000", "1"},
		{"+0123456789", "1"},
		{"+1234567890123456", "1"},
		// national number with no usable region
		{"201 555 0123", ""},
	}
	for _, tc := range cases {
		_, err := utils.NormalizePhone(tc.in, tc.cc)
		require.ErrorIs(t, err, utils.ErrInvalidPhone, tc.in)
	}
}

func TestMaskPhone(t *testing.T) {
	require.Equal(t, "********0123", utils.MaskPhone("+12015550123"))
	require.Equal(t, "****", utils.MaskPhone("123"))
}
