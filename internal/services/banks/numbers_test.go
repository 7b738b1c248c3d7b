package banks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234.567,89", "1234567.89"},
		{"1,234,567.89", "1234567.89"},
		{"1.000.000,00", "1000000"},
		{"1,000.00", "1000"},
		{"500.000", "500000"},
		{"1.000.000,00 DB", "1000000"},
		{"250.000,00 CR", "250000"},
		{"Rp 75.500,50", "75500.5"},
		{"(100.000,00)", "-100000"},
		{"-2.500,00", "-2500"},
		{"", "0"},
		{"-", "0"},
		{"0,00", "0"},
		{"123", "123"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, in := range []string{"TRANSFER", "12AB34", "satu juta"} {
		_, err := ParseAmount(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in         string
		periodYear int
		want       string
	}{
		{"14/03/2025", 0, "2025-03-14"},
		{"14-03-2025", 0, "2025-03-14"},
		{"2025-03-14", 0, "2025-03-14"},
		{"14 Mar 2025", 0, "2025-03-14"},
		{"5 Mei 2025", 0, "2025-05-05"},
		{"14 Desember 2025", 0, "2025-12-14"},
		{"01/03", 2025, "2025-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in, tt.periodYear)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestParseDateFullMonthNames(t *testing.T) {
	// Full names that contain their own abbreviation ("Agu" in "Agustus")
	// must translate whole, regardless of replacement order
	tests := []struct {
		in   string
		want string
	}{
		{"02 Agustus 2024", "2024-08-02"},
		{"07 Oktober 2024", "2024-10-07"},
		{"19 Desember 2024", "2024-12-19"},
		{"02 Agu 2024", "2024-08-02"},
		{"07 Okt 2024", "2024-10-07"},
		{"19 Des 2024", "2024-12-19"},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Format("2006-01-02"), tt.in)
	}
}

func TestParseDateFailures(t *testing.T) {
	_, err := ParseDate("", 0)
	assert.Error(t, err)

	// Day/month without year needs a period year
	_, err = ParseDate("01/03", 0)
	assert.Error(t, err)

	_, err = ParseDate("KETERANGAN", 2025)
	assert.Error(t, err)
}

func TestLooksLikeDate(t *testing.T) {
	assert.True(t, LooksLikeDate("14/03/2025", 0))
	assert.False(t, LooksLikeDate("SALDO", 0))

	d, _ := ParseDate("14/03/2025", 0)
	assert.Equal(t, time.March, d.Month())
}
