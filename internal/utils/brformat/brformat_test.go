package brformat

import (
	"errors"
	"testing"
	"time"

	"ConsorcioSync/internal/etlerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalGroupCode(t *testing.T) {
	cases := map[string]string{
		"164":      "00164",
		"00164":    "00164",
		"1":        "00001",
		"1234567":  "34567",
		" 9876 ":   "09876",
		"164.0":    "00164",
		"AB123":    "AB123",
		"12345":    "12345",
		"99912345": "12345",
	}
	for raw, want := range cases {
		got, err := CanonicalGroupCode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
		assert.Len(t, got, GroupCodeWidth)

		again, err := CanonicalGroupCode(got)
		require.NoError(t, err)
		assert.Equal(t, got, again, "canonicalization must be idempotent for %q", raw)
	}

	_, err := CanonicalGroupCode("   ")
	assert.Error(t, err)
}

func TestParseBRDecimal(t *testing.T) {
	d, ok, err := ParseBRDecimal("1.234,56")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1234.56", d.String())

	f, ok, err := ParseBRFloat("51,76")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 51.76, f, 1e-9)

	d, _, err = ParseBRDecimal("R$ 12.500.000,00")
	require.NoError(t, err)
	assert.True(t, d.Equal(d.Truncate(0)))
	assert.Equal(t, "12500000", d.String())

	d, _, err = ParseBRDecimal("1234.56")
	require.NoError(t, err)
	assert.Equal(t, "1234.56", d.String())

	d, _, err = ParseBRDecimal("35,5%")
	require.NoError(t, err)
	assert.Equal(t, "35.5", d.String())

	_, ok, err = ParseBRDecimal("")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseBRDecimal("abc")
	var ne *etlerr.NumberFormatError
	assert.True(t, errors.As(err, &ne))
}

func TestParseBRDecimalThousandsWithoutComma(t *testing.T) {
	cases := map[string]string{
		"50.000":       "50000",
		"1.234":        "1234",
		"1.234.567":    "1234567",
		"R$ 12.500":    "12500",
		"-2.500":       "-2500",
		"1.200":        "1200",
		"1234.56":      "1234.56",
		"1234.567":     "1234.567",
		"0.358":        "0.358",
		"35.5":         "35.5",
		"1.5":          "1.5",
		"12.34":        "12.34",
		"1.234.567,89": "1234567.89",
	}
	for raw, want := range cases {
		d, ok, err := ParseBRDecimal(raw)
		require.NoError(t, err, raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, d.String(), raw)
	}

	for _, raw := range []string{"1.23.456", "1.2345.678", "01.234.567"} {
		_, _, err := ParseBRDecimal(raw)
		var ne *etlerr.NumberFormatError
		assert.True(t, errors.As(err, &ne), raw)
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("31/01/2024", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2024-02-29", []string{"02/01/2006", "2006-01-02"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	// 首个匹配的格式生效
	got, err = ParseDate("01/02/2024", []string{"01/02/2006", "02/01/2006"})
	require.NoError(t, err)
	assert.Equal(t, time.January, got.Month())

	_, err = ParseDate("2024-13-45", nil)
	var de *etlerr.DateFormatError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "2024-13-45", de.Value)
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "descricao_do_bem", NormalizeColumn("Descrição do Bem"))
	assert.Equal(t, "prazo_meses", NormalizeColumn("  Prazo (meses) "))
	assert.Equal(t, "lance_medio", NormalizeColumn("Lance Médio %"))
	assert.Equal(t, "n_grupo", NormalizeColumn("Nº Grupo"))
}

func TestMonthsBetween(t *testing.T) {
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 14, MonthsBetween(now, time.Date(2027, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, MonthsBetween(now, time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -2, MonthsBetween(now, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)))
}

func TestParseStagingDate(t *testing.T) {
	d, err := ParseStagingDate("2026-09-30")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-30", FormatDate(d))

	_, err = ParseStagingDate("30/09/2026")
	var de *etlerr.DateFormatError
	assert.True(t, errors.As(err, &de))
}

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "01643", OnlyDigits("GR-0164/3"))
	assert.Equal(t, "", OnlyDigits("abc"))
}
