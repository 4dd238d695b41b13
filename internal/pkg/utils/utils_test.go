package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomHexLength(t *testing.T) {
	assert.Len(t, RandomHex(4), 8)
	assert.Len(t, RandomHex(16), 32)
	assert.NotEqual(t, RandomHex(8), RandomHex(8))
}

func TestRandomCode(t *testing.T) {
	code := RandomCode(8)
	assert.Len(t, code, 8)
	// Confusable characters are excluded from the charset.
	assert.NotContains(t, code, "0")
	assert.NotContains(t, code, "O")
	assert.NotContains(t, code, "l")
	assert.NotContains(t, code, "1")
}

func TestGenerateUsername(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateUsername("vpn"), "vpn_"))
	assert.True(t, strings.HasPrefix(GenerateUsername(""), "user_"))
}

func TestGenerateOrderID(t *testing.T) {
	id := GenerateOrderID()
	assert.True(t, strings.HasPrefix(id, "ORD-"))
	assert.NotEqual(t, id, GenerateOrderID())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "0 B", FormatBytes(-5))
	assert.Equal(t, "512.00 B", FormatBytes(512))
	assert.Equal(t, "1.00 KB", FormatBytes(1024))
	assert.Equal(t, "1.50 MB", FormatBytes(1572864))
	assert.Equal(t, "1.00 GB", FormatBytes(1073741824))
}

func TestConvertPersianToEnglish(t *testing.T) {
	assert.Equal(t, "123", ConvertPersianToEnglish("۱۲۳"))
	assert.Equal(t, "456", ConvertPersianToEnglish("٤٥٦"))
	assert.Equal(t, "abc123", ConvertPersianToEnglish("abc۱۲۳"))
	assert.Equal(t, "plain", ConvertPersianToEnglish("plain"))
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 42, ParseInt("42", 0))
	assert.Equal(t, 42, ParseInt(" 42 ", 0))
	assert.Equal(t, 42, ParseInt("۴۲", 0))
	assert.Equal(t, -7, ParseInt("abc", -7))
	assert.Equal(t, 0, ParseInt("", 0))
}

func TestParseInt64(t *testing.T) {
	assert.Equal(t, int64(9000000000), ParseInt64("9000000000", 0))
	assert.Equal(t, int64(5), ParseInt64("junk", 5))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "1,000", FormatNumber(1000))
	assert.Equal(t, "1,234,567", FormatNumber(1234567))
	assert.Equal(t, "-45,000", FormatNumber(-45000))
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("12345"))
	assert.True(t, IsNumeric(" 123 "))
	assert.False(t, IsNumeric("12a"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("-5"))
}

func TestSanitizeUsername(t *testing.T) {
	assert.Equal(t, "user_1-2", SanitizeUsername("user_1-2"))
	assert.Equal(t, "user12", SanitizeUsername("user 1@2!"))
	assert.Equal(t, "", SanitizeUsername("سلام"))
}

func TestGBToBytesRoundTrip(t *testing.T) {
	assert.Equal(t, int64(1073741824), GBToBytes(1))
	assert.Equal(t, int64(536870912), GBToBytes(0.5))
	assert.InDelta(t, 2.0, BytesToGB(GBToBytes(2)), 1e-9)
}
