package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTesseractTokens(t *testing.T) {
	cases := map[string]string{
		"jp": "jpn",
		"en": "eng",
		"cn": "chi_sim",
		"th": "tha",
		"vi": "vie",
		"JP": "jpn",
		"ja": "jpn",
		"":   "eng",
		"xx": "eng",
	}
	for code, want := range cases {
		assert.Equal(t, want, Resolve(code).Tesseract, "code %q", code)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("klingon")
	assert.False(t, ok)

	l, ok := Lookup(" th ")
	require.True(t, ok)
	assert.Equal(t, "th", l.Code)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "Japanese", Resolve("jp").Name())
	assert.Equal(t, "VIETNAMESE", Resolve("vi").Label())
	assert.Equal(t, "Vietnamese", TargetName("vi"))
	assert.Equal(t, "FRENCH", TargetLabel("fr"))
	assert.Equal(t, "not a tag!", TargetName("not a tag!"))
}

func TestSupportedIsCopy(t *testing.T) {
	s := Supported()
	require.Len(t, s, 5)
	s[0].Code = "zz"
	assert.Equal(t, "jp", Supported()[0].Code)
}
