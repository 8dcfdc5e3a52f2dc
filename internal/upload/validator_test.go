package upload

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testValidator() *Validator {
	return NewValidator(1<<20, []string{"image/jpeg", "image/png", "image/heic", "application/pdf"})
}

func TestValidate_AcceptsPNG(t *testing.T) {
	v := testValidator()

	mime, err := v.Validate("pano.png", "image/png", pngBytes(t, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
}

func TestValidate_SniffWinsOverDeclared(t *testing.T) {
	v := testValidator()

	// Declared as JPEG but the content is a PNG; sniffing resolves it.
	mime, err := v.Validate("pano.jpg", "image/jpeg", pngBytes(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
}

func TestValidate_RejectsEmpty(t *testing.T) {
	v := testValidator()

	_, err := v.Validate("empty.png", "image/png", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestValidate_RejectsTooLarge(t *testing.T) {
	v := NewValidator(16, []string{"image/png"})

	_, err := v.Validate("big.png", "image/png", pngBytes(t, 8, 8))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestValidate_RejectsDisallowedType(t *testing.T) {
	v := testValidator()

	_, err := v.Validate("notes.txt", "text/plain", []byte("just some text content"))
	assert.ErrorIs(t, err, ErrDisallowedType)
}

func TestValidate_ReasonsAreDistinct(t *testing.T) {
	v := NewValidator(16, []string{"image/png"})

	_, tooLarge := v.Validate("a.png", "", pngBytes(t, 8, 8))
	_, badType := v.Validate("a.txt", "", []byte("hello world"))
	_, empty := v.Validate("a.png", "", nil)

	assert.NotErrorIs(t, tooLarge, ErrDisallowedType)
	assert.NotErrorIs(t, badType, ErrFileTooLarge)
	assert.NotErrorIs(t, empty, ErrFileTooLarge)
	assert.NotErrorIs(t, empty, ErrDisallowedType)
}

func TestDataURL_Roundtrip(t *testing.T) {
	raw := pngBytes(t, 2, 2)

	url := BuildDataURL("image/png", raw)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	mime, data, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, raw, data)
}

func TestDecodeDataURL_Malformed(t *testing.T) {
	for _, in := range []string{
		"http://example.com/x.png",
		"data:image/png;base64",
		"data:image/png,rawdata",
		"data:image/png;base64,%%%",
	} {
		_, _, err := DecodeDataURL(in)
		assert.Error(t, err, "input %q", in)
	}
}
