package rawcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/embedctl/internal/oembed"
)

func sampleData() oembed.Data {
	return oembed.Data{
		{Key: "version", Value: "1.0"},
		{Key: "type", Value: "video"},
		{Key: "width", Value: float64(500)},
		{Key: "title", Value: `Tom & "Jerry" <live>`},
		{Key: "html", Value: `<iframe src="https://example.com/e/1"></iframe>`},
	}
}

func TestEncodeJSONPreservesOrder(t *testing.T) {
	t.Parallel()

	out, err := New().Encode(sampleData(), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, `{"version":"1.0","type":"video","width":500,"title":"Tom & \"Jerry\" <live>","html":"<iframe src=\"https://example.com/e/1\"></iframe>"}`, out)

	def, err := Encode(sampleData(), "")
	require.NoError(t, err)
	assert.Equal(t, out, def)
}

func TestEncodeXML(t *testing.T) {
	t.Parallel()

	out, err := Encode(sampleData(), FormatXML)
	require.NoError(t, err)
	want := "<?xml version=\"1.0\"?>\n" +
		"<oembed><version>1.0</version><type>video</type><width>500</width>" +
		"<title>Tom &amp; &quot;Jerry&quot; &lt;live&gt;</title>" +
		"<html>&lt;iframe src=&quot;https://example.com/e/1&quot;&gt;&lt;/iframe&gt;</html></oembed>\n"
	assert.Equal(t, want, out)
}

func TestEncodeXMLNestedAndNumericKeys(t *testing.T) {
	t.Parallel()

	data := oembed.Data{
		{Key: "sizes", Value: []any{"s", "m"}},
		{Key: "0", Value: "zero"},
		{Key: "meta", Value: oembed.Data{{Key: "live", Value: true}, {Key: "gone", Value: false}}},
	}
	out, err := Encode(data, FormatXML)
	require.NoError(t, err)
	assert.Equal(t, "<?xml version=\"1.0\"?>\n<oembed><sizes><oembed>s</oembed><oembed>m</oembed></sizes>"+
		"<oembed>zero</oembed><meta><live>1</live><gone/></meta></oembed>\n", out)
}

func TestEncodeXMLRoundTrip(t *testing.T) {
	t.Parallel()

	out, err := Encode(sampleData(), FormatXML)
	require.NoError(t, err)
	back, err := oembed.ParseXML([]byte(out))
	require.NoError(t, err)
	for _, f := range sampleData() {
		assert.Equal(t, oembed.Scalar(f.Value), back.Str(f.Key), f.Key)
	}
}

func TestEncodeErrors(t *testing.T) {
	t.Parallel()

	_, err := Encode(oembed.Data{}, FormatXML)
	assert.ErrorIs(t, err, ErrEmptyData)

	_, err = Encode(sampleData(), Format("yaml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New(WithoutXML()).Encode(sampleData(), FormatXML)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	out, err := Encode(oembed.Data{}, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat(" XML ")
	require.NoError(t, err)
	assert.Equal(t, FormatXML, f)

	_, err = ParseFormat("toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
