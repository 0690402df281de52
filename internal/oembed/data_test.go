package oembed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONKeepsDocumentOrder(t *testing.T) {
	t.Parallel()

	body := []byte(`{"version":"1.0","type":"video","width":500,"height":281.5,"html":"<iframe src=\"x\"></iframe>","thumbnail":{"url":"t.jpg","w":1},"tags":["a","b"],"live":false,"extra":null}`)
	data, err := ParseJSON(body)
	require.NoError(t, err)

	keys := make([]string, 0, len(data))
	for _, f := range data {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"version", "type", "width", "height", "html", "thumbnail", "tags", "live", "extra"}, keys)
	assert.Equal(t, "500", data.Str("width"))
	assert.Equal(t, "281.5", data.Str("height"))
	assert.Equal(t, "", data.Str("live"))

	thumb, ok := data.Get("thumbnail")
	require.True(t, ok)
	assert.Equal(t, Data{{Key: "url", Value: "t.jpg"}, {Key: "w", Value: float64(1)}}, thumb)
}

func TestParseJSONRejectsNonObjects(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`[1,2]`, `"str"`, `{"broken"`, ``} {
		_, err := ParseJSON([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidPayload, body)
	}
}

func TestMarshalJSONRoundTrip(t *testing.T) {
	t.Parallel()

	data := Data{
		{Key: "type", Value: "rich"},
		{Key: "html", Value: "<b>&</b>"},
		{Key: "width", Value: float64(600)},
		{Key: "nested", Value: Data{{Key: "z", Value: true}, {Key: "a", Value: nil}}},
		{Key: "list", Value: []any{"x", Data{{Key: "k", Value: "v"}}}},
	}
	out, err := data.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"rich","html":"<b>&</b>","width":600,"nested":{"z":true,"a":null},"list":["x",{"k":"v"}]}`, string(out))

	back, err := ParseJSON(out)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestMarshalJSONEmpty(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(Data(nil))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out))
}

func TestParseXML(t *testing.T) {
	t.Parallel()

	body := []byte(`<?xml version="1.0" encoding="utf-8"?>
<oembed>
  <type>photo</type>
  <url>https://example.com/a.jpg</url>
  <title>Fish &amp; Chips</title>
  <author><name>Jo</name></author>
</oembed>`)
	data, err := ParseXML(body)
	require.NoError(t, err)
	assert.Equal(t, "photo", data.Str("type"))
	assert.Equal(t, "Fish & Chips", data.Str("title"))
	author, ok := data.Get("author")
	require.True(t, ok)
	assert.Equal(t, Data{{Key: "name", Value: "Jo"}}, author)
}

func TestParseXMLErrors(t *testing.T) {
	t.Parallel()

	for _, body := range []string{``, `<oembed>text only</oembed>`, `<oembed><type>`} {
		_, err := ParseXML([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidPayload, body)
	}
}

func TestDataSet(t *testing.T) {
	t.Parallel()

	data := Data{{Key: "a", Value: "1"}}
	data = data.Set("a", "2")
	data = data.Set("b", "3")
	assert.Equal(t, Data{{Key: "a", Value: "2"}, {Key: "b", Value: "3"}}, data)
}
