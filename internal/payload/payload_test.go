package payload_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/sefaz-bridge/internal/model"
	"github.com/rezonia/sefaz-bridge/internal/payload"
)

func TestCompressor_CompressDecompress(t *testing.T) {
	compressor := payload.NewCompressor()

	repeated := `<det nItem="1"><prod><xProd>PRODUTO</xProd></prod></det>`
	testData := []byte(strings.Repeat(repeated, 20))

	compressed, err := compressor.Compress(testData)
	require.NoError(t, err)
	assert.True(t, payload.IsCompressed(compressed))
	assert.Less(t, len(compressed), len(testData))

	decompressed, err := compressor.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, testData, decompressed)
}

func TestDecoderWithLevel(t *testing.T) {
	xml := `<nfeProc>` + strings.Repeat(`<det><prod><xProd>PRODUTO</xProd></prod></det>`, 50) + `</nfeProc>`

	best, err := payload.NewDecoderWithLevel(gzip.BestCompression).Encode(xml)
	require.NoError(t, err)
	fast, err := payload.NewDecoderWithLevel(gzip.NoCompression).Encode(xml)
	require.NoError(t, err)
	assert.Less(t, len(best), len(fast))

	decoded, err := payload.Decode(best)
	require.NoError(t, err)
	assert.Equal(t, model.EncodingGzipBase64, decoded.Encoding)
	assert.Equal(t, payload.Declaration+xml, decoded.XML)

	_, err = payload.NewDecoderWithLevel(42).Encode(xml)
	assert.Error(t, err)
}

func TestCompressor_InvalidData(t *testing.T) {
	_, err := payload.NewCompressor().Decompress([]byte("not gzip"))
	assert.Error(t, err)
	assert.False(t, payload.IsCompressed([]byte("not gzip")))
}

func TestDecode_RoundTrip(t *testing.T) {
	docs := []string{
		`<resNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.01"><chNFe>31240112345678000199550010000012341123456789</chNFe></resNFe>`,
		`<nfeProc><NFe><infNFe Id="NFe1"><dest><xNome>São João &amp; Cia</xNome></dest></infNFe></NFe></nfeProc>`,
		`<?xml version="1.0" encoding="UTF-8"?><a/>`,
	}

	decoder := payload.NewDecoder()
	for _, doc := range docs {
		encoded, err := decoder.Encode(doc)
		require.NoError(t, err)

		decoded, err := payload.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, model.EncodingGzipBase64, decoded.Encoding)

		expected := doc
		if !strings.HasPrefix(doc, "<?xml") {
			expected = payload.Declaration + doc
		}
		assert.Equal(t, expected, decoded.XML)
	}
}

func TestDecode_PlainBase64(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"markup", "<resNFe><vNF>10.00</vNF></resNFe>", payload.Declaration + "<resNFe><vNF>10.00</vNF></resNFe>"},
		{"declared", `<?xml version="1.0"?><r/>`, `<?xml version="1.0"?><r/>`},
		{"not markup", "hello world", "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := payload.Decode(base64.StdEncoding.EncodeToString([]byte(tt.text)))
			require.NoError(t, err)
			assert.Equal(t, model.EncodingPlainBase64, decoded.Encoding)
			assert.Equal(t, tt.expected, decoded.XML)
		})
	}
}

func TestDecode_WrappedBase64(t *testing.T) {
	encoded, err := payload.NewDecoder().Encode("<r>ok</r>")
	require.NoError(t, err)

	// line-wrapped and padded with whitespace, as copied out of a SOAP body
	var wrapped strings.Builder
	wrapped.WriteString("\n  ")
	for i, c := range encoded {
		if i > 0 && i%16 == 0 {
			wrapped.WriteString("\r\n")
		}
		wrapped.WriteRune(c)
	}
	wrapped.WriteString("\n")

	decoded, err := payload.Decode(wrapped.String())
	require.NoError(t, err)
	assert.Equal(t, payload.Declaration+"<r>ok</r>", decoded.XML)
}

func TestDecode_Raw(t *testing.T) {
	decoded, err := payload.Decode("  <resNFe><chNFe>1</chNFe></resNFe>\n")
	require.NoError(t, err)
	assert.Equal(t, model.EncodingRaw, decoded.Encoding)
	assert.Equal(t, payload.Declaration+"<resNFe><chNFe>1</chNFe></resNFe>", decoded.XML)
}

func TestDecode_InvalidBase64(t *testing.T) {
	tests := []string{"!!!not base64!!!", "abc", "   "}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := payload.Decode(text)
			require.Error(t, err)

			var decodeErr *model.PayloadDecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, model.KindPayloadDecode, model.KindOf(err))
		})
	}
}

func TestDecode_CorruptGzipFallsBack(t *testing.T) {
	encoded, err := payload.NewDecoder().Encode("<r>ok</r>")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	truncated := raw[:len(raw)-6]

	decoded, err := payload.Decode(base64.StdEncoding.EncodeToString(truncated))
	require.NoError(t, err)
	assert.Equal(t, model.EncodingPlainBase64, decoded.Encoding)
}

func TestDecode_Latin1(t *testing.T) {
	latin1 := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><xNome>Jos\xe9 Concei\xe7\xe3o</xNome>")

	compressed, err := payload.NewCompressor().Compress(latin1)
	require.NoError(t, err)

	decoded, err := payload.Decode(base64.StdEncoding.EncodeToString(compressed))
	require.NoError(t, err)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?><xNome>José Conceição</xNome>`, decoded.XML)
}

func TestDecode_StripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("<r/>")...)

	decoded, err := payload.Decode(base64.StdEncoding.EncodeToString(data))
	require.NoError(t, err)
	assert.Equal(t, payload.Declaration+"<r/>", decoded.XML)
}
