package payload

import (
	"bytes"
	"encoding/base64"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/rezonia/sefaz-bridge/internal/model"
)

// Declaration is prepended to decoded documents that lack one
const Declaration = `<?xml version="1.0" encoding="UTF-8"?>`

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	// declaredEncoding matches the encoding pseudo-attribute of a prolog
	declaredEncoding = regexp.MustCompile(`^(<\?xml[^>]*?encoding\s*=\s*)(["'])[^"']*(["'])`)
)

// Decoder turns distribution payload text into an XML document
type Decoder struct {
	compressor *Compressor
}

// NewDecoder creates a decoder
func NewDecoder() *Decoder {
	return &Decoder{compressor: NewCompressor()}
}

// NewDecoderWithLevel creates a decoder whose Encode compresses at level
func NewDecoderWithLevel(level int) *Decoder {
	return &Decoder{compressor: NewCompressorWithLevel(level)}
}

// Decode decodes a payload with a default decoder
func Decode(text string) (model.DecodedPayload, error) {
	return NewDecoder().Decode(text)
}

// Decode recovers the XML carried by text. Text that already is markup is
// returned as is. Otherwise it is base64-decoded and then gunzipped; when
// the decoded bytes are not a valid gzip stream they are taken as the
// uncompressed document. Only a base64 failure is an error.
func (d *Decoder) Decode(text string) (model.DecodedPayload, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return model.DecodedPayload{}, model.NewPayloadDecodeError("empty payload", nil)
	}

	if strings.HasPrefix(strings.TrimPrefix(trimmed, string(utf8BOM)), "<") {
		return model.DecodedPayload{XML: normalize([]byte(trimmed)), Encoding: model.EncodingRaw}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(stripSpace(trimmed))
	if err != nil {
		return model.DecodedPayload{}, model.NewPayloadDecodeError("invalid base64 payload", err)
	}

	encoding := model.EncodingPlainBase64
	if IsCompressed(raw) {
		if inflated, err := d.compressor.Decompress(raw); err == nil {
			raw = inflated
			encoding = model.EncodingGzipBase64
		}
	}

	return model.DecodedPayload{XML: normalize(raw), Encoding: encoding}, nil
}

// Encode gzips and base64-encodes xml the way the distribution service does
func (d *Decoder) Encode(xml string) (string, error) {
	compressed, err := d.compressor.Compress([]byte(xml))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(compressed), nil
}

// normalize converts data to UTF-8 text and makes sure a document starting
// with an element carries an XML declaration
func normalize(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)

	transcoded := false
	if !utf8.Valid(data) {
		if out, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
			data = out
			transcoded = true
		}
	}

	text := strings.TrimLeftFunc(string(data), unicode.IsSpace)
	switch {
	case strings.HasPrefix(text, "<?xml"):
		if transcoded {
			text = declaredEncoding.ReplaceAllString(text, "${1}${2}UTF-8${3}")
		}
	case strings.HasPrefix(text, "<"):
		text = Declaration + text
	}
	return text
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
