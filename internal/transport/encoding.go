package transport

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Charset names accepted by EncodeText and DecodeText. Plenty of test
// targets predate UTF-8, so the harness can translate for them rather than
// forcing every test to carry its own transcoding.
const (
	CharsetUTF8    = "utf-8"
	CharsetLatin1  = "latin-1"
	CharsetUTF16LE = "utf-16le"
)

func charsetEncoding(charset string) (encoding.Encoding, error) {
	switch charset {
	case CharsetLatin1:
		return charmap.ISO8859_1, nil
	case CharsetUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
}

// EncodeText converts a UTF-8 string to the named charset.
func EncodeText(s string, charset string) ([]byte, error) {
	if charset == "" || charset == CharsetUTF8 {
		return []byte(s), nil
	}

	enc, err := charsetEncoding(charset)
	if err != nil {
		return nil, err
	}

	encoded, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encoding text as %s: %w", charset, err)
	}
	return encoded, nil
}

// DecodeText converts bytes in the named charset to a UTF-8 string.
func DecodeText(b []byte, charset string) (string, error) {
	if charset == "" || charset == CharsetUTF8 {
		return string(b), nil
	}

	enc, err := charsetEncoding(charset)
	if err != nil {
		return "", err
	}

	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding %s text: %w", charset, err)
	}
	return string(decoded), nil
}

// SendText encodes msg in the named charset and sends it to the client.
// An empty charset sends the string's UTF-8 bytes as-is.
func (s *Server) SendText(msg string, charset string) error {
	data, err := EncodeText(msg, charset)
	if err != nil {
		return err
	}
	return s.Send(data)
}
