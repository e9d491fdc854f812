package metadata

import "encoding/hex"

// HexBytes is a binary payload that travels as hex text in YAML and JSON.
type HexBytes []byte

// MarshalText implements encoding.TextMarshaler.
func (h HexBytes) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(h)))
	hex.Encode(out, h)
	return out, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HexBytes) UnmarshalText(text []byte) error {
	buf := make([]byte, hex.DecodedLen(len(text)))
	n, err := hex.Decode(buf, text)
	if err != nil {
		return err
	}
	*h = buf[:n]
	return nil
}
