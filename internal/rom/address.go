package rom

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Address is an optional 6502 address that may also be read from the
// two-byte little-endian prefix of a binary file.
type Address struct {
	Value    int
	Set      bool
	FromFile bool
}

// At returns a literal address.
func At(v int) Address { return Address{Value: v, Set: true} }

// FromFile returns an address to be read from the binary being loaded.
func FromFile() Address { return Address{FromFile: true} }

// IsZero reports whether the address was left unset.
func (a Address) IsZero() bool { return !a.Set && !a.FromFile }

func (a Address) String() string {
	switch {
	case a.FromFile:
		return "file"
	case a.Set:
		return fmt.Sprintf("$%04X", a.Value)
	default:
		return ""
	}
}

// ParseAddress accepts "$FFFF" and "0xFFFF" (hex), plain decimal digits, and
// "file". An empty string yields the zero Address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, nil
	}
	if strings.EqualFold(s, "file") {
		return FromFile(), nil
	}
	base := 10
	digits := s
	switch {
	case strings.HasPrefix(s, "$"):
		base, digits = 16, s[1:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		base, digits = 16, s[2:]
	}
	if digits == "" {
		return Address{}, fmt.Errorf("invalid address: '%s'", s)
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: '%s'", s)
	}
	n, err := safecast.Conv[int](v)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: '%s': %w", s, err)
	}
	return At(n), nil
}

// UnmarshalText lets addresses appear as strings in TOML manifests.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText renders the address the way ParseAddress reads it.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
