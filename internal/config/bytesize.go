package config

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count written in human form ("150MiB", "64 MB") or as a plain integer.
type ByteSize uint64

// ParseByteSize parses a human readable byte size.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidByteSize, s)
	}
	return ByteSize(n), nil
}

// Bytes returns the size as a plain count.
func (b ByteSize) Bytes() uint64 {
	return uint64(b)
}

// String renders the size with IEC units.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// UnmarshalText implements encoding.TextUnmarshaler. It is used for env values.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: expected a scalar at line %d", ErrInvalidByteSize, node.Line)
	}
	if n, err := strconv.ParseUint(node.Value, 10, 64); err == nil {
		*b = ByteSize(n)
		return nil
	}
	return b.UnmarshalText([]byte(node.Value))
}
