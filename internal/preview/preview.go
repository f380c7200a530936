// Package preview renders matched byte spans for display.
//
// Previews are built from the bytes a Hit already carries; the file is never
// re-read. A span that does not fit its buffer produces a placeholder
// preview instead of a slice panic, since stored offsets can outlive the
// buffer they were computed against.
package preview

import (
	"fmt"
	"strings"
)

const (
	// textPreviewBytes caps the readable portion of a text preview.
	textPreviewBytes = 50
	// hexPreviewBytes caps the dumped portion of a hex preview.
	hexPreviewBytes = 32
)

// Kind discriminates how a preview was produced.
type Kind int

const (
	// KindData is a preview of real matched bytes.
	KindData Kind = iota
	// KindConditionOnly is the placeholder for rules that matched on their
	// condition alone.
	KindConditionOnly
	// KindOutOfRange is the placeholder for spans that do not fit the buffer.
	KindOutOfRange
)

// Preview is a display-ready rendering of one matched span.
type Preview struct {
	Kind   Kind
	Text   string
	Hex    string
	Length uint64
}

// OffsetRangeError reports a span that does not fit the buffer it points
// into.
type OffsetRangeError struct {
	Offset uint64
	Length uint64
	Size   int
}

func (e *OffsetRangeError) Error() string {
	return fmt.Sprintf("span at offset %d with length %d out of range for %d-byte buffer", e.Offset, e.Length, e.Size)
}

// Slice extracts the span [offset, offset+length) from data. The offset must
// point inside the buffer and the span must end within it; anything else,
// including arithmetic overflow, returns *OffsetRangeError.
func Slice(data []byte, offset, length uint64) ([]byte, error) {
	size := uint64(len(data))
	end := offset + length
	if offset >= size || end > size || end < offset {
		return nil, &OffsetRangeError{Offset: offset, Length: length, Size: len(data)}
	}
	return data[offset:end], nil
}

// Build renders the span [offset, offset+length) of data. Out-of-range spans
// yield the fixed placeholder preview.
func Build(data []byte, offset, length uint64) Preview {
	span, err := Slice(data, offset, length)
	if err != nil {
		return Preview{
			Kind:   KindOutOfRange,
			Text:   fmt.Sprintf("<offset out of range> (%d bytes)", length),
			Hex:    fmt.Sprintf("Offset: 0x%08x, Length: %d", offset, length),
			Length: length,
		}
	}

	return Preview{
		Kind:   KindData,
		Text:   textPreview(span, length),
		Hex:    hexPreview(span, length),
		Length: length,
	}
}

// ConditionOnly returns the fixed preview for condition-only placeholder
// patterns. It never touches file bytes.
func ConditionOnly() Preview {
	return Preview{
		Kind: KindConditionOnly,
		Text: "Rule matched (no string patterns)",
		Hex:  "N/A - Condition-based match",
	}
}

// FormatOffset renders an offset the way match tables display it.
func FormatOffset(offset uint64) string {
	return fmt.Sprintf("0x%08x", offset)
}

// textPreview shows up to 50 bytes with non-printable ASCII replaced by dots,
// followed by the span's total size.
func textPreview(span []byte, length uint64) string {
	limit := len(span)
	if limit > textPreviewBytes {
		limit = textPreviewBytes
	}

	var b strings.Builder
	for _, c := range span[:limit] {
		if c >= 0x20 && c <= 0x7e {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}

	if length > textPreviewBytes {
		fmt.Fprintf(&b, "... (%d bytes total)", length)
	} else {
		fmt.Fprintf(&b, " (%d bytes)", length)
	}
	return b.String()
}

// hexPreview dumps up to 32 bytes as space-joined hex pairs.
func hexPreview(span []byte, length uint64) string {
	limit := len(span)
	if limit > hexPreviewBytes {
		limit = hexPreviewBytes
	}

	parts := make([]string, 0, limit)
	for _, c := range span[:limit] {
		parts = append(parts, fmt.Sprintf("%02x", c))
	}

	out := strings.Join(parts, " ")
	if length > hexPreviewBytes {
		out += fmt.Sprintf("... (%d bytes total)", length)
	}
	return out
}
