// Package compositecode packs several related ERP attribute codes into one
// stable string and unpacks them again.
//
// A composite code is a fixed number of positional segments joined by ":".
// Every segment starts with the tag of its position followed by the value,
// e.g. "c123:s45:st:a:l9". Empty values keep their segment so positions never
// move. Decoding trusts positions; it never looks tags up.
package compositecode

import (
	"fmt"
	"strings"

	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

// Delimiter separates segments of a composite code.
const Delimiter = ":"

// Codec encodes and decodes one family of composite codes.
type Codec struct {
	Family string
	Tags   []string
}

// Encode joins values in tag order. It fails if the number of values does not
// match the tag order or a value contains the delimiter.
func (c Codec) Encode(values []string) (string, error) {
	if len(values) != len(c.Tags) {
		return "", fmt.Errorf("%s code needs %d values, got %d", c.Family, len(c.Tags), len(values))
	}

	segments := make([]string, len(c.Tags))
	for i, tag := range c.Tags {
		if strings.Contains(values[i], Delimiter) {
			return "", fmt.Errorf("%s code value %q for tag %q contains %q", c.Family, values[i], tag, Delimiter)
		}
		segments[i] = tag + values[i]
	}
	return strings.Join(segments, Delimiter), nil
}

// Decode splits code into its values in tag order.
func (c Codec) Decode(code string) ([]string, error) {
	segments := strings.Split(code, Delimiter)
	if len(segments) != len(c.Tags) {
		return nil, apperrors.NewMalformedCompositeCodeError(c.Family, code, len(c.Tags), len(segments))
	}

	values := make([]string, len(segments))
	for i, segment := range segments {
		if !strings.HasPrefix(segment, c.Tags[i]) {
			return nil, &apperrors.AppError{
				Type:    apperrors.ErrorTypeMalformedCompositeCode,
				Message: fmt.Sprintf("%s code %q: segment %d does not start with tag %q", c.Family, code, i, c.Tags[i]),
			}
		}
		values[i] = strings.TrimPrefix(segment, c.Tags[i])
	}
	return values, nil
}

// Equal reports whether a and b decode to the same values. Codes that fail to
// decode are never equal.
func (c Codec) Equal(a, b string) bool {
	va, err := c.Decode(a)
	if err != nil {
		return false
	}
	vb, err := c.Decode(b)
	if err != nil {
		return false
	}
	for i := range va {
		if va[i] != vb[i] {
			return false
		}
	}
	return true
}

// IsComposite reports whether code has the segment layout of this family.
// Plain ERP codes fail this check and are passed upstream unchanged.
func (c Codec) IsComposite(code string) bool {
	_, err := c.Decode(code)
	return err == nil
}
