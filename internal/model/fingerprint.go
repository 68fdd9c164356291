package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/petracek/modelite/internal/field"
)

// schemaDomain versions the fingerprint encoding. Bump on any change to the
// canonical form so old and new digests can never collide silently.
const schemaDomain = "modelite/schema/v1"

// Fingerprint computes the content-addressed identity of a declaration.
//
// The encoding is order-sensitive (reordering fields changes the digest) and
// covers everything that affects storage or validation semantics: names,
// table, field types with their flags, normalized defaults, and foreign-key
// targets. Strings are NFC-normalized so visually identical declarations
// fingerprint identically.
//
// Format: SHA256(domain + 0x00 + canonical bytes), hex encoded. The null
// separator prevents domain/payload boundary ambiguity.
func Fingerprint(decl Declaration) string {
	var buf bytes.Buffer
	writeCanonicalString(&buf, decl.Name)
	writeCanonicalString(&buf, decl.TableName())
	for _, f := range decl.Fields {
		buf.WriteByte(0x1e) // record separator between fields
		writeCanonicalString(&buf, f.Name)
		writeCanonicalType(&buf, f.Type)
		buf.WriteByte(flagByte(f))
		if f.Default != nil {
			writeCanonicalString(&buf, defaultText(f.Default))
		}
		if f.Ref != nil {
			writeCanonicalString(&buf, f.Ref.Model)
			writeCanonicalString(&buf, f.Ref.Field)
		}
	}

	h := sha256.New()
	h.Write([]byte(schemaDomain))
	h.Write([]byte{0x00})
	h.Write(buf.Bytes())
	return hex.EncodeToString(h.Sum(nil))
}

// writeCanonicalString writes an NFC-normalized, length-prefixed string.
// The length prefix removes any boundary ambiguity between adjacent values.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	n := norm.NFC.String(s)
	fmt.Fprintf(buf, "%d:%s", len(n), n)
}

// writeCanonicalType encodes a field type and the flags that change its
// semantics. The switch is exhaustive over the sealed variant set.
func writeCanonicalType(buf *bytes.Buffer, t field.Type) {
	switch v := t.(type) {
	case field.DateTime:
		writeCanonicalString(buf, fmt.Sprintf("datetime/%t/%t", v.OnCreate, v.OnUpdate))
	case field.Integer, field.Text, field.Real, field.Blob, field.Boolean:
		writeCanonicalString(buf, t.Kind().String())
	default:
		writeCanonicalString(buf, fmt.Sprintf("unknown/%T", t))
	}
}

// flagByte packs the boolean properties of a field spec.
func flagByte(f field.Spec) byte {
	var b byte
	if f.PrimaryKey {
		b |= 1 << 0
	}
	if f.Nullable {
		b |= 1 << 1
	}
	if f.Unique {
		b |= 1 << 2
	}
	if f.Default != nil {
		b |= 1 << 3
	}
	if f.Ref != nil {
		b |= 1 << 4
	}
	return b
}

// defaultText renders a normalized default value deterministically.
// Defaults were normalized by their own Type at registration, so only the
// storage-facing Go types appear here.
func defaultText(v any) string {
	switch d := v.(type) {
	case int64:
		return fmt.Sprintf("i%d", d)
	case float64:
		return fmt.Sprintf("f%g", d)
	case string:
		return "s" + d
	case bool:
		return fmt.Sprintf("b%t", d)
	case time.Time:
		return "t" + d.UTC().Format(time.RFC3339Nano)
	case []byte:
		return "x" + hex.EncodeToString(d)
	default:
		return fmt.Sprintf("?%T:%v", v, v)
	}
}
