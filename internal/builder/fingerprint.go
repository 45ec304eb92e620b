package builder

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"github.com/rcliao/devplan/internal/model"
)

// schemaTag versions the fingerprint layout. Change it whenever the
// serialised source for an unchanged document would change.
const schemaTag = "devplan/v1"

// Fingerprint returns the cache key for a request: a hex SHA-256 over the
// schema tag, format, diagram, sorted options and source text, each field
// length-prefixed.
func Fingerprint(req *model.RenderRequest) string {
	h := sha256.New()
	writeField(h, schemaTag)
	writeField(h, string(req.Format))
	writeField(h, string(req.Diagram))

	keys := make([]string, 0, len(req.Options))
	for k := range req.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var count [8]byte
	binary.BigEndian.PutUint64(count[:], uint64(len(keys)))
	h.Write(count[:])
	for _, k := range keys {
		writeField(h, k)
		writeField(h, req.Options[k])
	}

	writeField(h, req.SourceText)
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
