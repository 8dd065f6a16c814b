package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/lumina/core"
)

// Key prefixes for different data types
const (
	vectorRecordPrefix = "vecrec:"
	vectorSourcePrefix = "vecsrc:"
	vectorTermPrefix   = "vecdf:"
	vectorRecordSeq    = "vecrecseq"
	indexMetaKey       = "idxmeta"
	sessionPrefix      = "sess:"
	turnPrefix         = "turn:"
	turnSeq            = "turnseq"
	leadPrefix         = "lead:"
	leadDatePrefix     = "leadd:"
	leadSessionPrefix  = "leads:"
	leadIDSeq          = "leadseq"
)

// appendString writes s with a big-endian uint32 length prefix. Length
// prefixing keeps "ab"+"c" and "a"+"bc" from producing the same key, so one
// tenant's prefix can never be a prefix of another's.
func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// makeTenantRecordPrefix returns the prefix shared by all records of a tenant.
// Format: prefix:len(tenant):tenant
func makeTenantRecordPrefix(tenant string) []byte {
	return appendString([]byte(vectorRecordPrefix), tenant)
}

// makeVectorRecordKey generates the primary key of a vector record.
// Format: prefix:len(tenant):tenant:id
func makeVectorRecordKey(tenant string, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(makeTenantRecordPrefix(tenant), uint64(id))
}

// tenantFromRecordKey recovers the tenant from a primary record key.
func tenantFromRecordKey(key []byte) (string, bool) {
	rest := key[len(vectorRecordPrefix):]
	if len(rest) < 4 {
		return "", false
	}
	n := int(binary.BigEndian.Uint32(rest))
	if len(rest) < 4+n+8 {
		return "", false
	}
	return string(rest[4 : 4+n]), true
}

// makeSourcePrefix returns the prefix of the source index for (tenant, url).
// Format: prefix:len(tenant):tenant:len(url):url
func makeSourcePrefix(tenant, sourceURL string) []byte {
	buf := appendString([]byte(vectorSourcePrefix), tenant)
	return appendString(buf, sourceURL)
}

// makeSourceKey generates a source index entry pointing at a record.
// Format: prefix:len(tenant):tenant:len(url):url:id
func makeSourceKey(tenant, sourceURL string, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(makeSourcePrefix(tenant, sourceURL), uint64(id))
}

// makeTenantTermPrefix returns the prefix of a tenant's document frequency counters.
// Format: prefix:len(tenant):tenant
func makeTenantTermPrefix(tenant string) []byte {
	return appendString([]byte(vectorTermPrefix), tenant)
}

// makeTermKey generates the key of the document frequency counter of a sparse term.
// Format: prefix:len(tenant):tenant:term
func makeTermKey(tenant string, term uint32) []byte {
	return binary.BigEndian.AppendUint32(makeTenantTermPrefix(tenant), term)
}

// idFromKeySuffix reads the record ID that terminates a record or source key.
func idFromKeySuffix(key []byte) (core.ID, bool) {
	if len(key) < 8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:])), true
}

// makeSessionKey generates a key for a session by ID.
func makeSessionKey(id string) []byte {
	return append([]byte(sessionPrefix), id...)
}

// makeTurnPrefix returns the prefix shared by all turns of a session.
func makeTurnPrefix(sessionID string) []byte {
	return appendString([]byte(turnPrefix), sessionID)
}

// makeTurnKey generates a composite key for a turn.
// Format: prefix:len(session):session:seq
// Written in BigEndian order so lexicographic sort follows Seq.
func makeTurnKey(sessionID string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(makeTurnPrefix(sessionID), seq)
}

// makeLeadKey generates a key for a lead by ID.
func makeLeadKey(id core.ID) []byte {
	return binary.BigEndian.AppendUint64([]byte(leadPrefix), uint64(id))
}

// makeLeadDateKey generates a composite key for the lead creation-date index.
// Format: prefix:timestamp:id
func makeLeadDateKey(timestamp time.Time, id core.ID) []byte {
	buf := binary.BigEndian.AppendUint64([]byte(leadDatePrefix), uint64(timestamp.UnixMicro()))
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// makeLeadSessionKey generates the lookup key from source session to lead.
func makeLeadSessionKey(sessionID string) []byte {
	return append([]byte(leadSessionPrefix), sessionID...)
}
