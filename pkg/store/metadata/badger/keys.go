package badger

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a flat key-value store, so prefixed keys organize the
// two document kinds into namespaces:
//
// Data Type        Prefix  Key Format             Value
// ============================================================
// Replay Records   "r:"    r:<database>:<key>     Record (JSON)
// Params           "p:"    p:<database>           Params (JSON)
//
// Rationale:
//
// 1. Records (r:)
//    - One entry per accepted item; <key> is the content key, so the
//      dedup lookup is a point read: O(1).
//    - All records of a database share the prefix "r:<database>:",
//      so Count / TotalStoredBytes / List are a single range scan.
//
// 2. Params (p:)
//    - One entry per logical database; point read by name.
//    - ListDatabases is a scan over the "p:" prefix, which bounds the
//      garbage collector's sweep to databases that actually exist.
//
// Content keys may contain ":" (name-keyed raw uploads use the
// declared filename verbatim). That is safe because database names
// are ":"-free, enforced by the registry's name validation: the
// database segment of a record key always ends at the first ":"
// after the prefix, so (database, key) maps to a unique storage key
// and no other database's scan prefix can match it.

const (
	recordPrefix = "r:"
	paramsPrefix = "p:"
)

// recordKey returns the storage key for a record.
func recordKey(database, key string) []byte {
	return []byte(recordPrefix + database + ":" + key)
}

// recordScanPrefix returns the prefix covering all of a database's
// records.
func recordScanPrefix(database string) []byte {
	return []byte(recordPrefix + database + ":")
}

// paramsKey returns the storage key for a database's params document.
func paramsKey(name string) []byte {
	return []byte(paramsPrefix + name)
}
