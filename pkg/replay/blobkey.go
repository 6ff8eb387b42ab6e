package replay

// BlobKey maps a record's content key to its blob store key. Direct
// replays use a flat "{database}.{key}" form; archive members and raw
// containers live under per-database path namespaces. GC relies on
// this mapping to match records against stored objects, so it must
// stay in sync with the ingestion pipelines.
func BlobKey(database, key string, kind Kind) string {
	switch kind {
	case KindArchiveMember:
		return database + "/slp/" + key
	case KindZip, Kind7z:
		return database + "/raw/" + key
	default:
		return database + "." + key
	}
}

// BlobKey returns the blob store key holding this record's payload.
func (r *Record) BlobKey(database string) string {
	return BlobKey(database, r.Key, r.Kind)
}
