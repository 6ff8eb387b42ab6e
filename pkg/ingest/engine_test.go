package ingest

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zlib"

	"github.com/vladfi1/SlippiDump/pkg/registry"
	"github.com/vladfi1/SlippiDump/pkg/replay"
	blobMemory "github.com/vladfi1/SlippiDump/pkg/store/blob/memory"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
	metaMemory "github.com/vladfi1/SlippiDump/pkg/store/metadata/memory"
)

type testEnv struct {
	engine *Engine
	blobs  *blobMemory.Store
	meta   *metaMemory.Store
}

// newTestEnv builds an engine over in-memory stores with permissive
// test limits for the given database.
func newTestEnv(t *testing.T, params replay.Params) *testEnv {
	t.Helper()

	blobs := blobMemory.New()
	meta := metaMemory.New()
	if err := meta.PutParams(context.Background(), &params); err != nil {
		t.Fatalf("PutParams failed: %v", err)
	}

	reg := registry.New(meta)
	return &testEnv{
		engine: New(blobs, meta, reg, nil),
		blobs:  blobs,
		meta:   meta,
	}
}

func testParams(name string) replay.Params {
	return replay.Params{
		Name:           name,
		MaxSizePerFile: 1000,
		MinSizePerFile: 1,
		MaxFiles:       100,
		MaxTotalSize:   100_000,
	}
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// readInflated fetches a blob and reverses zlib compression.
func readInflated(t *testing.T, blobs *blobMemory.Store, key string) []byte {
	t.Helper()

	rc, err := blobs.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Failed to open blob %s: %v", key, err)
	}
	defer rc.Close()

	zr, err := zlib.NewReader(rc)
	if err != nil {
		t.Fatalf("Blob %s is not zlib compressed: %v", key, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("Failed to inflate blob %s: %v", key, err)
	}
	return data
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, contents := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(contents)); err != nil {
			t.Fatalf("Failed to write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

func expectReason(t *testing.T, err error, reason replay.Reason) {
	t.Helper()

	rej, ok := replay.AsRejection(err)
	if !ok {
		t.Fatalf("Expected rejection with reason %s, got: %v", reason, err)
	}
	if rej.Reason != reason {
		t.Fatalf("Expected reason %s, got %s (%v)", reason, rej.Reason, err)
	}
}

func TestIngestItem_Admission(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testParams("ranked"))
	payload := []byte("melee game data, definitely a real replay")

	rec, err := env.engine.IngestItem(ctx, "ranked", "game.slp", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("IngestItem failed: %v", err)
	}

	wantKey := sha256Hex(payload)
	if rec.Key != wantKey {
		t.Errorf("Expected sha256 content key %s, got %s", wantKey, rec.Key)
	}
	if rec.Kind != replay.KindSlp {
		t.Errorf("Expected kind slp, got %s", rec.Kind)
	}
	if rec.HashMethod != replay.HashSHA256 {
		t.Errorf("Expected hash method sha256, got %s", rec.HashMethod)
	}
	if rec.Compression != replay.CompressionZlib {
		t.Errorf("Expected zlib compression, got %s", rec.Compression)
	}
	if rec.OriginalSize != int64(len(payload)) {
		t.Errorf("Expected original size %d, got %d", len(payload), rec.OriginalSize)
	}

	// Blob lives at the flat key and inflates back to the original.
	inflated := readInflated(t, env.blobs, "ranked."+wantKey)
	if !bytes.Equal(inflated, payload) {
		t.Error("Inflated blob does not match original payload")
	}

	// Record reached the metadata store.
	stored, err := env.meta.FindByKey(ctx, "ranked", wantKey)
	if err != nil {
		t.Fatalf("Record not in metadata store: %v", err)
	}
	if stored.StoredSize != rec.StoredSize {
		t.Errorf("Stored size mismatch: %d vs %d", stored.StoredSize, rec.StoredSize)
	}
}

func TestIngestItem_Duplicate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testParams("ranked"))
	payload := []byte("identical replay bytes")

	if _, err := env.engine.IngestItem(ctx, "ranked", "first.slp", bytes.NewReader(payload)); err != nil {
		t.Fatalf("First IngestItem failed: %v", err)
	}

	// Same bytes under a different name still collide.
	_, err := env.engine.IngestItem(ctx, "ranked", "second.slp", bytes.NewReader(payload))
	expectReason(t, err, replay.Duplicate)
}

func TestIngestItem_InvalidDatabaseName(t *testing.T) {
	env := newTestEnv(t, testParams("ranked"))

	_, err := env.engine.IngestItem(context.Background(), "bad/name", "game.slp", strings.NewReader("replay payload"))
	if !errors.Is(err, registry.ErrInvalidName) {
		t.Fatalf("Expected invalid name error, got: %v", err)
	}
	if _, ok := replay.AsRejection(err); ok {
		t.Errorf("Expected a plain validation error, not a rejection: %v", err)
	}
}

func TestIngestItem_UnsupportedExtension(t *testing.T) {
	env := newTestEnv(t, testParams("ranked"))

	_, err := env.engine.IngestItem(context.Background(), "ranked", "notes.txt", strings.NewReader("text"))
	expectReason(t, err, replay.UnsupportedKind)
}

func TestIngestItem_SizeBoundariesInclusive(t *testing.T) {
	ctx := context.Background()
	params := testParams("ranked")
	params.MinSizePerFile = 10
	params.MaxSizePerFile = 20
	env := newTestEnv(t, params)

	// Below minimum.
	_, err := env.engine.IngestItem(ctx, "ranked", "tiny.slp", strings.NewReader("123456789"))
	expectReason(t, err, replay.TooSmall)

	// Exactly at minimum is accepted.
	if _, err := env.engine.IngestItem(ctx, "ranked", "min.slp", strings.NewReader("1234567890")); err != nil {
		t.Fatalf("Expected payload at min size to be admitted: %v", err)
	}

	// Exactly at maximum is accepted.
	if _, err := env.engine.IngestItem(ctx, "ranked", "max.slp", strings.NewReader("abcdefghijklmnopqrst")); err != nil {
		t.Fatalf("Expected payload at max size to be admitted: %v", err)
	}

	// Above maximum.
	_, err = env.engine.IngestItem(ctx, "ranked", "big.slp", strings.NewReader("abcdefghijklmnopqrstu"))
	expectReason(t, err, replay.TooLarge)
}

func TestIngestItem_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	params := testParams("ranked")
	params.MaxTotalSize = 60
	env := newTestEnv(t, params)

	if _, err := env.engine.IngestItem(ctx, "ranked", "first.slp", strings.NewReader("first replay payload data here.")); err != nil {
		t.Fatalf("First IngestItem failed: %v", err)
	}

	_, err := env.engine.IngestItem(ctx, "ranked", "second.slp", strings.NewReader("second replay payload data that will not fit"))
	expectReason(t, err, replay.QuotaExceeded)
}

func TestIngestArchive_ExpandsMembers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testParams("ranked"))

	memberOne := "first game inside the archive"
	memberTwo := "second game inside the archive"
	data := buildZip(t, map[string]string{
		"games/one.slp": memberOne,
		"games/two.slp": memberTwo,
		"readme.txt":    "skipped entirely",
	})

	report, err := env.engine.IngestArchive(ctx, "ranked", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("IngestArchive failed: %v", err)
	}

	if len(report.Admitted) != 2 {
		t.Fatalf("Expected 2 admitted members, got %d", len(report.Admitted))
	}
	if len(report.Rejections) != 0 {
		t.Fatalf("Expected no rejections, got %v", report.Rejections)
	}

	for _, rec := range report.Admitted {
		if rec.Kind != replay.KindArchiveMember {
			t.Errorf("Expected kind archive-member, got %s", rec.Kind)
		}
		if rec.HashMethod != replay.HashMD5 {
			t.Errorf("Expected md5 hash method, got %s", rec.HashMethod)
		}
	}

	// Member blobs live under the slp namespace with md5 keys.
	inflated := readInflated(t, env.blobs, "ranked/slp/"+md5Hex([]byte(memberOne)))
	if string(inflated) != memberOne {
		t.Error("Inflated member does not match archive contents")
	}
}

func TestIngestArchive_PartialRejections(t *testing.T) {
	ctx := context.Background()
	params := testParams("ranked")
	params.MinSizePerFile = 10
	env := newTestEnv(t, params)

	data := buildZip(t, map[string]string{
		"ok.slp":   "long enough to pass the minimum",
		"tiny.slp": "x",
	})

	report, err := env.engine.IngestArchive(ctx, "ranked", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("IngestArchive failed: %v", err)
	}

	if len(report.Admitted) != 1 {
		t.Errorf("Expected 1 admitted member, got %d", len(report.Admitted))
	}
	if len(report.Rejections) != 1 {
		t.Fatalf("Expected 1 rejection, got %d", len(report.Rejections))
	}
	if report.Rejections[0].Reason != replay.TooSmall {
		t.Errorf("Expected too_small rejection, got %s", report.Rejections[0].Reason)
	}
	if report.Rejections[0].Name != "tiny.slp" {
		t.Errorf("Expected rejection for tiny.slp, got %s", report.Rejections[0].Name)
	}
}

func TestIngestArchive_CountGateRejectsWhole(t *testing.T) {
	ctx := context.Background()
	params := testParams("ranked")
	params.MaxFiles = 2
	env := newTestEnv(t, params)

	data := buildZip(t, map[string]string{
		"one.slp":   "first member payload",
		"two.slp":   "second member payload",
		"three.slp": "third member payload",
	})

	_, err := env.engine.IngestArchive(ctx, "ranked", bytes.NewReader(data), int64(len(data)))
	expectReason(t, err, replay.QuotaExceeded)

	// No partial admissions.
	count, err := env.meta.Count(ctx, "ranked")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected zero admissions after count gate, got %d", count)
	}
}

func TestIngestArchive_CorruptMemberSkipped(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testParams("ranked"))

	// The bad member is stored uncompressed so its bytes can be
	// corrupted in place; the flip breaks its CRC, not the archive's
	// central directory.
	marker := []byte("stored member payload to corrupt")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, contents := range map[string]string{
		"one.slp": "first valid member payload",
		"two.slp": "second valid member payload",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(contents)); err != nil {
			t.Fatalf("Failed to write zip entry: %v", err)
		}
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "bad.slp", Method: zip.Store})
	if err != nil {
		t.Fatalf("Failed to create stored zip entry: %v", err)
	}
	if _, err := w.Write(marker); err != nil {
		t.Fatalf("Failed to write stored zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}

	data := buf.Bytes()
	i := bytes.Index(data, marker)
	if i < 0 {
		t.Fatal("Stored member bytes not found in archive")
	}
	data[i] ^= 0xff

	report, err := env.engine.IngestArchive(ctx, "ranked", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("IngestArchive failed: %v", err)
	}

	if len(report.Admitted) != 2 {
		t.Errorf("Expected 2 admitted members, got %d", len(report.Admitted))
	}
	if len(report.Rejections) != 1 {
		t.Fatalf("Expected 1 rejection, got %d", len(report.Rejections))
	}
	if report.Rejections[0].Reason != replay.CorruptArchive {
		t.Errorf("Expected corrupt_archive rejection, got %s", report.Rejections[0].Reason)
	}
	if report.Rejections[0].Name != "bad.slp" {
		t.Errorf("Expected rejection for bad.slp, got %s", report.Rejections[0].Name)
	}
}

func TestIngestArchive_Corrupt(t *testing.T) {
	env := newTestEnv(t, testParams("ranked"))
	junk := []byte("not a zip archive at all")

	_, err := env.engine.IngestArchive(context.Background(), "ranked", bytes.NewReader(junk), int64(len(junk)))
	expectReason(t, err, replay.CorruptArchive)
}

func TestIngestRaw_StoresContainerVerbatim(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testParams("ranked"))

	data := buildZip(t, map[string]string{"game.slp": "inner replay payload"})

	rec, err := env.engine.IngestRaw(ctx, "ranked", "tournament.zip", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("IngestRaw failed: %v", err)
	}

	if rec.Key != "tournament.zip" {
		t.Errorf("Expected filename key, got %s", rec.Key)
	}
	if rec.Kind != replay.KindZip {
		t.Errorf("Expected kind zip, got %s", rec.Kind)
	}
	if rec.HashMethod != replay.HashName {
		t.Errorf("Expected name hash method, got %s", rec.HashMethod)
	}
	if rec.Compression != replay.CompressionNone {
		t.Errorf("Expected no compression, got %s", rec.Compression)
	}

	// Stored byte-for-byte under the raw namespace.
	rc, err := env.blobs.Open(ctx, "ranked/raw/tournament.zip")
	if err != nil {
		t.Fatalf("Raw blob missing: %v", err)
	}
	defer rc.Close()
	stored, _ := io.ReadAll(rc)
	if !bytes.Equal(stored, data) {
		t.Error("Raw container was modified in storage")
	}
}

// countingBlobStore records which write path the engine takes.
type countingBlobStore struct {
	*blobMemory.Store
	puts    int
	streams int
}

func (s *countingBlobStore) Put(ctx context.Context, key string, data []byte) error {
	s.puts++
	return s.Store.Put(ctx, key, data)
}

func (s *countingBlobStore) OpenWriter(ctx context.Context, key string) (io.WriteCloser, error) {
	s.streams++
	return s.Store.OpenWriter(ctx, key)
}

func TestIngestRaw_StreamsThroughWriter(t *testing.T) {
	ctx := context.Background()
	blobs := &countingBlobStore{Store: blobMemory.New()}
	meta := metaMemory.New()
	params := testParams("ranked")
	if err := meta.PutParams(ctx, &params); err != nil {
		t.Fatalf("PutParams failed: %v", err)
	}
	engine := New(blobs, meta, registry.New(meta), nil)

	data := buildZip(t, map[string]string{"game.slp": "inner replay payload"})
	rec, err := engine.IngestRaw(ctx, "ranked", "weekly.zip", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("IngestRaw failed: %v", err)
	}

	// Raw containers go through the streaming writer, never Put.
	if blobs.streams != 1 || blobs.puts != 0 {
		t.Errorf("Expected 1 streamed write and 0 buffered, got %d and %d", blobs.streams, blobs.puts)
	}
	if rec.StoredSize != int64(len(data)) {
		t.Errorf("Expected stored size %d, got %d", len(data), rec.StoredSize)
	}

	// Compressed replays still use the buffered path.
	if _, err := engine.IngestItem(ctx, "ranked", "game.slp", strings.NewReader("direct replay payload")); err != nil {
		t.Fatalf("IngestItem failed: %v", err)
	}
	if blobs.puts != 1 {
		t.Errorf("Expected compressed replay to use Put, got %d buffered writes", blobs.puts)
	}
}

func TestIngestRaw_UnsupportedContainer(t *testing.T) {
	env := newTestEnv(t, testParams("ranked"))

	_, err := env.engine.IngestRaw(context.Background(), "ranked", "games.rar", strings.NewReader("rar bytes"))
	expectReason(t, err, replay.UnsupportedKind)
}

func TestProcessRaw_ExpandsStoredContainer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testParams("ranked"))

	member := "inner replay payload long enough"
	data := buildZip(t, map[string]string{"game.slp": member})

	if _, err := env.engine.IngestRaw(ctx, "ranked", "weekly.zip", bytes.NewReader(data)); err != nil {
		t.Fatalf("IngestRaw failed: %v", err)
	}

	report, err := env.engine.ProcessRaw(ctx, "ranked", "weekly.zip")
	if err != nil {
		t.Fatalf("ProcessRaw failed: %v", err)
	}

	if len(report.Admitted) != 1 {
		t.Fatalf("Expected 1 admitted member, got %d", len(report.Admitted))
	}
	memberRec := report.Admitted[0]
	if memberRec.RawKey != "weekly.zip" {
		t.Errorf("Expected raw_key back-reference, got %q", memberRec.RawKey)
	}
	if memberRec.Key != md5Hex([]byte(member)) {
		t.Errorf("Expected md5 content key, got %s", memberRec.Key)
	}

	// Container record flipped to processed.
	raw, err := env.meta.FindByKey(ctx, "ranked", "weekly.zip")
	if err != nil {
		t.Fatalf("FindByKey failed: %v", err)
	}
	if !raw.Processed {
		t.Error("Expected raw record marked processed")
	}
}

func TestProcessRaw_ReprocessDedups(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testParams("ranked"))

	data := buildZip(t, map[string]string{"game.slp": "inner replay payload long enough"})
	if _, err := env.engine.IngestRaw(ctx, "ranked", "weekly.zip", bytes.NewReader(data)); err != nil {
		t.Fatalf("IngestRaw failed: %v", err)
	}
	if _, err := env.engine.ProcessRaw(ctx, "ranked", "weekly.zip"); err != nil {
		t.Fatalf("First ProcessRaw failed: %v", err)
	}

	report, err := env.engine.ProcessRaw(ctx, "ranked", "weekly.zip")
	if err != nil {
		t.Fatalf("Second ProcessRaw failed: %v", err)
	}
	if len(report.Admitted) != 0 {
		t.Errorf("Expected no new admissions on reprocess, got %d", len(report.Admitted))
	}
	if len(report.Rejections) != 1 || report.Rejections[0].Reason != replay.Duplicate {
		t.Errorf("Expected duplicate rejection on reprocess, got %v", report.Rejections)
	}
}

func TestCurrentDatabaseSize(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testParams("ranked"))

	rec, err := env.engine.IngestItem(ctx, "ranked", "game.slp", strings.NewReader("some replay payload"))
	if err != nil {
		t.Fatalf("IngestItem failed: %v", err)
	}

	size, err := env.engine.CurrentDatabaseSize(ctx, "ranked")
	if err != nil {
		t.Fatalf("CurrentDatabaseSize failed: %v", err)
	}
	if size != rec.StoredSize {
		t.Errorf("Expected size %d, got %d", rec.StoredSize, size)
	}
}

func TestPurgeDatabase(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testParams("ranked"))

	if _, err := env.engine.IngestItem(ctx, "ranked", "game.slp", strings.NewReader("direct replay payload")); err != nil {
		t.Fatalf("IngestItem failed: %v", err)
	}
	data := buildZip(t, map[string]string{"inner.slp": "archived replay payload"})
	if _, err := env.engine.IngestRaw(ctx, "ranked", "games.zip", bytes.NewReader(data)); err != nil {
		t.Fatalf("IngestRaw failed: %v", err)
	}

	if err := env.engine.PurgeDatabase(ctx, "ranked"); err != nil {
		t.Fatalf("PurgeDatabase failed: %v", err)
	}

	count, err := env.meta.Count(ctx, "ranked")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no records after purge, got %d", count)
	}

	keys, err := env.blobs.ListKeys(ctx, "")
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no blobs after purge, got %v", keys)
	}

	_, err = env.meta.GetParams(ctx, "ranked")
	if !errors.Is(err, metadata.ErrParamsNotFound) {
		t.Errorf("Expected params removed by purge, got: %v", err)
	}
}
