package ingest

import (
	"github.com/vladfi1/SlippiDump/pkg/replay"
)

// pipeline describes how one class of upload is keyed and compressed.
// The three pipelines mirror the three upload paths: direct .slp
// files, members expanded from archives, and raw containers held for
// later expansion. The blob key shape follows from the kind via
// replay.BlobKey.
type pipeline struct {
	kind      replay.Kind
	keyMethod replay.HashMethod
	compress  bool
}

var (
	slpPipeline = pipeline{
		kind:      replay.KindSlp,
		keyMethod: replay.HashSHA256,
		compress:  true,
	}

	memberPipeline = pipeline{
		kind:      replay.KindArchiveMember,
		keyMethod: replay.HashMD5,
		compress:  true,
	}

	// rawPipeline's kind is set per upload from the container's
	// declared extension.
	rawPipeline = pipeline{
		keyMethod: replay.HashName,
		compress:  false,
	}
)

func (p *pipeline) blobKey(database, key string) string {
	return replay.BlobKey(database, key, p.kind)
}

func (p *pipeline) compression() replay.Compression {
	if p.compress {
		return replay.CompressionZlib
	}
	return replay.CompressionNone
}
