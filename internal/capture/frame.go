package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

// clearSequence is prepended to every frame so a newly-attached viewer
// always renders from a clean state (clear screen, cursor home).
const clearSequence = "\x1b[2J\x1b[H"

// compressThreshold is the frame size above which frames are gzipped.
const compressThreshold = 512

// EncodeFrame prepares one screen snapshot for transmission: it prepends
// the clear-and-home sequence, gzips frames above the threshold and base64
// encodes the result. Compression failure falls back to the uncompressed
// form rather than dropping the frame.
func EncodeFrame(content []byte) (payload string, compressed bool) {
	raw := make([]byte, 0, len(clearSequence)+len(content))
	raw = append(raw, clearSequence...)
	raw = append(raw, content...)

	if len(raw) > compressThreshold {
		if gz, err := gzipBytes(raw); err == nil {
			return base64.StdEncoding.EncodeToString(gz), true
		}
	}
	return base64.StdEncoding.EncodeToString(raw), false
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("gzip write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}
	return buf.Bytes(), nil
}
