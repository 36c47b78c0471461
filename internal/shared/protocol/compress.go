package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// CompressHistory gzips a replay blob for clients that asked for it.
func CompressHistory(history []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(history); err != nil {
		return nil, fmt.Errorf("compress history: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress history: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressHistory reverses CompressHistory.
func DecompressHistory(blob []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decompress history: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress history: %w", err)
	}
	return out, nil
}
