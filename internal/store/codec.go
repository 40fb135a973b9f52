package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

// encodeSnapshot renders a snapshot with sorted keys and four space
// indentation so successive cache files diff cleanly.
func encodeSnapshot(snap solar.CacheSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeSnapshot maps empty or undecodable input to solar.ErrCacheCorrupt.
func decodeSnapshot(data []byte) (solar.CacheSnapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return solar.CacheSnapshot{}, fmt.Errorf("%w: empty", solar.ErrCacheCorrupt)
	}
	var snap solar.CacheSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return solar.CacheSnapshot{}, fmt.Errorf("%w: %v", solar.ErrCacheCorrupt, err)
	}
	if snap.Date == "" && snap.Empty() {
		return solar.CacheSnapshot{}, fmt.Errorf("%w: no data", solar.ErrCacheCorrupt)
	}
	return snap, nil
}
