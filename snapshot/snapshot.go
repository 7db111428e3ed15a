// Package snapshot writes a point-in-time heap inspector dump as CBOR,
// using github.com/fxamacker/cbor/v2 the way the example corpus encodes
// its own wire payloads.
package snapshot

import (
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/flan-lang/flanvm/vm"
)

// Snapshot is the serialized shape of a heap dump (spec §6, §8's
// snapshot-byte-total invariant).
type Snapshot struct {
	Stats vm.HeapStats `cbor:"stats"`
}

// Of captures h's current stats into a Snapshot.
func Of(h *vm.Heap) Snapshot {
	return Snapshot{Stats: h.Stats()}
}

// WriteFile CBOR-encodes s and writes it to path.
func WriteFile(path string, s Snapshot) error {
	data, err := cbor.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile decodes a Snapshot previously written by WriteFile.
func ReadFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
