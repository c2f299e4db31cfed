package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/hrsync/internal/ir"
)

// marshalSnapshot serializes the snapshot for storage.
// HTML escaping is disabled so names like "Smith & Co" persist verbatim.
func marshalSnapshot(snap ir.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// unmarshalSnapshot parses a stored snapshot. Collections, assessments and
// timelines are never nil afterwards, and every registered collection exists.
func unmarshalSnapshot(data []byte) (ir.Snapshot, error) {
	var snap ir.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return ir.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Revision < 0 {
		return ir.Snapshot{}, fmt.Errorf("unmarshal snapshot: negative revision %d", snap.Revision)
	}

	base := ir.NewSnapshot()
	for name, entities := range snap.Collections {
		if _, err := ir.LookupCollection(name); err != nil {
			return ir.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		if entities != nil {
			base.Collections[name] = entities
		}
	}
	for jobID, a := range snap.Assessments {
		base.Assessments[jobID] = a
	}
	for id, events := range snap.CandidateTimelines {
		base.CandidateTimelines[id] = events
	}
	base.Revision = snap.Revision
	return base, nil
}
