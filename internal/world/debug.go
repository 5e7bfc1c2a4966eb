package world

import jsoniter "github.com/json-iterator/go"

var debugJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// DebugJSON renders the snapshot as compact JSON for diagnostic logging and
// the demo binary's debug endpoint. It is never used on the read/query
// path — Search operates on the in-memory Snapshot directly.
func (s Snapshot) DebugJSON() ([]byte, error) {
	return debugJSON.Marshal(s)
}
