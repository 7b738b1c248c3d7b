package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
)

// preserveEdits copies values at user-edited paths from the previous payload
// into the freshly extracted one, so re-processing a file never clobbers
// manual corrections. Paths are dotted with optional [n] array indexes,
// e.g. "seller.npwp" or "transactions[3].debit".
func preserveEdits(next, prev json.RawMessage, paths []string, logger arbor.ILogger) json.RawMessage {
	var nextDoc, prevDoc map[string]interface{}
	if err := json.Unmarshal(next, &nextDoc); err != nil {
		return next
	}
	if err := json.Unmarshal(prev, &prevDoc); err != nil {
		return next
	}

	kept := 0
	for _, path := range paths {
		value, ok := lookupPath(prevDoc, path)
		if !ok {
			continue
		}
		if setPath(nextDoc, path, value) {
			kept++
		}
	}
	if kept == 0 {
		return next
	}
	merged, err := json.Marshal(nextDoc)
	if err != nil {
		return next
	}
	logger.Debug().Int("paths", kept).Msg("Preserved user-edited payload fields")
	return merged
}

type pathSegment struct {
	key      string
	index    int
	hasIndex bool
}

func parsePath(path string) []pathSegment {
	parts := strings.Split(path, ".")
	segments := make([]pathSegment, 0, len(parts))
	for _, part := range parts {
		seg := pathSegment{key: part, index: -1}
		if open := strings.IndexByte(part, '['); open >= 0 && strings.HasSuffix(part, "]") {
			if idx, err := strconv.Atoi(part[open+1 : len(part)-1]); err == nil {
				seg.key = part[:open]
				seg.index = idx
				seg.hasIndex = true
			}
		}
		segments = append(segments, seg)
	}
	return segments
}

func lookupPath(doc map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = doc
	for _, seg := range parsePath(path) {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[seg.key]
		if !ok {
			return nil, false
		}
		if seg.hasIndex {
			arr, ok := current.([]interface{})
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return nil, false
			}
			current = arr[seg.index]
		}
	}
	return current, true
}

// setPath writes value at path, creating intermediate objects but never
// growing arrays: an index beyond the new payload's bounds is dropped.
func setPath(doc map[string]interface{}, path string, value interface{}) bool {
	segments := parsePath(path)
	var current interface{} = doc
	for i, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return false
		}
		last := i == len(segments)-1

		if last && !seg.hasIndex {
			m[seg.key] = value
			return true
		}

		child, exists := m[seg.key]
		if seg.hasIndex {
			arr, ok := child.([]interface{})
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return false
			}
			if last {
				arr[seg.index] = value
				return true
			}
			current = arr[seg.index]
			continue
		}
		if !exists {
			next := make(map[string]interface{})
			m[seg.key] = next
			current = next
			continue
		}
		current = child
	}
	return false
}
