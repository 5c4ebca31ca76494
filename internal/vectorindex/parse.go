package vectorindex

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// parseSearchReply unifies the reply shapes FT.SEARCH can produce across
// server versions and protocol levels:
//
//   - flat RESP2: [count, docID, [field, value, ...], docID, ...]
//   - keyed slice: [..., "results", [doc, doc, ...], ...]
//   - doubly nested doc: ["id", docID, "extra_attributes", [field, value, ...], "values", [...]]
//   - RESP3 maps: {"total_results": n, "results": [{"id": ..., "extra_attributes": {...}}, ...]}
//
// Entries that cannot be parsed are logged and skipped.
func parseSearchReply(raw interface{}, logger *zap.Logger) []*Hit {
	hits := []*Hit{}
	add := func(h *Hit) {
		if h != nil {
			hits = append(hits, h)
		}
	}

	switch reply := raw.(type) {
	case []interface{}:
		if docs, ok := keyedResults(reply); ok {
			for _, d := range docs {
				add(parseDoc(d, logger))
			}
			return hits
		}
		// Flat shape: the first element is the total count.
		if len(reply) < 2 {
			return hits
		}
		docID := ""
		for _, item := range reply[1:] {
			switch v := item.(type) {
			case string, []byte:
				docID = asString(v)
			case []interface{}:
				if h := parseDoc(v, logger); h != nil {
					add(h)
					docID = ""
					continue
				}
				if docID == "" {
					logger.Debug("search reply: field array without document ID")
					continue
				}
				add(buildHit(docID, fieldMap(v), logger))
				docID = ""
			case map[string]interface{}:
				add(parseDoc(v, logger))
			case map[interface{}]interface{}:
				add(parseDoc(v, logger))
			}
		}
	case map[string]interface{}:
		for _, d := range resultsOf(reply["results"]) {
			add(parseDoc(d, logger))
		}
	case map[interface{}]interface{}:
		for k, v := range reply {
			if asString(k) == "results" {
				for _, d := range resultsOf(v) {
					add(parseDoc(d, logger))
				}
			}
		}
	default:
		logger.Warn("search reply has unexpected shape", zap.String("type", fmt.Sprintf("%T", raw)))
	}
	return hits
}

// keyedResults detects the slice shape that carries documents under a
// "results" key and returns them.
func keyedResults(reply []interface{}) ([]interface{}, bool) {
	for i := 0; i+1 < len(reply); i++ {
		if asString(reply[i]) == "results" {
			if docs, ok := reply[i+1].([]interface{}); ok {
				return docs, true
			}
		}
	}
	return nil, false
}

func resultsOf(v interface{}) []interface{} {
	docs, _ := v.([]interface{})
	return docs
}

// parseDoc parses a self-contained document entry (slice or map carrying its
// own "id" and attributes). Returns nil when the entry is not one.
func parseDoc(entry interface{}, logger *zap.Logger) *Hit {
	var docID string
	fields := map[string]string{}

	collect := func(key string, value interface{}) {
		switch key {
		case "id":
			docID = asString(value)
		case "extra_attributes", "attributes", "fields":
			switch attrs := value.(type) {
			case []interface{}:
				for k, v := range fieldMap(attrs) {
					fields[k] = v
				}
			case map[string]interface{}:
				for k, v := range attrs {
					if k != "vector" {
						fields[k] = asString(v)
					}
				}
			case map[interface{}]interface{}:
				for k, v := range attrs {
					if name := asString(k); name != "vector" {
						fields[name] = asString(v)
					}
				}
			}
		}
	}

	switch e := entry.(type) {
	case []interface{}:
		for i := 0; i+1 < len(e); i += 2 {
			collect(asString(e[i]), e[i+1])
		}
	case map[string]interface{}:
		for k, v := range e {
			collect(k, v)
		}
	case map[interface{}]interface{}:
		for k, v := range e {
			collect(asString(k), v)
		}
	default:
		return nil
	}

	if docID == "" || len(fields) == 0 {
		return nil
	}
	return buildHit(docID, fields, logger)
}

// fieldMap converts a flat [field, value, ...] array to a map, skipping the
// binary vector payload.
func fieldMap(pairs []interface{}) map[string]string {
	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key := asString(pairs[i])
		if key == "vector" {
			continue
		}
		fields[key] = asString(pairs[i+1])
	}
	return fields
}

// buildHit assembles a Hit from a document ID and its returned fields.
// The raw score is a cosine distance; it is converted to a similarity and
// clamped to [0,1]. Entries without a score are skipped.
func buildHit(docID string, fields map[string]string, logger *zap.Logger) *Hit {
	rawScore, ok := fields[scoreAlias]
	if !ok {
		logger.Debug("search hit missing score", zap.String("doc", docID))
		return nil
	}
	distance, err := strconv.ParseFloat(rawScore, 64)
	if err != nil {
		logger.Debug("search hit has unparseable score", zap.String("doc", docID), zap.String("score", rawScore))
		return nil
	}
	score := 1 - distance
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	chunkID := fields["chunk_id"]
	if chunkID == "" {
		chunkID = strings.TrimPrefix(docID, KeyPrefix)
	}
	chunkIndex := 0
	if raw, ok := fields["chunk_index"]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			chunkIndex = n
		}
	}

	return &Hit{
		DocID:      docID,
		ChunkID:    chunkID,
		SourceID:   fields["source_id"],
		ChunkIndex: chunkIndex,
		Text:       fields["text"],
		Score:      score,
	}
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
