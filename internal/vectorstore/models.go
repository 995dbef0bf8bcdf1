package vectorstore

import (
	"fmt"
	"regexp"
	"strconv"
)

// MetaSequence is the metadata key carrying the store-assigned ingestion
// sequence number. Retrieval uses it to break similarity-score ties by
// earliest-ingested-first, keeping rankings deterministic.
const MetaSequence = "ingested_seq"

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Document is a record to be embedded and stored.
type Document struct {
	// ID is the unique identifier. Callers must provide it; the store
	// never overwrites an existing ID with different content on its own
	// initiative; append-only discipline is the caller's contract.
	ID string

	// Content is the text that gets embedded.
	Content string

	// Metadata holds additional key-value pairs. Common keys: source,
	// label, verdict, rationale, reviewer, tag, recorded_at.
	Metadata map[string]any
}

// Match is a similarity search result.
type Match struct {
	// ID is the document identifier.
	ID string

	// Content is the stored document text.
	Content string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the stored document metadata.
	Metadata map[string]any

	// Sequence is the store-assigned ingestion sequence, parsed from
	// metadata. Zero when absent.
	Sequence uint64
}

// parseSequence extracts the ingestion sequence from metadata.
func parseSequence(meta map[string]any) uint64 {
	raw, ok := meta[MetaSequence]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	case int64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case float64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	default:
		return 0
	}
}

// metadataToString converts metadata values to the string map chromem
// requires. Non-string scalars are formatted; nested values are
// rejected upstream by keeping metadata flat.
func metadataToString(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// metadataFromString widens a string metadata map back to map[string]any.
func metadataFromString(meta map[string]string) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
