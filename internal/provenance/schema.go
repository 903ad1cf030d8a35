package provenance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// storeSchema validates the persisted provenance document before decoding.
// Hand-edited or truncated files fail here with a precise reason instead of
// a bare unmarshal error.
const storeSchema = `{
  "type": "object",
  "required": ["records"],
  "properties": {
    "records": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["commitHash", "issueNumber", "timestamp", "source"],
        "properties": {
          "commitHash": {"type": "string", "minLength": 1},
          "issueNumber": {"type": "integer", "minimum": 1},
          "phaseNumber": {"type": "integer", "minimum": 1},
          "timestamp": {"type": "integer"},
          "message": {"type": "string"},
          "source": {"enum": ["agent", "external", "unknown"]},
          "parentHashes": {"type": "array", "items": {"type": "string"}},
          "isMergeCommit": {"type": "boolean"}
        }
      }
    }
  }
}`

// validateDocument checks raw JSON against the store schema.
func validateDocument(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(storeSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptStore, err)
	}

	if result.Valid() {
		return nil
	}

	reasons := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		reasons = append(reasons, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrCorruptStore, strings.Join(reasons, "; "))
}

// IsCorrupt reports whether err indicates a corrupt store document.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptStore)
}
