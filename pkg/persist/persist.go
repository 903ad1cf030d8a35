// Package persist provides codec-based file persistence for durable state
// documents. Saves are atomic: state is written to a temporary file in the
// target directory and renamed into place, so readers never observe a
// half-written document.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// jsonExtension is the file extension for the JSON codec.
const jsonExtension = ".json"

// defaultIndent is the indentation for pretty-printed JSON.
const defaultIndent = "  "

// stateFileMode is the permission mode for persisted state files.
const stateFileMode = 0o644

// ErrNotExist reports that the state file is absent. Callers that treat a
// missing document as an empty one branch on this with errors.Is.
var ErrNotExist = errors.New("state file does not exist")

// Codec defines how a state document is serialized and deserialized.
type Codec interface {
	// Encode writes the state to the writer.
	Encode(w io.Writer, state any) error
	// Decode reads the state from the reader.
	Decode(r io.Reader, state any) error
	// Extension returns the file extension for this codec (e.g., ".json").
	Extension() string
}

// JSONCodec implements Codec using JSON encoding with optional indentation.
type JSONCodec struct {
	// Indent specifies the indentation string. Empty string means compact JSON.
	Indent string
}

// NewJSONCodec creates a JSON codec with pretty-printing (2-space indent).
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

// Encode implements Codec.Encode using JSON encoding.
func (c *JSONCodec) Encode(w io.Writer, state any) error {
	encoder := json.NewEncoder(w)
	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(state)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using JSON decoding.
func (c *JSONCodec) Decode(r io.Reader, state any) error {
	decoder := json.NewDecoder(r)

	err := decoder.Decode(state)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for JSON files.
func (c *JSONCodec) Extension() string {
	return jsonExtension
}

// Document handles I/O for one named state document of type T.
type Document[T any] struct {
	dir      string
	basename string
	codec    Codec
}

// NewDocument creates a document bound to dir/basename with the given codec.
func NewDocument[T any](dir, basename string, codec Codec) *Document[T] {
	return &Document[T]{
		dir:      dir,
		basename: basename,
		codec:    codec,
	}
}

// Path returns the full path of the state file.
func (d *Document[T]) Path() string {
	return filepath.Join(d.dir, d.basename+d.codec.Extension())
}

// Save atomically writes state to the document's file. The parent directory
// is created if missing.
func (d *Document[T]) Save(state *T) error {
	err := os.MkdirAll(d.dir, 0o755)
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, d.basename+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tmpPath := tmp.Name()

	encodeErr := d.codec.Encode(tmp, state)
	closeErr := tmp.Close()

	if encodeErr != nil || closeErr != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("write state: %w", errors.Join(encodeErr, closeErr))
	}

	err = os.Chmod(tmpPath, stateFileMode)
	if err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("chmod state file: %w", err)
	}

	err = os.Rename(tmpPath, d.Path())
	if err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// Load reads the document into state. A missing file is reported as
// ErrNotExist; a present but undecodable file is reported as a decode
// failure, never silently ignored.
func (d *Document[T]) Load(state *T) error {
	file, err := os.Open(d.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, d.Path())
		}

		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = d.codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state file %s: %w", d.Path(), err)
	}

	return nil
}

// ReadRaw returns the raw bytes of the state file, for callers that
// validate the document before decoding. A missing file is ErrNotExist.
func (d *Document[T]) ReadRaw() ([]byte, error) {
	data, err := os.ReadFile(d.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, d.Path())
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	return data, nil
}
