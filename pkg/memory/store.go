package memory

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const (
	vectorFileName   = "vectors.bin"
	metadataFileName = "metadata.json"
)

// vectorFileMagic marks the flat vector file header
var vectorFileMagic = [4]byte{'C', 'R', 'V', 'X'}

// Entry is the metadata sidecar record for one indexed vector. The
// vector at position i in the flat file belongs to the entry at
// position i in the sidecar.
type Entry struct {
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	IndexedAt int64  `json:"indexed_at"`
}

// vectorStore holds the flat vector file and its JSON metadata sidecar.
// Appends write the vector first and the metadata second, so a crash
// between the two leaves an orphan vector, never an orphan entry.
type vectorStore struct {
	dir       string
	dimension int
	logger    zerolog.Logger

	vectors []float32 // row-major, dimension floats per entry
	entries []Entry
}

func newVectorStore(dir string, dimension int, logger zerolog.Logger) *vectorStore {
	return &vectorStore{dir: dir, dimension: dimension, logger: logger}
}

func (vs *vectorStore) vectorPath() string   { return filepath.Join(vs.dir, vectorFileName) }
func (vs *vectorStore) metadataPath() string { return filepath.Join(vs.dir, metadataFileName) }

// load reads both files from disk. A missing pair is an empty store.
// An unreadable or undecodable metadata sidecar wipes the store so the
// caller rebuilds the index from session history.
func (vs *vectorStore) load() error {
	vectors, dim, err := readVectorFile(vs.vectorPath())
	if err != nil {
		vs.logger.Warn().Err(err).Msg("Vector file unreadable, resetting index")
		return vs.reset()
	}
	if dim != 0 && dim != vs.dimension {
		vs.logger.Warn().
			Int("file", dim).
			Int("expected", vs.dimension).
			Msg("Vector dimension changed, resetting index")
		return vs.reset()
	}

	entries, err := readMetadataFile(vs.metadataPath())
	if err != nil {
		vs.logger.Warn().Err(err).Msg("Metadata sidecar unreadable, resetting index")
		return vs.reset()
	}

	rows := 0
	if vs.dimension > 0 {
		rows = len(vectors) / vs.dimension
	}
	switch {
	case rows < len(entries):
		// Metadata claims vectors that were never written
		vs.logger.Warn().
			Int("vectors", rows).
			Int("entries", len(entries)).
			Msg("Fewer vectors than metadata entries, resetting index")
		return vs.reset()
	case rows > len(entries):
		// Crash after the vector write: drop the orphan rows
		vs.logger.Debug().
			Int("orphans", rows-len(entries)).
			Msg("Dropping orphan vectors from interrupted append")
		vectors = vectors[:len(entries)*vs.dimension]
	}

	vs.vectors = vectors
	vs.entries = entries
	return nil
}

func (vs *vectorStore) reset() error {
	vs.vectors = nil
	vs.entries = nil
	if err := os.Remove(vs.vectorPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(vs.metadataPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// append adds one vector and its entry, persisting vector data before
// metadata.
func (vs *vectorStore) append(vector []float32, entry Entry) error {
	if len(vector) != vs.dimension {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(vector), vs.dimension)
	}
	if err := os.MkdirAll(vs.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	if err := vs.writeVectors(append(vs.vectors, vector...)); err != nil {
		return fmt.Errorf("persist vectors: %w", err)
	}
	vs.vectors = append(vs.vectors, vector...)

	newEntries := append(vs.entries, entry)
	if err := vs.writeMetadata(newEntries); err != nil {
		return fmt.Errorf("persist metadata: %w", err)
	}
	vs.entries = newEntries
	return nil
}

func (vs *vectorStore) writeVectors(vectors []float32) error {
	f, err := os.Create(vs.vectorPath())
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(vectorFileMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(vs.dimension)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, vectors); err != nil {
		return err
	}
	return f.Sync()
}

func (vs *vectorStore) writeMetadata(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(vs.metadataPath(), data, 0o644)
}

// indexedSources returns the set of session files already indexed
func (vs *vectorStore) indexedSources() map[string]bool {
	seen := make(map[string]bool, len(vs.entries))
	for _, e := range vs.entries {
		seen[e.Source] = true
	}
	return seen
}

// vectorAt returns row i of the flat vector data
func (vs *vectorStore) vectorAt(i int) []float32 {
	return vs.vectors[i*vs.dimension : (i+1)*vs.dimension]
}

func (vs *vectorStore) size() int {
	return len(vs.entries)
}

func readVectorFile(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("vector file truncated at %d bytes", len(data))
	}
	if [4]byte(data[:4]) != vectorFileMagic {
		return nil, 0, fmt.Errorf("bad vector file magic %q", data[:4])
	}
	dim := int(binary.LittleEndian.Uint32(data[4:8]))
	if dim <= 0 {
		return nil, 0, fmt.Errorf("bad vector dimension %d", dim)
	}

	payload := data[8:]
	// An interrupted write may leave a partial trailing float
	payload = payload[:len(payload)-len(payload)%4]
	vectors := make([]float32, len(payload)/4)
	for i := range vectors {
		bits := binary.LittleEndian.Uint32(payload[i*4:])
		vectors[i] = math.Float32frombits(bits)
	}
	// Drop a partial trailing row
	vectors = vectors[:len(vectors)-len(vectors)%dim]
	return vectors, dim, nil
}

func readMetadataFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode metadata sidecar: %w", err)
	}
	return entries, nil
}
