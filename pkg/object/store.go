package object

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic prefixes every zstd frame; loose objects written without
// compression never start with it because they start with a type name.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
//
// Objects are hashed over their uncompressed "type len\0content" envelope and
// optionally stored zstd-compressed. Reads accept both forms, so toggling
// compression never invalidates existing objects.
type Store struct {
	root     string
	compress bool

	codecOnce sync.Once
	codecErr  error
	enc       *zstd.Encoder
	dec       *zstd.Decoder
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCompression enables or disables zstd compression of new objects.
// Compression is enabled by default.
func WithCompression(enabled bool) StoreOption {
	return func(s *Store) { s.compress = enabled }
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{root: root, compress: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) codec() error {
	s.codecOnce.Do(func() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			s.codecErr = fmt.Errorf("zstd encoder: %w", err)
			return
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			enc.Close()
			s.codecErr = fmt.Errorf("zstd decoder: %w", err)
			return
		}
		s.enc, s.dec = enc, dec
	})
	return s.codecErr
}

// Close releases the compression codecs.
func (s *Store) Close() error {
	if s.enc != nil {
		_ = s.enc.Close()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	return nil
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if len(h) < 3 {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. Writes are atomic:
// data is written to a temp file and then renamed into place.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	envelope := fmt.Sprintf("%s %d\x00", objType, len(data))
	raw := append([]byte(envelope), data...)

	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	if s.compress {
		if err := s.codec(); err != nil {
			return "", fmt.Errorf("object write: %w", err)
		}
		raw = s.enc.EncodeAll(raw, nil)
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	dest := s.objectPath(h)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
// A missing object returns an error wrapping ErrNotFound.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !ValidHash(h) {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrNotFound)
	}
	raw, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}

	if bytes.HasPrefix(raw, zstdMagic) {
		if err := s.codec(); err != nil {
			return "", nil, fmt.Errorf("object read %s: %w", h, err)
		}
		raw, err = s.dec.DecodeAll(raw, nil)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
		}
	}

	// Parse envelope: "type len\0content"
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object read %s: invalid format (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("object read %s: invalid header %q", h, header)
	}
	objType := ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: invalid length %q: %w", h, parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", h, length, len(content))
	}

	return objType, content, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob stores raw file content.
func (s *Store) WriteBlob(data []byte) (Hash, error) {
	return s.Write(TypeBlob, data)
}

// ReadBlob reads raw file content.
func (s *Store) ReadBlob(h Hash) ([]byte, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return data, nil
}
