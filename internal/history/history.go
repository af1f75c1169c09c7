// Package history persists the download history as a single JSON file.
//
// Records are kept in chronological order (oldest first) and addressed by
// forward index only. Translating display positions is the caller's job.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	DateLayout   = "2006-01-02 15:04:05"
	UnknownTitle = "Unknown Title"
)

var ErrIndexOutOfRange = errors.New("history index out of range")

type Record struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Date      string `json:"date"`
	Format    string `json:"format"`
	Path      string `json:"path"`
	Thumbnail string `json:"thumbnail"`
}

type Store struct {
	mu      sync.Mutex
	path    string
	records []Record
}

// Open loads the history at path. A missing or unreadable file yields an
// empty store.
func Open(path string) *Store {
	s := &Store{path: path}
	s.records = s.Load()
	return s
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the file from disk. Errors are logged and produce an empty
// sequence.
func (s *Store) Load() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Str("op", "history/load").Err(err).Msgf("Error loading history from %s", s.path)
		}
		return []Record{}
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warn().Str("op", "history/load").Err(err).Msgf("Error parsing history in %s", s.path)
		return []Record{}
	}
	if records == nil {
		records = []Record{}
	}
	return records
}

// Save overwrites the file with records. The new content goes to a temp file
// that replaces the old one, so a failed save leaves the previous file as is.
func (s *Store) Save(records []Record) error {
	data, err := encode(records)
	if err != nil {
		log.Error().Str("op", "history/save").Err(err).Msg("Error encoding history")
		return err
	}
	if err := writeFile(s.path, data); err != nil {
		log.Error().Str("op", "history/save").Err(err).Msgf("Error saving history to %s", s.path)
		return err
	}
	return nil
}

// Records returns a copy of the stored sequence, oldest first.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) At(index int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return Record{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.records))
	}
	return s.records[index], nil
}

// Append adds r as the newest record and saves. The in-memory sequence keeps
// the record even when the save fails.
func (s *Store) Append(r Record) error {
	s.mu.Lock()
	s.records = append(s.records, r)
	snapshot := append([]Record(nil), s.records...)
	s.mu.Unlock()
	return s.Save(snapshot)
}

// SetThumbnail back-fills the thumbnail of the record at forward index and saves.
func (s *Store) SetThumbnail(index int, path string) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.records) {
		n := len(s.records)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, n)
	}
	s.records[index].Thumbnail = path
	snapshot := append([]Record(nil), s.records...)
	s.mu.Unlock()
	return s.Save(snapshot)
}

// encode renders records as two-space indented JSON with non-ASCII
// characters escaped, matching files written by earlier versions.
func encode(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return escapeNonASCII(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

func escapeNonASCII(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r == 0x7f {
			out = append(out, `\u007f`...)
			continue
		}
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			out = fmt.Appendf(out, `\u%04x\u%04x`, hi, lo)
			continue
		}
		out = fmt.Appendf(out, `\u%04x`, r)
	}
	return out
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".history-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
