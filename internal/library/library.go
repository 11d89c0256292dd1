// Package library loads the reference texts a learner can recite.
//
// A library file is YAML:
//
//	collection: الأربعون النووية
//	hadiths:
//	  - id: nawawi-1
//	    number: 1
//	    narrator: عمر بن الخطاب
//	    text_plain: إنما الأعمال بالنيات
//	    text_diacritic: إِنَّمَا الْأَعْمَالُ بِالنِّيَّاتِ
//
// When no path is configured the embedded default collection is used.
package library

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rbright/tasmi/internal/transcript"
	"gopkg.in/yaml.v3"
)

//go:embed hadiths.yaml
var defaultLibrary []byte

// ErrNotFound indicates no hadith matched the requested ID.
var ErrNotFound = errors.New("hadith not found")

// Hadith is one reference text with its plain and fully vowelled forms.
type Hadith struct {
	ID            string `yaml:"id"`
	Collection    string `yaml:"collection"`
	Number        int    `yaml:"number"`
	TextPlain     string `yaml:"text_plain"`
	TextDiacritic string `yaml:"text_diacritic"`
	Narrator      string `yaml:"narrator"`
	Isnad         string `yaml:"isnad"`
	Translation   string `yaml:"translation"`
	Explanation   string `yaml:"explanation"`
}

// Text selects the display form. A missing form falls back to the other one.
func (h Hadith) Text(diacritics bool) string {
	if diacritics && strings.TrimSpace(h.TextDiacritic) != "" {
		return h.TextDiacritic
	}
	if strings.TrimSpace(h.TextPlain) != "" {
		return h.TextPlain
	}
	return h.TextDiacritic
}

// Source supplies reference texts by ID.
type Source interface {
	Find(id string) (Hadith, error)
}

// File is the on-disk library format.
type File struct {
	Collection string   `yaml:"collection"`
	Hadiths    []Hadith `yaml:"hadiths"`
}

// Library is an immutable, ordered set of hadiths.
type Library struct {
	hadiths []Hadith
	byID    map[string]int
}

// Load reads the library at path, or the embedded default when path is empty.
func Load(path string) (*Library, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("library: open %q: %w", path, err)
	}
	defer f.Close()

	lib, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("library: parse %q: %w", path, err)
	}
	return lib, nil
}

// Default returns the embedded library.
func Default() (*Library, error) {
	return LoadFromReader(bytes.NewReader(defaultLibrary))
}

// LoadFromReader decodes and validates library YAML. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Library, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode library yaml: %w", err)
	}
	return New(file)
}

// New validates file and indexes its hadiths.
func New(file File) (*Library, error) {
	if len(file.Hadiths) == 0 {
		return nil, errors.New("library contains no hadiths")
	}

	lib := &Library{
		hadiths: make([]Hadith, 0, len(file.Hadiths)),
		byID:    make(map[string]int, len(file.Hadiths)),
	}
	for i, h := range file.Hadiths {
		h.ID = strings.TrimSpace(h.ID)
		if h.ID == "" {
			return nil, fmt.Errorf("hadith #%d: id must not be empty", i+1)
		}
		if _, dup := lib.byID[h.ID]; dup {
			return nil, fmt.Errorf("hadith %q: duplicate id", h.ID)
		}
		if strings.TrimSpace(h.Text(true)) == "" {
			return nil, fmt.Errorf("hadith %q: text_plain or text_diacritic is required", h.ID)
		}
		if h.Collection == "" {
			h.Collection = file.Collection
		}
		lib.byID[h.ID] = len(lib.hadiths)
		lib.hadiths = append(lib.hadiths, h)
	}
	return lib, nil
}

// All returns every hadith in file order.
func (l *Library) All() []Hadith {
	out := make([]Hadith, len(l.hadiths))
	copy(out, l.hadiths)
	return out
}

// Find returns the hadith with id. An empty id selects the first entry and a
// bare number selects by hadith number.
func (l *Library) Find(id string) (Hadith, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return l.hadiths[0], nil
	}
	if i, ok := l.byID[id]; ok {
		return l.hadiths[i], nil
	}
	if n, err := strconv.Atoi(id); err == nil {
		for _, h := range l.hadiths {
			if h.Number == n {
				return h, nil
			}
		}
	}
	return Hadith{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Search filters by text or narrator containment, or an exact hadith number.
// Containment ignores diacritics and letter variants.
func (l *Library) Search(query string) []Hadith {
	query = strings.TrimSpace(query)
	if query == "" {
		return l.All()
	}
	folded := transcript.Normalize(query)

	var out []Hadith
	for _, h := range l.hadiths {
		switch {
		case strconv.Itoa(h.Number) == query,
			strings.Contains(h.TextPlain, query),
			strings.Contains(h.Narrator, query),
			folded != "" && strings.Contains(transcript.Normalize(h.Text(true)), folded),
			folded != "" && strings.Contains(transcript.Normalize(h.Narrator), folded):
			out = append(out, h)
		}
	}
	return out
}
