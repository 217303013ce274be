package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// ErrNotObject is returned when decoding Similarities from a JSON value that is not an object.
var ErrNotObject = errors.New("similarities: expected JSON object")

// Score pairs a prior word with its cosine similarity.
type Score struct {
	Word  string
	Value float64
}

// Similarities is an ordered mapping from prior word to similarity score.
// Keys are unique and iterate in first-insertion order. Setting an existing key
// replaces its value in place.
type Similarities struct {
	scores []Score
	index  map[string]int
}

// NewSimilarities returns an empty mapping with room for n keys.
func NewSimilarities(n int) *Similarities {
	return &Similarities{
		scores: make([]Score, 0, n),
		index:  make(map[string]int, n),
	}
}

// Set records value under word.
func (s *Similarities) Set(word string, value float64) {
	if s.index == nil {
		s.index = make(map[string]int)
	}

	if i, ok := s.index[word]; ok {
		s.scores[i].Value = value

		return
	}

	s.index[word] = len(s.scores)
	s.scores = append(s.scores, Score{Word: word, Value: value})
}

// Get returns the score recorded for word.
func (s *Similarities) Get(word string) (float64, bool) {
	if s == nil {
		return 0, false
	}

	i, ok := s.index[word]
	if !ok {
		return 0, false
	}

	return s.scores[i].Value, true
}

// Len returns the number of distinct words.
func (s *Similarities) Len() int {
	if s == nil {
		return 0
	}

	return len(s.scores)
}

// Words returns the keys in insertion order.
func (s *Similarities) Words() []string {
	if s == nil {
		return nil
	}

	words := make([]string, len(s.scores))
	for i, sc := range s.scores {
		words[i] = sc.Word
	}

	return words
}

// Scores returns a copy of the pairs in insertion order.
func (s *Similarities) Scores() []Score {
	if s == nil {
		return nil
	}

	out := make([]Score, len(s.scores))
	copy(out, s.scores)

	return out
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
// Non-finite scores encode as null.
func (s *Similarities) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	if s != nil {
		for i, sc := range s.scores {
			if i > 0 {
				buf.WriteByte(',')
			}

			key, err := json.Marshal(sc.Word)
			if err != nil {
				return nil, fmt.Errorf("marshal key %q: %w", sc.Word, err)
			}

			buf.Write(key)
			buf.WriteByte(':')

			if math.IsNaN(sc.Value) || math.IsInf(sc.Value, 0) {
				buf.WriteString("null")

				continue
			}

			buf.WriteString(strconv.FormatFloat(sc.Value, 'g', -1, 64))
		}
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping document order. null decodes as NaN.
func (s *Similarities) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read similarities: %w", err)
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrNotObject
	}

	*s = Similarities{index: make(map[string]int)}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read similarity key: %w", err)
		}

		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("similarity key %v is not a string", keyTok)
		}

		var value *float64
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("read similarity for %q: %w", key, err)
		}

		if value == nil {
			s.Set(key, math.NaN())

			continue
		}

		s.Set(key, *value)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("close similarities: %w", err)
	}

	return nil
}

// Schema describes Similarities in the OpenAPI document: an object mapping each prior word to
// its score, null when the score is undefined.
func (s *Similarities) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:                 huma.TypeObject,
		AdditionalProperties: &huma.Schema{Type: huma.TypeNumber, Nullable: true},
	}
}
