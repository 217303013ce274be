// Package models holds the value types shared by the similarity engine and its drivers.
package models

// Entry is one submitted word together with its embedding and the similarities
// computed against every entry that existed before it. Entries are never mutated
// after creation.
type Entry struct {
	Text         string
	Embedding    []float32
	Magnitude    float64 // Euclidean norm of Embedding
	Similarities *Similarities
}

// EntryView is the serialized form of an Entry that crosses the engine boundary.
// The embedding vector stays internal.
type EntryView struct {
	Word         string        `json:"word"`
	Similarities *Similarities `json:"similarities"`
}

// View returns the boundary representation of e.
func (e Entry) View() EntryView {
	sims := e.Similarities
	if sims == nil {
		sims = NewSimilarities(0)
	}

	return EntryView{Word: e.Text, Similarities: sims}
}

// Views converts entries to their boundary representation, preserving order.
// The result is never nil so it encodes as [] rather than null.
func Views(entries []Entry) []EntryView {
	views := make([]EntryView, len(entries))
	for i, e := range entries {
		views[i] = e.View()
	}

	return views
}
