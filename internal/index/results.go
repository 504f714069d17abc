package index

import "rfp/internal/domain"

// SearchResults holds parallel slices ordered by increasing distance.
type SearchResults struct {
	IDs       []string
	Documents []string
	Metadatas []domain.Metadata
	Distances []float64
}

// Result is one ranked hit.
type Result struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Metadata  domain.Metadata `json:"metadata"`
	Distance  float64         `json:"distance"`
	Relevance float64         `json:"relevance"`
}

// Len returns the number of hits.
func (r *SearchResults) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Documents)
}

// Results zips the parallel slices. Relevance is 1 - distance.
func (r *SearchResults) Results() []Result {
	out := make([]Result, r.Len())
	for i := range out {
		out[i] = Result{
			ID:        r.IDs[i],
			Text:      r.Documents[i],
			Metadata:  r.Metadatas[i],
			Distance:  r.Distances[i],
			Relevance: 1 - r.Distances[i],
		}
	}
	return out
}
