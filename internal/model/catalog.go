package model

// CatalogMetadata is the descriptive part of a catalog title.
type CatalogMetadata struct {
	Title    string `json:"title"`
	Type     string `json:"type"`
	Genre    string `json:"genre"`
	Year     string `json:"year"`
	Synopsis string `json:"synopsis"`
	Source   string `json:"source"`
}

// CatalogEntry is a pre-ingested title held by the vector index.
type CatalogEntry struct {
	ID       string          `json:"id"`
	Vector   []float32       `json:"-"`
	Text     string          `json:"text"`
	Metadata CatalogMetadata `json:"metadata"`
}

// SourceID is the opaque identifier shown next to a cited source.
func (e CatalogEntry) SourceID() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Metadata.Source
}

// Snippet returns the text used when the entry is quoted in a prompt.
func (e CatalogEntry) Snippet() string {
	if e.Text != "" {
		return e.Text
	}
	return e.Metadata.Synopsis
}

// ScoredEntry is a nearest neighbour hit. Score is the cosine similarity.
type ScoredEntry struct {
	Entry CatalogEntry `json:"entry"`
	Score float32      `json:"score"`
}
