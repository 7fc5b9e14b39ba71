package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xxxsen/bingio/internal/model"
	appErr "github.com/xxxsen/bingio/internal/pkg/errors"
)

var columnAliases = map[string]string{
	"id":          "id",
	"title":       "title",
	"name":        "title",
	"type":        "type",
	"kind":        "type",
	"genre":       "genre",
	"genres":      "genre",
	"year":        "year",
	"release":     "year",
	"synopsis":    "synopsis",
	"description": "synopsis",
	"plot":        "synopsis",
	"overview":    "synopsis",
	"source":      "source",
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug builds a stable id from a title and year.
func Slug(title, year string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(title+" "+year)), "-")
	return strings.Trim(s, "-")
}

// Parse reads a catalog CSV with a header row. Rows without a title are skipped.
func Parse(r io.Reader, source string) ([]model.CatalogEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: catalog file is empty", appErr.ErrInvalid)
		}
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	columns := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := columnAliases[name]; ok {
			if _, dup := columns[canonical]; !dup {
				columns[canonical] = i
			}
		}
	}
	if _, ok := columns["title"]; !ok {
		return nil, fmt.Errorf("%w: catalog needs a title column", appErr.ErrInvalid)
	}
	get := func(rec []string, col string) string {
		idx, ok := columns[col]
		if !ok || idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}
	entries := make([]model.CatalogEntry, 0)
	seen := make(map[string]struct{})
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read catalog line %d: %w", line, err)
		}
		md := model.CatalogMetadata{
			Title:    get(rec, "title"),
			Type:     get(rec, "type"),
			Genre:    get(rec, "genre"),
			Year:     get(rec, "year"),
			Synopsis: get(rec, "synopsis"),
			Source:   get(rec, "source"),
		}
		if md.Title == "" {
			continue
		}
		if md.Source == "" {
			md.Source = source
		}
		id := get(rec, "id")
		if id == "" {
			id = Slug(md.Title, md.Year)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		entries = append(entries, model.CatalogEntry{ID: id, Text: DocumentText(md), Metadata: md})
	}
	return entries, nil
}

// DocumentText is the text embedded and quoted for an entry.
func DocumentText(md model.CatalogMetadata) string {
	head := md.Title
	if md.Year != "" {
		head += " (" + md.Year + ")"
	}
	parts := []string{head}
	if md.Type != "" {
		parts = append(parts, md.Type)
	}
	if md.Genre != "" {
		parts = append(parts, "Genre: "+md.Genre)
	}
	out := strings.Join(parts, ". ") + "."
	if md.Synopsis != "" {
		out += " " + md.Synopsis
	}
	return out
}
