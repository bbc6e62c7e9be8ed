package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Expected header columns. Extra columns are ignored, missing ones read as "".
const (
	colID      = "id"
	colTitle   = "title"
	colArtist  = "artist"
	colLink    = "link"
	colFrom    = "from"
	colMessage = "message"
	colAudio   = "audio"
	colDate    = "date"
	colSlot    = "slot"
)

// ParseCSV reads a tracks.csv document. Rows without an id are skipped and
// every field is whitespace-trimmed. Row order is preserved.
func ParseCSV(r io.Reader) ([]Track, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx[colID]; !ok {
		return nil, fmt.Errorf("tracks csv has no %q column", colID)
	}

	field := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var tracks []Track
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		id := field(row, colID)
		if id == "" {
			continue
		}
		tracks = append(tracks, Track{
			ID:      id,
			Title:   field(row, colTitle),
			Artist:  field(row, colArtist),
			Link:    field(row, colLink),
			From:    field(row, colFrom),
			Message: field(row, colMessage),
			AudioID: field(row, colAudio),
			Date:    field(row, colDate),
			Slot:    field(row, colSlot),
		})
	}
	return tracks, nil
}

// LoadFile parses the tracks file into a fresh snapshot.
// A missing file yields an empty snapshot, not an error.
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewSnapshot(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	tracks, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", path, err)
	}
	return NewSnapshot(tracks), nil
}
