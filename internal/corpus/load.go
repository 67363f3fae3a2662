package corpus

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Load reads a corpus from path. Directories are read with LoadDir; files are
// dispatched on extension (.json, .jsonl, .csv).
func Load(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat corpus: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ReadJSON(f)
	case ".jsonl", ".ndjson":
		return ReadJSONL(f)
	case ".csv":
		return ReadCSV(f)
	}
	return nil, fmt.Errorf("unsupported corpus format: %s", path)
}

// ReadJSON reads a JSON array of documents.
func ReadJSON(r io.Reader) ([]Document, error) {
	var docs []Document
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}
	return docs, nil
}

// ReadJSONL reads one JSON document per line. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Document, error) {
	var docs []Document
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var d Document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, d)
	}
	return docs, scanner.Err()
}

// ReadCSV reads a CSV with a header containing id, label and text columns.
func ReadCSV(r io.Reader) ([]Document, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIdx := make(map[string]int)
	for i, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"id", "label", "text"} {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("missing %q column", col)
		}
	}

	var docs []Document
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		docs = append(docs, Document{
			ID:    record[colIdx["id"]],
			Label: record[colIdx["label"]],
			Text:  record[colIdx["text"]],
		})
	}
	return docs, nil
}

// LoadDir reads a directory with one subdirectory per class label, each
// holding .txt documents. Document IDs are "<label>/<file name>".
// Documents are returned sorted by ID.
func LoadDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus dir: %w", err)
	}

	var docs []Document
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		label := e.Name()
		files, err := filepath.Glob(filepath.Join(dir, label, "*.txt"))
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			docs = append(docs, Document{
				ID:    label + "/" + filepath.Base(path),
				Text:  string(data),
				Label: label,
			})
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}
