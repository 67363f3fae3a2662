// Package journal appends evaluation requests to a durable, daily log
// before they are processed.
package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// maxRecordSize bounds a single record so a corrupt length prefix cannot
// trigger a huge allocation during replay.
const maxRecordSize = 64 << 20

// Journal is an append-only file of msgpack records, each preceded by its
// 4-byte big-endian length.
type Journal struct {
	mu   sync.Mutex
	dir  string
	file *os.File
	path string
}

// Record is a single journaled request
type Record struct {
	ID       string    `msgpack:"id"`
	Received time.Time `msgpack:"received"`
	Body     []byte    `msgpack:"body"`
}

// Open creates or opens today's journal file in dirPath.
func Open(dirPath string) (*Journal, error) {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	file, path, err := openDaily(dirPath, time.Now())
	if err != nil {
		return nil, err
	}

	return &Journal{
		dir:  dirPath,
		file: file,
		path: path,
	}, nil
}

func openDaily(dirPath string, day time.Time) (*os.File, string, error) {
	path := filepath.Join(dirPath, fmt.Sprintf("requests-%s.journal", day.Format("20060102")))

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open journal file: %w", err)
	}
	return file, path, nil
}

// Path returns the file being appended to.
func (j *Journal) Path() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.path
}

// Append writes a request body with fsync
func (j *Journal) Append(id string, body []byte) error {
	payload, err := msgpack.Marshal(&Record{
		ID:       id,
		Received: time.Now().UTC(),
		Body:     body,
	})
	if err != nil {
		return fmt.Errorf("failed to encode journal record: %w", err)
	}
	if len(payload) > maxRecordSize {
		return fmt.Errorf("journal record of %d bytes exceeds %d", len(payload), maxRecordSize)
	}

	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(buf); err != nil {
		return fmt.Errorf("failed to write journal record: %w", err)
	}

	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}

	return nil
}

// Close flushes and closes the journal
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.file.Sync(); err != nil {
		return err
	}
	return j.file.Close()
}

// Replay reads every complete record from a journal file. A record cut
// short at the end of the file (a torn write) ends the replay; records
// that fail to decode are skipped.
func Replay(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var records []Record
	r := bufio.NewReader(file)
	var header [4]byte

	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return records, nil
			}
			return records, err
		}

		n := binary.BigEndian.Uint32(header[:])
		if n > maxRecordSize {
			return records, fmt.Errorf("journal record length %d exceeds %d", n, maxRecordSize)
		}

		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return records, nil
			}
			return records, err
		}

		var rec Record
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
}

// Rotate switches to the file for day when it differs from the current one
// and returns the path of the file that was closed. It returns "" when no
// switch was needed.
func (j *Journal) Rotate(day time.Time) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	next := filepath.Join(j.dir, fmt.Sprintf("requests-%s.journal", day.Format("20060102")))
	if next == j.path {
		return "", nil
	}

	file, path, err := openDaily(j.dir, day)
	if err != nil {
		return "", err
	}

	old := j.path
	if err := j.file.Sync(); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to sync current journal: %w", err)
	}
	if err := j.file.Close(); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to close current journal: %w", err)
	}

	j.file = file
	j.path = path
	return old, nil
}
