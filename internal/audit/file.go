package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pcbuild-service/internal/models"
)

const defaultMaxBytes = int64(8 << 20)

// FileSink appends one JSON object per line. When the file grows past
// maxBytes it is renamed with a millisecond suffix and a fresh file started.
type FileSink struct {
	path     string
	maxBytes int64

	mu sync.Mutex
}

func NewFileSink(path string, maxBytes int64) (*FileSink, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("audit file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	_ = f.Close()

	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &FileSink{path: path, maxBytes: maxBytes}, nil
}

func (s *FileSink) Record(_ context.Context, rec models.UnresolvedComponent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&rec); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode audit record: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	return s.rotateLocked()
}

func (s *FileSink) rotateLocked() error {
	st, err := os.Stat(s.path)
	if err != nil || st.Size() <= s.maxBytes {
		return nil
	}

	ext := filepath.Ext(s.path)
	base := strings.TrimSuffix(s.path, ext)
	dst := fmt.Sprintf("%s-%d%s", base, time.Now().UnixMilli(), ext)
	if err := os.Rename(s.path, dst); err != nil {
		return fmt.Errorf("rotate audit file: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("recreate audit file: %w", err)
	}
	return f.Close()
}

// ReadFile returns every record in a JSONL audit file, oldest first.
// Malformed lines are skipped.
func ReadFile(path string) ([]models.UnresolvedComponent, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var out []models.UnresolvedComponent
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec models.UnresolvedComponent
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
