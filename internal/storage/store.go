// Package storage keeps uploaded files on the local filesystem. The
// directory itself is the source of truth: there is no index, every
// listing re-reads the directory, so files dropped in or removed by
// hand show up like any other.
//
// Stored names carry a unix-milliseconds prefix ("1699999999999-doc.pdf")
// so that repeated uploads of the same file never collide.
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid filename")
)

// tsPrefix matches the upload-time prefix added by Save.
var tsPrefix = regexp.MustCompile(`^\d+-`)

// FileInfo describes one stored file as the API reports it.
type FileInfo struct {
	Filename   string    `json:"filename"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save streams r into a new file named "<unix-millis>-<name>". The file
// is created with O_EXCL; if two uploads of the same name land in the
// same millisecond the timestamp is bumped until a free slot is found,
// so every stored name stays unique.
func (s *Store) Save(name string, r io.Reader) (FileInfo, error) {
	base := sanitizeName(name)
	ts := time.Now().UnixMilli()
	for {
		stored := fmt.Sprintf("%d-%s", ts, base)
		path := filepath.Join(s.dir, stored)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				ts++
				continue
			}
			return FileInfo{}, fmt.Errorf("create %s: %w", stored, err)
		}
		size, err := io.Copy(f, r)
		if err != nil {
			f.Close()
			os.Remove(path)
			return FileInfo{}, fmt.Errorf("write %s: %w", stored, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return FileInfo{}, fmt.Errorf("close %s: %w", stored, err)
		}
		return FileInfo{
			Filename:   stored,
			Name:       base,
			Size:       size,
			MimeType:   mimeByExt(base),
			ModifiedAt: time.Now(),
		}, nil
	}
}

// List returns every stored file, newest first.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}
	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Filename:   e.Name(),
			Name:       DisplayName(e.Name()),
			Size:       info.Size(),
			MimeType:   mimeByExt(e.Name()),
			ModifiedAt: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModifiedAt.Equal(files[j].ModifiedAt) {
			return files[i].ModifiedAt.After(files[j].ModifiedAt)
		}
		return files[i].Filename > files[j].Filename
	})
	return files, nil
}

// Open returns a readable handle for a stored file together with its
// stat info, for range-aware serving.
func (s *Store) Open(name string) (*os.File, os.FileInfo, error) {
	if err := validateName(name); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

// Delete removes a stored file. Removing a file that does not exist is
// not an error; the end state is the same.
func (s *Store) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// DisplayName strips the upload-time prefix from a stored name. Names
// without the prefix come back unchanged.
func DisplayName(stored string) string {
	return tsPrefix.ReplaceAllString(stored, "")
}

// validateName rejects anything that could escape the upload dir when
// joined onto it. Stored names are always a single path element.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") {
		return ErrInvalidName
	}
	if len(name) > 255 {
		return ErrInvalidName
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidName
		}
	}
	return nil
}

// sanitizeName reduces a client-supplied filename to a safe single path
// element. Browsers occasionally send full Windows paths; everything up
// to the last separator is dropped.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	name = b.String()
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	if len(name) > 200 {
		ext := filepath.Ext(name)
		if len(ext) > 20 {
			ext = ""
		}
		name = name[:200-len(ext)] + ext
	}
	return name
}

func mimeByExt(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
