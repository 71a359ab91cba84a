// Package artifact writes build outputs so that a reader never observes a
// partial file: content goes to a temp file next to the target, is synced,
// and only then renamed over the target.
package artifact

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// Info describes a written artifact.
type Info struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	CRC32 uint32 `json:"crc32"`
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteFile atomically replaces path with whatever write produces. On any
// error the temp file is removed and an existing file at path is untouched.
func WriteFile(path string, write func(w io.Writer) error) (Info, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Info{}, fmt.Errorf("creating artifact directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Info{}, fmt.Errorf("creating temp artifact file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	crc := crc32.NewIEEE()
	buf := bufio.NewWriterSize(f, 1<<20)
	counter := &countingWriter{w: io.MultiWriter(buf, crc)}
	if err := write(counter); err != nil {
		return Info{}, err
	}
	if err := buf.Flush(); err != nil {
		return Info{}, fmt.Errorf("flushing %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		return Info{}, fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return Info{}, fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return Info{}, fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	committed = true
	return Info{
		Name:  filepath.Base(path),
		Size:  counter.n,
		CRC32: crc.Sum32(),
	}, nil
}

// Checksum computes the Info of an existing file.
func Checksum(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	crc := crc32.NewIEEE()
	n, err := io.Copy(crc, f)
	if err != nil {
		return Info{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Info{Name: filepath.Base(path), Size: n, CRC32: crc.Sum32()}, nil
}
