package utils

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func BatchSlice[T any](slice []T, batchSize int) [][]T {
	if len(slice) == 0 {
		return nil
	}
	if batchSize <= 0 {
		return [][]T{slice}
	}
	batches := make([][]T, 0, (len(slice)+batchSize-1)/batchSize)
	for i := 0; i < len(slice); i += batchSize {
		end := i + batchSize
		if end > len(slice) {
			end = len(slice)
		}
		batches = append(batches, slice[i:end])
	}
	return batches
}

// Percent returns floor(done/total*100) clamped to 0..100; a zero total yields 0.
func Percent(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return done * 100 / total
}

func HumanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", d/time.Minute, (d%time.Minute)/time.Second)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", d/time.Hour, (d%time.Hour)/time.Minute)
	}
	return fmt.Sprintf("%dd %dh", d/(24*time.Hour), (d%(24*time.Hour))/time.Hour)
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

func SafeWriteFile(path string, data []byte, mode os.FileMode) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := EnsureDir(dir); err != nil {
			return err
		}
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// WriteMaybeGzip writes data atomically, gzip-compressing it when path ends in ".gz".
func WriteMaybeGzip(path string, data []byte) error {
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return SafeWriteFile(path, data, 0o600)
	}
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	gzw := gzip.NewWriter(f)
	gzw.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	_, werr := gzw.Write(data)
	cerr := gzw.Close()
	ferr := f.Close()
	for _, e := range []error{werr, cerr, ferr} {
		if e != nil {
			_ = os.Remove(tmp)
			return e
		}
	}
	return os.Rename(tmp, path)
}
