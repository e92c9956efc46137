// Package media stores product images on the local disk.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is where the HTTP layer serves Root.
const URLPrefix = "/uploads"

const uncategorized = "uncategorized"

var (
	ErrNotFound = errors.New("image not found")
	ErrBadName  = errors.New("invalid file name")
)

// DiskStore keeps images under Root/<category>/<product>/<file>.
type DiskStore struct {
	Root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{Root: root}
}

func cleanSegment(s string) (string, error) {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadName, s)
	}
	return s, nil
}

func categoryDir(categoryID string) string {
	if categoryID == "" {
		return uncategorized
	}
	return categoryID
}

func (d *DiskStore) productDir(categoryID, productID string) (string, error) {
	cat, err := cleanSegment(categoryDir(categoryID))
	if err != nil {
		return "", err
	}
	pid, err := cleanSegment(productID)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.Root, cat, pid), nil
}

// Save writes r under a fresh name keeping the extension of originalName and
// returns that name.
func (d *DiskStore) Save(categoryID, productID, originalName string, r io.Reader) (string, error) {
	dir, err := d.productDir(categoryID, productID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	full := filepath.Join(dir, name)
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("write image: %w", err)
	}
	return name, nil
}

// List returns the image file names of a product in name order.
func (d *DiskStore) List(categoryID, productID string) ([]string, error) {
	dir, err := d.productDir(categoryID, productID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *DiskStore) Delete(categoryID, productID, filename string) error {
	dir, err := d.productDir(categoryID, productID)
	if err != nil {
		return err
	}
	name, err := cleanSegment(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// DeleteAll removes the whole image directory of a product.
func (d *DiskStore) DeleteAll(categoryID, productID string) error {
	dir, err := d.productDir(categoryID, productID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// Move relocates a product's images after its primary category changed.
// Files already in the destination are kept.
func (d *DiskStore) Move(oldCategoryID, newCategoryID, productID string) error {
	if categoryDir(oldCategoryID) == categoryDir(newCategoryID) {
		return nil
	}
	src, err := d.productDir(oldCategoryID, productID)
	if err != nil {
		return err
	}
	dst, err := d.productDir(newCategoryID, productID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return os.Rename(src, dst)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return os.RemoveAll(src)
}

// URL is the public path of an image.
func (d *DiskStore) URL(categoryID, productID, filename string) string {
	return path.Join(URLPrefix, categoryDir(categoryID), productID, filename)
}

// FileName extracts the file name from an image URL.
func FileName(url string) string {
	return path.Base(url)
}
