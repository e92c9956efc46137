package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"el-store/media"

	"go.uber.org/zap"
)

// Upload is one file of a multipart image upload.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var errFileTooLarge = errors.New("file too large")

// capReader fails once more than max bytes went through it. Declared sizes
// of multipart parts are not trusted.
type capReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return n, errFileTooLarge
	}
	return n, err
}

type UploadedFile struct {
	Filename     string `json:"filename"`
	URL          string `json:"url"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
}

type ImageFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// ProductImages is the image list of a product after a change.
type ProductImages struct {
	ID     string   `json:"id"`
	Images []string `json:"images"`
}

type UploadResult struct {
	Files   []UploadedFile `json:"files"`
	Product ProductImages  `json:"product"`
}

func (s *Service) checkUploads(files []Upload) error {
	if len(files) == 0 {
		return invalid("no files uploaded")
	}
	if len(files) > s.opts.MaxUploadFiles {
		return invalid(fmt.Sprintf("too many files (max %d)", s.opts.MaxUploadFiles))
	}
	for _, f := range files {
		if !strings.HasPrefix(f.ContentType, "image/") {
			return invalid("only image files are allowed")
		}
		if f.Size > s.opts.MaxUploadSize {
			return invalid(fmt.Sprintf("file size exceeds %dMB", s.opts.MaxUploadSize>>20))
		}
	}
	return nil
}

// UploadImages stores files under the product's primary category and
// appends their URLs to the product. Nothing is kept if any file fails.
func (s *Service) UploadImages(ctx context.Context, productID string, files []Upload) (UploadResult, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return UploadResult{}, orNotFound(err, "product")
	}
	if err := s.checkUploads(files); err != nil {
		return UploadResult{}, err
	}

	cat := p.PrimaryCategory()
	saved := make([]UploadedFile, 0, len(files))
	rollback := func() {
		for _, f := range saved {
			_ = s.images.Delete(cat, productID, f.Filename)
		}
	}
	for _, f := range files {
		name, err := s.images.Save(cat, productID, f.Filename, &capReader{r: f.Body, max: s.opts.MaxUploadSize})
		if err != nil {
			rollback()
			if errors.Is(err, errFileTooLarge) {
				return UploadResult{}, invalid(fmt.Sprintf("file size exceeds %dMB", s.opts.MaxUploadSize>>20))
			}
			return UploadResult{}, fmt.Errorf("save image: %w", err)
		}
		saved = append(saved, UploadedFile{
			Filename:     name,
			URL:          s.images.URL(cat, productID, name),
			OriginalName: f.Filename,
			Size:         f.Size,
			MimeType:     f.ContentType,
		})
	}

	for _, f := range saved {
		p.Images = append(p.Images, f.URL)
	}
	if err := s.store.SetProductImages(ctx, p.ID, p.Images); err != nil {
		rollback()
		return UploadResult{}, orNotFound(err, "product")
	}
	s.log.Info("images uploaded", zap.String("product_id", productID), zap.Int("count", len(saved)))
	return UploadResult{Files: saved, Product: ProductImages{ID: p.ID, Images: p.Images}}, nil
}

func (s *Service) ListImages(ctx context.Context, productID string) ([]ImageFile, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, orNotFound(err, "product")
	}
	names, err := s.images.List(p.PrimaryCategory(), productID)
	if err != nil {
		return nil, err
	}
	out := make([]ImageFile, 0, len(names))
	for _, n := range names {
		out = append(out, ImageFile{Filename: n, URL: s.images.URL(p.PrimaryCategory(), productID, n)})
	}
	return out, nil
}

func (s *Service) DeleteImage(ctx context.Context, productID, filename string) (ProductImages, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return ProductImages{}, orNotFound(err, "product")
	}
	if err := s.images.Delete(p.PrimaryCategory(), productID, filename); err != nil {
		switch {
		case errors.Is(err, media.ErrNotFound):
			return ProductImages{}, notFound("file")
		case errors.Is(err, media.ErrBadName):
			return ProductImages{}, invalid("invalid file name")
		}
		return ProductImages{}, err
	}
	url := s.images.URL(p.PrimaryCategory(), productID, filename)
	kept := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		if img != url {
			kept = append(kept, img)
		}
	}
	p.Images = kept
	if err := s.store.SetProductImages(ctx, p.ID, p.Images); err != nil {
		return ProductImages{}, orNotFound(err, "product")
	}
	return ProductImages{ID: p.ID, Images: p.Images}, nil
}

func (s *Service) DeleteAllImages(ctx context.Context, productID string) (ProductImages, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return ProductImages{}, orNotFound(err, "product")
	}
	if err := s.images.DeleteAll(p.PrimaryCategory(), productID); err != nil {
		return ProductImages{}, err
	}
	p.Images = []string{}
	if err := s.store.SetProductImages(ctx, p.ID, p.Images); err != nil {
		return ProductImages{}, orNotFound(err, "product")
	}
	return ProductImages{ID: p.ID, Images: p.Images}, nil
}
