package service

import (
	"io"
	"time"

	"el-store/store"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ImageStore keeps product images. media.DiskStore implements it.
type ImageStore interface {
	Save(categoryID, productID, originalName string, r io.Reader) (string, error)
	List(categoryID, productID string) ([]string, error)
	Delete(categoryID, productID, filename string) error
	DeleteAll(categoryID, productID string) error
	Move(oldCategoryID, newCategoryID, productID string) error
	URL(categoryID, productID, filename string) string
}

type Options struct {
	SessionTTL     time.Duration
	MaxUploadSize  int64
	MaxUploadFiles int
	BcryptCost     int
}

func (o Options) withDefaults() Options {
	if o.SessionTTL <= 0 {
		o.SessionTTL = 24 * time.Hour
	}
	if o.MaxUploadSize <= 0 {
		o.MaxUploadSize = 5 << 20
	}
	if o.MaxUploadFiles <= 0 {
		o.MaxUploadFiles = 10
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = 12
	}
	return o
}

type Service struct {
	store  store.Store
	images ImageStore
	log    *zap.Logger
	opts   Options
	now    func() time.Time
}

var _ ServiceInterface = (*Service)(nil)

func NewService(s store.Store, images ImageStore, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()
	if opts.BcryptCost < bcrypt.MinCost {
		opts.BcryptCost = bcrypt.MinCost
	}
	return &Service{
		store:  s,
		images: images,
		log:    log,
		opts:   opts,
		now:    time.Now,
	}
}
