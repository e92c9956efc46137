package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"el-store/model"
	"el-store/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) productViews(ctx context.Context, products []model.Product) ([]ProductView, error) {
	cat, err := s.loadCatalog(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, cat.productView(p))
	}
	return out, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]ProductView, error) {
	products, err := s.store.ListProducts(ctx, model.ProductFilter{})
	if err != nil {
		return nil, err
	}
	return s.productViews(ctx, products)
}

func (s *Service) GetProduct(ctx context.Context, id string) (ProductView, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return ProductView{}, orNotFound(err, "product")
	}
	views, err := s.productViews(ctx, []model.Product{p})
	if err != nil {
		return ProductView{}, err
	}
	return views[0], nil
}

// SearchProducts matches q against name and description. A category filter
// also matches products in any descendant of the given categories.
func (s *Service) SearchProducts(ctx context.Context, q string, categoryIDs []string) ([]ProductView, error) {
	f := model.ProductFilter{Search: strings.TrimSpace(q)}
	if len(categoryIDs) > 0 {
		flat, err := s.store.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		for _, id := range categoryIDs {
			for _, sub := range model.CategorySubtree(flat, id) {
				if !seen[sub] {
					seen[sub] = true
					f.CategoryIDs = append(f.CategoryIDs, sub)
				}
			}
		}
		if len(f.CategoryIDs) == 0 {
			return []ProductView{}, nil
		}
	}
	products, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.productViews(ctx, products)
}

// Categories

// CategoryTree returns the nested category hierarchy and the number of
// categories in it.
func (s *Service) CategoryTree(ctx context.Context) ([]model.CategoryNode, int, error) {
	flat, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, 0, err
	}
	return model.BuildCategoryTree(flat), len(flat), nil
}

type CategoryInput struct {
	Name string
	// ParentSet tells an omitted parent from an explicit null.
	ParentSet bool
	ParentID  *string
}

func cleanCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("category name is required")
	}
	if utf8.RuneCountInString(name) > model.MaxCategoryNameLen {
		return "", invalid(fmt.Sprintf("category name must be at most %d characters", model.MaxCategoryNameLen))
	}
	return name, nil
}

func normalizeParent(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	v := strings.TrimSpace(*id)
	return &v
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (model.Category, error) {
	name, err := cleanCategoryName(in.Name)
	if err != nil {
		return model.Category{}, err
	}
	parent := normalizeParent(in.ParentID)
	if parent != nil {
		if _, err := s.store.GetCategory(ctx, *parent); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return model.Category{}, invalid("parent category not found")
			}
			return model.Category{}, err
		}
	}
	c := model.Category{ID: model.NewID(), Name: name, ParentID: parent}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return model.Category{}, err
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (model.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return model.Category{}, orNotFound(err, "category")
	}
	if strings.TrimSpace(in.Name) != "" {
		if c.Name, err = cleanCategoryName(in.Name); err != nil {
			return model.Category{}, err
		}
	}
	if in.ParentSet {
		parent := normalizeParent(in.ParentID)
		if parent != nil {
			if *parent == id {
				return model.Category{}, invalid("a category cannot be its own parent")
			}
			flat, err := s.store.ListCategories(ctx)
			if err != nil {
				return model.Category{}, err
			}
			found := false
			for _, other := range flat {
				if other.ID == *parent {
					found = true
					break
				}
			}
			if !found {
				return model.Category{}, invalid("parent category not found")
			}
			if model.CreatesCycle(flat, id, *parent) {
				return model.Category{}, invalid("this parent would create a cycle in the category tree")
			}
		}
		c.ParentID = parent
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return model.Category{}, orNotFound(err, "category")
	}
	return c, nil
}

// DeleteCategory removes a category and moves the images of products whose
// primary category changed as a result.
func (s *Service) DeleteCategory(ctx context.Context, id string) (model.Category, error) {
	affected, err := s.store.ListProducts(ctx, model.ProductFilter{CategoryIDs: []string{id}})
	if err != nil {
		return model.Category{}, err
	}
	c, err := s.store.DeleteCategory(ctx, id)
	if err != nil {
		return model.Category{}, orNotFound(err, "category")
	}
	for _, before := range affected {
		after, err := s.store.GetProduct(ctx, before.ID)
		if err != nil {
			continue
		}
		if err := s.relocateImages(ctx, before.PrimaryCategory(), after); err != nil {
			s.log.Warn("move product images", zap.String("product_id", after.ID), zap.Error(err))
		}
	}
	s.log.Info("category deleted", zap.String("category_id", id), zap.Int("products", len(affected)))
	return c, nil
}

// Products (admin)

type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Categories  []string        `json:"categories"`
	Stock       int             `json:"stock"`
}

// ProductPatch carries the fields of a product update. Nil fields are kept.
type ProductPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Categories  []string         `json:"categories"`
	Stock       *int             `json:"stock"`
}

// stockOnly reports whether the patch touches nothing but the stock level.
func (p ProductPatch) stockOnly() bool {
	return p.Stock != nil && p.Name == nil && p.Description == nil && p.Price == nil && p.Categories == nil
}

func (s *Service) checkCategories(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, invalid("at least one category is required")
	}
	flat, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(flat))
	for _, c := range flat {
		known[c.ID] = true
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !known[id] {
			return nil, invalid(fmt.Sprintf("category %s not found", id))
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func validateProductFields(p *model.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	if p.Name == "" {
		return invalid("product name is required")
	}
	if utf8.RuneCountInString(p.Name) > model.MaxProductNameLen {
		return invalid(fmt.Sprintf("product name must be at most %d characters", model.MaxProductNameLen))
	}
	if p.Price.IsNegative() {
		return invalid("price must be >= 0")
	}
	if p.Stock < 0 {
		return invalid("stock cannot be negative")
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (ProductView, error) {
	p := model.Product{
		ID:          model.NewID(),
		Name:        in.Name,
		Description: in.Description,
		Images:      []string{},
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
	}
	if err := validateProductFields(&p); err != nil {
		return ProductView{}, err
	}
	cats, err := s.checkCategories(ctx, in.Categories)
	if err != nil {
		return ProductView{}, err
	}
	p.Categories = cats
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return ProductView{}, err
	}
	s.log.Info("product created", zap.String("product_id", p.ID))
	return s.GetProduct(ctx, p.ID)
}

// UpdateProduct applies patch. When the primary category changes the images
// directory follows it.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (ProductView, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return ProductView{}, orNotFound(err, "product")
	}
	oldPrimary := p.PrimaryCategory()

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = patch.Price.Round(2)
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if err := validateProductFields(&p); err != nil {
		return ProductView{}, err
	}
	if patch.Categories != nil {
		if p.Categories, err = s.checkCategories(ctx, patch.Categories); err != nil {
			return ProductView{}, err
		}
	}
	if !patch.stockOnly() {
		if err := s.store.UpdateProduct(ctx, p); err != nil {
			return ProductView{}, orNotFound(err, "product")
		}
	}
	if patch.Stock != nil {
		if err := s.store.UpdateStock(ctx, id, *patch.Stock); err != nil {
			return ProductView{}, orNotFound(err, "product")
		}
	}
	if err := s.relocateImages(ctx, oldPrimary, p); err != nil {
		return ProductView{}, fmt.Errorf("move product images: %w", err)
	}
	return s.GetProduct(ctx, id)
}

// relocateImages moves the image directory of p away from oldPrimary and
// rewrites its image URLs when its primary category changed.
func (s *Service) relocateImages(ctx context.Context, oldPrimary string, p model.Product) error {
	newPrimary := p.PrimaryCategory()
	if oldPrimary == newPrimary || s.images == nil {
		return nil
	}
	if err := s.images.Move(oldPrimary, newPrimary, p.ID); err != nil {
		return err
	}
	if len(p.Images) == 0 {
		return nil
	}
	oldBase := strings.TrimSuffix(s.images.URL(oldPrimary, p.ID, ""), "/") + "/"
	newBase := strings.TrimSuffix(s.images.URL(newPrimary, p.ID, ""), "/") + "/"
	for i, img := range p.Images {
		p.Images[i] = strings.Replace(img, oldBase, newBase, 1)
	}
	return s.store.SetProductImages(ctx, p.ID, p.Images)
}

// DeleteProduct removes a product, drops it from carts and deletes its images.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return orNotFound(err, "product")
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return orNotFound(err, "product")
	}
	if s.images != nil {
		if err := s.images.DeleteAll(p.PrimaryCategory(), id); err != nil {
			s.log.Warn("delete product images", zap.String("product_id", id), zap.Error(err))
		}
	}
	s.log.Info("product deleted", zap.String("product_id", id))
	return nil
}
