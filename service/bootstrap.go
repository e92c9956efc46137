package service

import (
	"context"
	"fmt"

	"el-store/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAdmin creates an administrator account unless an admin, the login
// or the email already exists. created reports whether a user was added.
func (s *Service) CreateAdmin(ctx context.Context, in RegisterInput) (created bool, err error) {
	if err := validateAccount(&in); err != nil {
		return false, err
	}
	hasAdmin, err := s.store.AdminExists(ctx)
	if err != nil {
		return false, err
	}
	taken, err := s.store.UserExists(ctx, in.Login, in.Email)
	if err != nil {
		return false, err
	}
	if hasAdmin || taken {
		s.log.Info("admin already exists, nothing to do", zap.String("login", in.Login))
		return false, nil
	}
	u, err := s.newUser(ctx, in, model.RoleAdmin)
	if err != nil {
		return false, err
	}
	s.log.Info("admin created", zap.String("user_id", u.ID), zap.String("login", u.Login))
	return true, nil
}

type seedProduct struct {
	name, description string
	price             int64
	stock             int
	categories        []string
}

type seedCategory struct {
	name     string
	children []string
}

var seedCategories = []seedCategory{
	{"Computers & Laptops", []string{"Laptops", "Desktops", "Components", "Peripherals"}},
	{"Phones & Gadgets", []string{"Smartphones", "Tablets", "Smartwatches", "Accessories"}},
	{"Home Appliances", []string{"Kitchen", "Cleaning", "Other Appliances"}},
	{"TV & Audio", []string{"Televisions", "Smart Speakers"}},
}

var seedProducts = []seedProduct{
	{"Apple MacBook Air 13 M2", "Thin and light laptop with the Apple M2 chip and a 13.6-inch Retina display.", 119990, 15, []string{"Computers & Laptops", "Laptops"}},
	{"ASUS ROG Strix G15", "Gaming laptop with Intel Core i7, RTX 4060 and 16 GB of RAM.", 149990, 8, []string{"Computers & Laptops", "Laptops"}},
	{"Lenovo ThinkPad X1 Carbon", "Business laptop with a 14-inch display and premium build.", 135000, 12, []string{"Computers & Laptops", "Laptops"}},
	{"HP Pavilion Gaming Desktop", "Ryzen 5 desktop with GTX 1660 Super and a 512 GB SSD.", 89990, 6, []string{"Computers & Laptops", "Desktops"}},
	{"NVIDIA GeForce RTX 4070 Ti", "12 GB GDDR6X graphics card with ray tracing and DLSS 3.", 89990, 10, []string{"Computers & Laptops", "Components"}},
	{"AMD Ryzen 7 7800X3D", "8-core processor with 3D V-Cache tuned for gaming.", 45990, 20, []string{"Computers & Laptops", "Components"}},
	{"Logitech MX Master 3S", "Wireless mouse with quiet clicks and an 8K DPI sensor.", 9990, 30, []string{"Computers & Laptops", "Peripherals"}},
	{"iPhone 15 Pro Max", "Titanium flagship with the A17 Pro chip and a 48 MP camera.", 129990, 18, []string{"Phones & Gadgets", "Smartphones"}},
	{"Samsung Galaxy S24 Ultra", "Android flagship with a built-in S Pen and 200 MP camera.", 119990, 14, []string{"Phones & Gadgets", "Smartphones"}},
	{"Apple iPad Air M1", "10.9-inch tablet with the M1 chip.", 64990, 9, []string{"Phones & Gadgets", "Tablets"}},
	{"Apple Watch Series 9", "Smartwatch with health tracking and an always-on display.", 41990, 16, []string{"Phones & Gadgets", "Smartwatches"}},
	{"Anker PowerCore 20000", "20000 mAh power bank with fast charging.", 3990, 40, []string{"Phones & Gadgets", "Accessories"}},
	{"Philips Airfryer XXL", "Air fryer with a 7.3 L basket.", 24990, 11, []string{"Home Appliances", "Kitchen"}},
	{"Dyson V15 Detect", "Cordless vacuum cleaner with laser dust detection.", 69990, 7, []string{"Home Appliances", "Cleaning"}},
	{"LG OLED55C3", "55-inch 4K OLED TV with webOS.", 139990, 5, []string{"TV & Audio", "Televisions"}},
	{"Yandex Station Max", "Smart speaker with a voice assistant and Zigbee hub.", 29990, 13, []string{"TV & Audio", "Smart Speakers"}},
}

type SeedResult struct {
	Categories int `json:"categories"`
	Products   int `json:"products"`
}

// Seed replaces the catalog with a demo set of categories and products. Image
// directories of the old products go with them.
func (s *Service) Seed(ctx context.Context) (SeedResult, error) {
	old, err := s.store.ListProducts(ctx, model.ProductFilter{})
	if err != nil {
		return SeedResult{}, fmt.Errorf("list catalog: %w", err)
	}
	if err := s.store.DeleteCatalog(ctx); err != nil {
		return SeedResult{}, fmt.Errorf("wipe catalog: %w", err)
	}
	if s.images != nil {
		for _, p := range old {
			if err := s.images.DeleteAll(p.PrimaryCategory(), p.ID); err != nil {
				s.log.Warn("delete product images", zap.String("product_id", p.ID), zap.Error(err))
			}
		}
	}

	ids := map[string]string{}
	var res SeedResult
	add := func(name string, parent *string) error {
		c := model.Category{ID: model.NewID(), Name: name, ParentID: parent}
		if err := s.store.CreateCategory(ctx, c); err != nil {
			return fmt.Errorf("create category %q: %w", name, err)
		}
		ids[name] = c.ID
		res.Categories++
		return nil
	}
	for _, root := range seedCategories {
		if err := add(root.name, nil); err != nil {
			return res, err
		}
		parent := ids[root.name]
		for _, child := range root.children {
			if err := add(child, &parent); err != nil {
				return res, err
			}
		}
	}

	for _, sp := range seedProducts {
		cats := make([]string, 0, len(sp.categories))
		for _, name := range sp.categories {
			cats = append(cats, ids[name])
		}
		p := model.Product{
			ID:          model.NewID(),
			Name:        sp.name,
			Description: sp.description,
			Images:      []string{},
			Price:       decimal.NewFromInt(sp.price),
			Categories:  cats,
			Stock:       sp.stock,
		}
		if err := s.store.CreateProduct(ctx, p); err != nil {
			return res, fmt.Errorf("create product %q: %w", sp.name, err)
		}
		res.Products++
	}
	s.log.Info("catalog seeded", zap.Int("categories", res.Categories), zap.Int("products", res.Products))
	return res, nil
}
