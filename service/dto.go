package service

import (
	"context"
	"time"

	"el-store/model"

	"github.com/shopspring/decimal"
)

// DTOs

type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ProductView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Images      []string        `json:"images"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Categories  []CategoryRef   `json:"categories"`
}

type CartLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Product   ProductView     `json:"product"`
	ItemTotal decimal.Decimal `json:"itemTotal"`
}

type CartView struct {
	CartID     string          `json:"cartId,omitempty"`
	Items      []CartLine      `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// UserRef is the owner block of admin order views.
type UserRef struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type OrderLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	// Product is nil once the product has been deleted.
	Product *ProductView `json:"product"`
}

type OrderView struct {
	ID          string             `json:"id"`
	UserID      string             `json:"userId"`
	User        *UserRef           `json:"user,omitempty"`
	Items       []OrderLine        `json:"items"`
	Delivery    model.DeliveryInfo `json:"deliveryInfo"`
	Payment     model.PaymentInfo  `json:"paymentInfo"`
	Status      model.OrderStatus  `json:"status"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type OrderList struct {
	Orders []OrderView `json:"orders"`
	PageInfo
}

type UserList struct {
	Users []model.User `json:"users"`
	PageInfo
}

// catalog resolves category names and products while building views.
type catalog struct {
	categories map[string]model.Category
	products   map[string]model.Product
}

func (s *Service) loadCatalog(ctx context.Context, productIDs []string) (*catalog, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	c := &catalog{
		categories: make(map[string]model.Category, len(cats)),
		products:   make(map[string]model.Product, len(productIDs)),
	}
	for _, cat := range cats {
		c.categories[cat.ID] = cat
	}
	if len(productIDs) > 0 {
		products, err := s.store.GetProductsByIDs(ctx, productIDs)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			c.products[p.ID] = p
		}
	}
	return c, nil
}

func (c *catalog) productView(p model.Product) ProductView {
	refs := make([]CategoryRef, 0, len(p.Categories))
	for _, id := range p.Categories {
		ref := CategoryRef{ID: id}
		if cat, ok := c.categories[id]; ok {
			ref.Name = cat.Name
		}
		refs = append(refs, ref)
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Images:      images,
		Price:       p.Price,
		Stock:       p.Stock,
		Categories:  refs,
	}
}

func (c *catalog) orderView(o model.Order) OrderView {
	lines := make([]OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		line := OrderLine{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
		if p, ok := c.products[it.ProductID]; ok {
			pv := c.productView(p)
			line.Product = &pv
		}
		lines = append(lines, line)
	}
	return OrderView{
		ID:          o.ID,
		UserID:      o.UserID,
		Items:       lines,
		Delivery:    o.Delivery,
		Payment:     o.Payment,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func orderProductIDs(orders ...model.Order) []string {
	seen := map[string]bool{}
	ids := []string{}
	for _, o := range orders {
		for _, it := range o.Items {
			if !seen[it.ProductID] {
				seen[it.ProductID] = true
				ids = append(ids, it.ProductID)
			}
		}
	}
	return ids
}

// orderViews builds views for orders, attaching owners when withUsers is set.
func (s *Service) orderViews(ctx context.Context, orders []model.Order, withUsers bool) ([]OrderView, error) {
	cat, err := s.loadCatalog(ctx, orderProductIDs(orders...))
	if err != nil {
		return nil, err
	}
	users := map[string]model.User{}
	if withUsers && len(orders) > 0 {
		ids := make([]string, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.UserID)
		}
		list, err := s.store.GetUsersByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, u := range list {
			users[u.ID] = u
		}
	}
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		v := cat.orderView(o)
		if u, ok := users[o.UserID]; ok {
			v.User = &UserRef{ID: u.ID, Login: u.Login, DisplayName: u.DisplayName, Email: u.Email}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) orderView(ctx context.Context, o model.Order, withUser bool) (OrderView, error) {
	views, err := s.orderViews(ctx, []model.Order{o}, withUser)
	if err != nil {
		return OrderView{}, err
	}
	return views[0], nil
}
