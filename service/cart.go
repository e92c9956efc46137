package service

import (
	"context"
	"errors"
	"fmt"

	"el-store/model"
	"el-store/store"

	"github.com/shopspring/decimal"
)

func (s *Service) cartView(ctx context.Context, c model.Cart) (CartView, error) {
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	cat, err := s.loadCatalog(ctx, ids)
	if err != nil {
		return CartView{}, err
	}
	view := CartView{CartID: c.ID, Items: []CartLine{}, TotalPrice: decimal.Zero}
	for _, it := range c.Items {
		p, ok := cat.products[it.ProductID]
		if !ok {
			continue
		}
		total := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		view.Items = append(view.Items, CartLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Product:   cat.productView(p),
			ItemTotal: total,
		})
		view.TotalItems += it.Quantity
		view.TotalPrice = view.TotalPrice.Add(total)
	}
	return view, nil
}

// GetCart returns the user's cart with product details and totals. A user
// without a cart gets an empty one.
func (s *Service) GetCart(ctx context.Context, userID string) (CartView, error) {
	c, err := s.store.GetCart(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return CartView{Items: []CartLine{}, TotalPrice: decimal.Zero}, nil
	}
	if err != nil {
		return CartView{}, err
	}
	return s.cartView(ctx, c)
}

func insufficient(available int) *StockError {
	return &StockError{Msg: "not enough items in stock", Available: available}
}

// AddToCart adds qty of a product, checking stock against what the cart
// already holds.
func (s *Service) AddToCart(ctx context.Context, userID, productID string, qty int) (CartView, error) {
	if productID == "" {
		return CartView{}, invalid("productId is required")
	}
	if qty <= 0 {
		return CartView{}, invalid("quantity must be > 0")
	}
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return CartView{}, orNotFound(err, "product")
	}
	if p.Stock < qty {
		return CartView{}, insufficient(p.Stock)
	}
	c, err := s.store.UpdateCart(ctx, userID, func(c *model.Cart) error {
		if i := c.Find(productID); i >= 0 {
			current := c.Items[i].Quantity
			if p.Stock < current+qty {
				e := insufficient(p.Stock)
				e.CurrentInCart = &current
				return e
			}
		}
		c.Add(productID, qty)
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return s.cartView(ctx, c)
}

// UpdateCartItem sets the quantity of a cart line. Quantity 0 removes it.
func (s *Service) UpdateCartItem(ctx context.Context, userID, productID string, qty int) (CartView, error) {
	if qty < 0 {
		return CartView{}, invalid("quantity must be a non-negative number")
	}
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return CartView{}, orNotFound(err, "product")
	}
	if p.Stock < qty {
		return CartView{}, insufficient(p.Stock)
	}
	c, err := s.store.UpdateCart(ctx, userID, func(c *model.Cart) error {
		if c.ID == "" {
			return notFound("cart")
		}
		i := c.Find(productID)
		if i < 0 {
			return notFound("item in cart")
		}
		if qty == 0 {
			c.Remove(productID)
		} else {
			c.Items[i].Quantity = qty
		}
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return s.cartView(ctx, c)
}

func (s *Service) RemoveFromCart(ctx context.Context, userID, productID string) (CartView, error) {
	c, err := s.store.UpdateCart(ctx, userID, func(c *model.Cart) error {
		if c.ID == "" {
			return notFound("cart")
		}
		if !c.Remove(productID) {
			return notFound("item in cart")
		}
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return s.cartView(ctx, c)
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if err := s.store.DeleteCart(ctx, userID); err != nil {
		return orNotFound(err, "cart")
	}
	return nil
}

func stockMessage(name string) string {
	return fmt.Sprintf("product %q is not available in the requested quantity", name)
}
