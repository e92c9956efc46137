package service

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"el-store/media"
	"el-store/model"
	"el-store/store"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ---- fakeStore wraps the in-memory store and lets tests fail single calls ----
type fakeStore struct {
	*store.MemoryStore
	GetProductFn  func(ctx context.Context, id string) (model.Product, error)
	ListOrdersFn  func(ctx context.Context, f model.OrderFilter, limit, offset int) ([]model.Order, int, error)
	CreateOrderFn func(ctx context.Context, userID string) (model.Order, error)
}

func (f *fakeStore) GetProduct(ctx context.Context, id string) (model.Product, error) {
	if f.GetProductFn != nil {
		return f.GetProductFn(ctx, id)
	}
	return f.MemoryStore.GetProduct(ctx, id)
}

func (f *fakeStore) ListOrders(ctx context.Context, fl model.OrderFilter, limit, offset int) ([]model.Order, int, error) {
	if f.ListOrdersFn != nil {
		return f.ListOrdersFn(ctx, fl, limit, offset)
	}
	return f.MemoryStore.ListOrders(ctx, fl, limit, offset)
}

func (f *fakeStore) CreateOrderFromCart(ctx context.Context, userID string) (model.Order, error) {
	if f.CreateOrderFn != nil {
		return f.CreateOrderFn(ctx, userID)
	}
	return f.MemoryStore.CreateOrderFromCart(ctx, userID)
}

// ---- helpers ----

type fixture struct {
	svc   *Service
	store *fakeStore
	dir   string
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	opts.BcryptCost = bcrypt.MinCost
	fs := &fakeStore{MemoryStore: store.NewMemoryStore()}
	dir := t.TempDir()
	return &fixture{
		svc:   NewService(fs, media.NewDiskStore(dir), zap.NewNop(), opts),
		store: fs,
		dir:   dir,
	}
}

func (f *fixture) category(t *testing.T, name string, parent *string) model.Category {
	t.Helper()
	c, err := f.svc.CreateCategory(context.Background(), CategoryInput{Name: name, ParentID: parent})
	if err != nil {
		t.Fatalf("create category %q: %v", name, err)
	}
	return c
}

func (f *fixture) product(t *testing.T, name string, price int64, stock int, cats ...string) ProductView {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), ProductInput{
		Name:       name,
		Price:      decimal.NewFromInt(price),
		Stock:      stock,
		Categories: cats,
	})
	if err != nil {
		t.Fatalf("create product %q: %v", name, err)
	}
	return p
}

func (f *fixture) user(t *testing.T, login string) model.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Login:       login,
		DisplayName: strings.ToUpper(login),
		Email:       login + "@example.com",
		Password:    "secret1",
	})
	if err != nil {
		t.Fatalf("register %q: %v", login, err)
	}
	return u
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.MemoryStore.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return p.Stock
}

func validCard() PaymentInput {
	return PaymentInput{CardNumber: "4111 1111 1111 1111", CVC: "123", ExpirationDate: "12/30"}
}

func isValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ---- Tests ----

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"missing fields", RegisterInput{Login: "bob", Email: "bob@example.com", Password: "secret1"}},
		{"bad email", RegisterInput{Login: "bob", DisplayName: "Bob", Email: "bob.example.com", Password: "secret1"}},
		{"short password", RegisterInput{Login: "bob", DisplayName: "Bob", Email: "bob@example.com", Password: "123"}},
		{"long login", RegisterInput{Login: strings.Repeat("b", 61), DisplayName: "Bob", Email: "bob@example.com", Password: "secret1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Register(ctx, tc.in); !isValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegisterLoginSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	u, err := f.svc.Register(ctx, RegisterInput{Login: "alice", DisplayName: "Alice", Email: " Alice@Example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != model.RoleCustomer || u.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.PasswordHash == "secret1" {
		t.Fatalf("password stored in clear")
	}

	if _, err := f.svc.Register(ctx, RegisterInput{Login: "alice", DisplayName: "A", Email: "other@example.com", Password: "secret1"}); !isValidation(err) {
		t.Fatalf("expected duplicate to be rejected, got %v", err)
	}

	if _, err := f.svc.Login(ctx, "alice", "wrong-pass"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "nobody", "secret1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown login, got %v", err)
	}
	logged, err := f.svc.Login(ctx, "ALICE@example.com", "secret1")
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if logged.ID != u.ID {
		t.Fatalf("logged in as %s, want %s", logged.ID, u.ID)
	}

	sess, err := f.svc.StartSession(ctx, logged)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	cur, err := f.svc.CurrentUser(ctx, sess.ID)
	if err != nil || cur == nil || cur.ID != u.ID {
		t.Fatalf("current user: %v %v", cur, err)
	}

	if err := f.svc.Logout(ctx, sess.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	cur, err = f.svc.CurrentUser(ctx, sess.ID)
	if err != nil || cur != nil {
		t.Fatalf("expected no user after logout, got %v %v", cur, err)
	}
	if _, err := f.svc.Session(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty session, got %v", err)
	}
}

func TestAddToCartChecksStock(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "Laptops", nil)
	p := f.product(t, "Notebook", 1000, 3, cat.ID)
	u := f.user(t, "bob")

	cart, err := f.svc.AddToCart(ctx, u.ID, p.ID, 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if cart.TotalItems != 2 || !cart.TotalPrice.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("unexpected cart totals: %d %s", cart.TotalItems, cart.TotalPrice)
	}
	if cart.Items[0].Product.Categories[0].Name != "Laptops" {
		t.Fatalf("category name not resolved: %+v", cart.Items[0].Product.Categories)
	}

	_, err = f.svc.AddToCart(ctx, u.ID, p.ID, 2)
	var se *StockError
	if !errors.As(err, &se) {
		t.Fatalf("expected StockError, got %v", err)
	}
	if se.Available != 3 || se.CurrentInCart == nil || *se.CurrentInCart != 2 {
		t.Fatalf("unexpected stock error: %+v", se)
	}

	if _, err := f.svc.AddToCart(ctx, u.ID, p.ID, 4); !errors.As(err, &se) || se.CurrentInCart != nil {
		t.Fatalf("expected plain StockError, got %v", err)
	}
	if _, err := f.svc.AddToCart(ctx, u.ID, p.ID, 0); !isValidation(err) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
	if _, err := f.svc.AddToCart(ctx, u.ID, model.NewID(), 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	cart, err = f.svc.GetCart(ctx, u.ID)
	if err != nil || cart.TotalItems != 2 {
		t.Fatalf("cart changed by rejected adds: %+v %v", cart, err)
	}
}

func TestUpdateAndRemoveCartItems(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "Phones", nil)
	a := f.product(t, "Phone A", 100, 10, cat.ID)
	b := f.product(t, "Phone B", 200, 10, cat.ID)
	u := f.user(t, "carol")

	if _, err := f.svc.UpdateCartItem(ctx, u.ID, a.ID, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cart not found, got %v", err)
	}

	if _, err := f.svc.AddToCart(ctx, u.ID, a.ID, 1); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := f.svc.AddToCart(ctx, u.ID, b.ID, 1); err != nil {
		t.Fatalf("add b: %v", err)
	}
	cart, err := f.svc.UpdateCartItem(ctx, u.ID, a.ID, 5)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cart.TotalItems != 6 || !cart.TotalPrice.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("unexpected totals: %d %s", cart.TotalItems, cart.TotalPrice)
	}
	if _, err := f.svc.UpdateCartItem(ctx, u.ID, a.ID, 11); err == nil {
		t.Fatalf("expected stock error")
	}
	if _, err := f.svc.UpdateCartItem(ctx, u.ID, a.ID, -1); !isValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	cart, err = f.svc.UpdateCartItem(ctx, u.ID, a.ID, 0)
	if err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != b.ID {
		t.Fatalf("zero quantity should remove the line: %+v", cart.Items)
	}
	if _, err := f.svc.RemoveFromCart(ctx, u.ID, a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected item not found, got %v", err)
	}
	cart, err = f.svc.RemoveFromCart(ctx, u.ID, b.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(cart.Items) != 0 || cart.CartID != "" {
		t.Fatalf("cart should be gone: %+v", cart)
	}
	if err := f.svc.ClearCart(ctx, u.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found clearing a missing cart, got %v", err)
	}
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "Audio", nil)
	p := f.product(t, "Speaker", 2500, 5, cat.ID)
	u := f.user(t, "dave")

	if _, err := f.svc.CreateOrder(ctx, u.ID); !isValidation(err) {
		t.Fatalf("expected empty cart error, got %v", err)
	}

	if _, err := f.svc.AddToCart(ctx, u.ID, p.ID, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	o, err := f.svc.CreateOrder(ctx, u.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if o.Status != model.StatusNew || !o.TotalAmount.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected order: %+v", o)
	}
	if o.Items[0].Product == nil || o.Items[0].Product.Name != "Speaker" {
		t.Fatalf("product not attached: %+v", o.Items[0])
	}
	if cart, _ := f.svc.GetCart(ctx, u.ID); len(cart.Items) != 0 {
		t.Fatalf("cart not cleared after checkout")
	}
	if got := f.stock(t, p.ID); got != 5 {
		t.Fatalf("checkout must not touch stock, got %d", got)
	}

	other := f.user(t, "eve")
	if _, err := f.svc.GetOrder(ctx, other.ID, o.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign order should be hidden, got %v", err)
	}
	if _, err := f.svc.DeliverOrder(ctx, u.ID, o.ID); !isValidation(err) {
		t.Fatalf("unpaid order cannot be delivered, got %v", err)
	}

	bad := validCard()
	bad.CVC = "12"
	if _, err := f.svc.PayOrder(ctx, u.ID, o.ID, bad); !isValidation(err) {
		t.Fatalf("expected invalid CVC, got %v", err)
	}
	paid, err := f.svc.PayOrder(ctx, u.ID, o.ID, validCard())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != model.StatusPaid || paid.Payment.CardNumber != "************1111" {
		t.Fatalf("unexpected paid order: %+v", paid)
	}
	if got := f.stock(t, p.ID); got != 3 {
		t.Fatalf("stock after payment = %d, want 3", got)
	}
	if _, err := f.svc.PayOrder(ctx, u.ID, o.ID, validCard()); !isValidation(err) {
		t.Fatalf("double payment should fail, got %v", err)
	}

	delivered, err := f.svc.DeliverOrder(ctx, u.ID, o.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != model.StatusDelivered {
		t.Fatalf("status = %s", delivered.Status)
	}
	if _, err := f.svc.CancelOrder(ctx, u.ID, o.ID); !isValidation(err) {
		t.Fatalf("delivered order cannot be cancelled, got %v", err)
	}
	if _, err := f.svc.UpdateOrder(ctx, u.ID, o.ID, OrderUpdate{Delivery: &model.DeliveryInfo{Address: "x"}}); !isValidation(err) {
		t.Fatalf("delivered order cannot be edited, got %v", err)
	}
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "Kitchen", nil)
	p := f.product(t, "Kettle", 30, 4, cat.ID)
	u := f.user(t, "frank")

	t.Run("new order goes back to cart", func(t *testing.T) {
		if _, err := f.svc.AddToCart(ctx, u.ID, p.ID, 1); err != nil {
			t.Fatalf("add: %v", err)
		}
		o, err := f.svc.CreateOrder(ctx, u.ID)
		if err != nil {
			t.Fatalf("order: %v", err)
		}
		cancelled, err := f.svc.CancelOrder(ctx, u.ID, o.ID)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.Status != model.StatusCancelled {
			t.Fatalf("status = %s", cancelled.Status)
		}
		cart, err := f.svc.GetCart(ctx, u.ID)
		if err != nil || cart.TotalItems != 1 {
			t.Fatalf("cart not refilled: %+v %v", cart, err)
		}
		if _, err := f.svc.CancelOrder(ctx, u.ID, o.ID); !isValidation(err) {
			t.Fatalf("second cancel should fail, got %v", err)
		}
	})

	t.Run("paid order restocks", func(t *testing.T) {
		o, err := f.svc.CreateOrder(ctx, u.ID)
		if err != nil {
			t.Fatalf("order: %v", err)
		}
		if _, err := f.svc.PayOrder(ctx, u.ID, o.ID, validCard()); err != nil {
			t.Fatalf("pay: %v", err)
		}
		if got := f.stock(t, p.ID); got != 3 {
			t.Fatalf("stock after pay = %d", got)
		}
		if _, err := f.svc.CancelOrder(ctx, u.ID, o.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if got := f.stock(t, p.ID); got != 4 {
			t.Fatalf("stock after cancel = %d, want 4", got)
		}
		if cart, _ := f.svc.GetCart(ctx, u.ID); len(cart.Items) != 0 {
			t.Fatalf("paid cancellation must not refill the cart")
		}
	})
}

func TestCreateOrderReportsStockIssues(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "TV", nil)
	p := f.product(t, "OLED", 900, 5, cat.ID)
	u := f.user(t, "gina")

	if _, err := f.svc.AddToCart(ctx, u.ID, p.ID, 4); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.store.UpdateStock(ctx, p.ID, 1); err != nil {
		t.Fatalf("update stock: %v", err)
	}
	_, err := f.svc.CreateOrder(ctx, u.ID)
	var issues *StockIssuesError
	if !errors.As(err, &issues) {
		t.Fatalf("expected StockIssuesError, got %v", err)
	}
	want := []store.Shortage{{ProductID: p.ID, Name: "OLED", Requested: 4, Available: 1}}
	if diff := cmp.Diff(want, issues.Issues); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if cart, _ := f.svc.GetCart(ctx, u.ID); cart.TotalItems != 4 {
		t.Fatalf("cart must survive a failed checkout")
	}
}

func TestCreateOrderPropagatesStoreErrors(t *testing.T) {
	f := newFixture(t, Options{})
	boom := errors.New("connection reset")
	f.store.CreateOrderFn = func(ctx context.Context, userID string) (model.Order, error) {
		return model.Order{}, boom
	}
	if _, err := f.svc.CreateOrder(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestUpdateOrderRespectsStatus(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "Tablets", nil)
	a := f.product(t, "Tab A", 100, 10, cat.ID)
	b := f.product(t, "Tab B", 300, 10, cat.ID)
	u := f.user(t, "hank")

	if _, err := f.svc.AddToCart(ctx, u.ID, a.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	o, err := f.svc.CreateOrder(ctx, u.ID)
	if err != nil {
		t.Fatalf("order: %v", err)
	}

	updated, err := f.svc.UpdateOrder(ctx, u.ID, o.ID, OrderUpdate{
		Delivery: &model.DeliveryInfo{Address: " Main st 1 ", CourierNotes: "ring twice"},
		Items:    []model.CartItem{{ProductID: b.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("update new order: %v", err)
	}
	if updated.Delivery.Address != "Main st 1" {
		t.Fatalf("address = %q", updated.Delivery.Address)
	}
	if len(updated.Items) != 1 || updated.Items[0].Quantity != 2 || !updated.TotalAmount.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("items not replaced: %+v total %s", updated.Items, updated.TotalAmount)
	}
	if _, err := f.svc.UpdateOrder(ctx, u.ID, o.ID, OrderUpdate{Items: []model.CartItem{{ProductID: b.ID, Quantity: 11}}}); !isValidation(err) {
		t.Fatalf("expected stock validation, got %v", err)
	}

	if _, err := f.svc.PayOrder(ctx, u.ID, o.ID, validCard()); err != nil {
		t.Fatalf("pay: %v", err)
	}
	paid, err := f.svc.UpdateOrder(ctx, u.ID, o.ID, OrderUpdate{
		Delivery: &model.DeliveryInfo{Address: "Second st 2"},
		Items:    []model.CartItem{{ProductID: a.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("update paid order: %v", err)
	}
	if paid.Delivery.Address != "Second st 2" {
		t.Fatalf("delivery should be editable while paid")
	}
	if len(paid.Items) != 1 || paid.Items[0].ProductID != b.ID {
		t.Fatalf("items must not change once paid: %+v", paid.Items)
	}
	if paid.Payment.CardNumber != "************1111" {
		t.Fatalf("payment lost on update: %+v", paid.Payment)
	}
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "Watches", nil)
	p := f.product(t, "Watch", 400, 2, cat.ID)
	u := f.user(t, "ivan")

	if _, err := f.svc.AddToCart(ctx, u.ID, p.ID, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	o, err := f.svc.CreateOrder(ctx, u.ID)
	if err != nil {
		t.Fatalf("order: %v", err)
	}

	if _, err := f.svc.UpdateOrderStatus(ctx, o.ID, "bogus"); !isValidation(err) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := f.svc.MarkDelivered(ctx, o.ID); !isValidation(err) {
		t.Fatalf("NEW order cannot be delivered, got %v", err)
	}
	if _, err := f.svc.UpdateOrderStatus(ctx, o.ID, "NEW"); !isValidation(err) {
		t.Fatalf("NEW to NEW is not a transition, got %v", err)
	}

	paid, err := f.svc.UpdateOrderStatus(ctx, o.ID, "paid")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != model.StatusPaid || paid.User == nil || paid.User.Login != "ivan" {
		t.Fatalf("unexpected admin view: %+v", paid)
	}
	if got := f.stock(t, p.ID); got != 0 {
		t.Fatalf("stock = %d, want 0", got)
	}

	delivered, err := f.svc.MarkDelivered(ctx, o.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != model.StatusDelivered {
		t.Fatalf("status = %s", delivered.Status)
	}
	if _, err := f.svc.UpdateOrderStatus(ctx, o.ID, "CANCELLED"); !isValidation(err) {
		t.Fatalf("delivered order cannot be cancelled, got %v", err)
	}
	if _, err := f.svc.GetOrderAdmin(ctx, model.NewID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListOrdersPagination(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "Misc", nil)
	p := f.product(t, "Cable", 5, 100, cat.ID)
	u := f.user(t, "jane")
	other := f.user(t, "kate")

	var ids []string
	for i := 0; i < 3; i++ {
		if _, err := f.svc.AddToCart(ctx, u.ID, p.ID, 1); err != nil {
			t.Fatalf("add: %v", err)
		}
		o, err := f.svc.CreateOrder(ctx, u.ID)
		if err != nil {
			t.Fatalf("order: %v", err)
		}
		ids = append(ids, o.ID)
	}
	if _, err := f.svc.AddToCart(ctx, other.ID, p.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, other.ID); err != nil {
		t.Fatalf("order: %v", err)
	}
	if _, err := f.svc.PayOrder(ctx, u.ID, ids[0], validCard()); err != nil {
		t.Fatalf("pay: %v", err)
	}

	list, err := f.svc.ListOrders(ctx, u.ID, NewPage(1, 2, 10), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := PageInfo{TotalPages: 2, CurrentPage: 1, Total: 3}
	if diff := cmp.Diff(want, list.PageInfo); diff != "" {
		t.Fatalf("page info (-want +got):\n%s", diff)
	}
	if len(list.Orders) != 2 || list.Orders[0].ID != ids[2] {
		t.Fatalf("orders should come newest first: %+v", list.Orders)
	}

	paid, err := f.svc.ListOrders(ctx, u.ID, NewPage(1, 10, 10), "PAID")
	if err != nil || paid.Total != 1 || paid.Orders[0].ID != ids[0] {
		t.Fatalf("status filter: %+v %v", paid, err)
	}

	all, err := f.svc.ListAllOrders(ctx, NewPage(1, 10, 10), "", "")
	if err != nil || all.Total != 4 {
		t.Fatalf("admin list: %+v %v", all, err)
	}
	for _, o := range all.Orders {
		if o.User == nil {
			t.Fatalf("admin list must attach users")
		}
	}

	far, err := f.svc.ListOrders(ctx, u.ID, NewPage(math.MaxInt, 10, 10), "")
	if err != nil || len(far.Orders) != 0 || far.Total != 3 {
		t.Fatalf("page past the end should be empty: %+v %v", far, err)
	}
	if _, err := f.svc.ListAllOrders(ctx, NewPage(math.MaxInt, 1, 20), "", ""); err != nil {
		t.Fatalf("admin far page: %v", err)
	}
}

func TestListOrdersStoreError(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.ListOrdersFn = func(ctx context.Context, fl model.OrderFilter, limit, offset int) ([]model.Order, int, error) {
		return nil, 0, errors.New("db down")
	}
	if _, err := f.svc.ListOrders(context.Background(), "u", NewPage(1, 10, 10), ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewPage(t *testing.T) {
	cases := []struct {
		page, limit int
		want        Page
	}{
		{0, 0, Page{Number: 1, Limit: 10}},
		{3, 500, Page{Number: 3, Limit: 100}},
		{-2, 5, Page{Number: 1, Limit: 5}},
		{math.MaxInt, 10, Page{Number: math.MaxInt / 10, Limit: 10}},
	}
	for _, tc := range cases {
		if got := NewPage(tc.page, tc.limit, 10); got != tc.want {
			t.Fatalf("NewPage(%d, %d) = %+v, want %+v", tc.page, tc.limit, got, tc.want)
		}
	}
	if off := (Page{Number: 3, Limit: 20}).Offset(); off != 40 {
		t.Fatalf("offset = %d", off)
	}
	for _, limit := range []int{1, 7, 100} {
		if off := NewPage(math.MaxInt, limit, 10).Offset(); off < 0 {
			t.Fatalf("offset overflowed for limit %d: %d", limit, off)
		}
	}
	if info := (Page{Number: 1, Limit: 10}).Info(0); info.TotalPages != 0 {
		t.Fatalf("empty list should have zero pages, got %d", info.TotalPages)
	}
}

func TestCategoryTreeAndCycles(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	root := f.category(t, "Computers", nil)
	laptops := f.category(t, "Laptops", &root.ID)
	gaming := f.category(t, "Gaming", &laptops.ID)
	phones := f.category(t, "Phones", nil)

	tree, total, err := f.svc.CategoryTree(ctx)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	want := []model.CategoryNode{
		{Category: root, Children: []model.CategoryNode{
			{Category: laptops, Children: []model.CategoryNode{
				{Category: gaming, Children: []model.CategoryNode{}},
			}},
		}},
		{Category: phones, Children: []model.CategoryNode{}},
	}
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
	if total != 4 {
		t.Fatalf("total = %d", total)
	}

	if _, err := f.svc.UpdateCategory(ctx, root.ID, CategoryInput{ParentSet: true, ParentID: &gaming.ID}); !isValidation(err) {
		t.Fatalf("cycle should be rejected, got %v", err)
	}
	if _, err := f.svc.UpdateCategory(ctx, root.ID, CategoryInput{ParentSet: true, ParentID: &root.ID}); !isValidation(err) {
		t.Fatalf("self parent should be rejected, got %v", err)
	}
	missing := model.NewID()
	if _, err := f.svc.CreateCategory(ctx, CategoryInput{Name: "Orphan", ParentID: &missing}); !isValidation(err) {
		t.Fatalf("unknown parent should be rejected, got %v", err)
	}

	moved, err := f.svc.UpdateCategory(ctx, gaming.ID, CategoryInput{Name: "Gaming PCs", ParentSet: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if moved.Name != "Gaming PCs" || moved.ParentID != nil {
		t.Fatalf("unexpected category: %+v", moved)
	}
}

func TestSearchProductsIncludesDescendants(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	root := f.category(t, "Computers", nil)
	laptops := f.category(t, "Laptops", &root.ID)
	phones := f.category(t, "Phones", nil)
	f.product(t, "ThinkPad", 1000, 1, laptops.ID)
	f.product(t, "Pixel", 700, 1, phones.ID)

	got, err := f.svc.SearchProducts(ctx, "", []string{root.ID})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Name != "ThinkPad" {
		t.Fatalf("unexpected result: %+v", got)
	}

	got, err = f.svc.SearchProducts(ctx, "pix", nil)
	if err != nil || len(got) != 1 || got[0].Name != "Pixel" {
		t.Fatalf("text search: %+v %v", got, err)
	}

	got, err = f.svc.SearchProducts(ctx, "", []string{model.NewID()})
	if err != nil || len(got) != 0 {
		t.Fatalf("unknown category should match nothing: %+v %v", got, err)
	}
}

func TestProductValidation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "Any", nil)
	cases := []struct {
		name string
		in   ProductInput
	}{
		{"no name", ProductInput{Price: decimal.NewFromInt(1), Categories: []string{cat.ID}}},
		{"negative price", ProductInput{Name: "x", Price: decimal.NewFromInt(-1), Categories: []string{cat.ID}}},
		{"negative stock", ProductInput{Name: "x", Stock: -1, Categories: []string{cat.ID}}},
		{"no categories", ProductInput{Name: "x"}},
		{"unknown category", ProductInput{Name: "x", Categories: []string{model.NewID()}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.CreateProduct(ctx, tc.in); !isValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	p, err := f.svc.CreateProduct(ctx, ProductInput{Name: "Mouse", Price: decimal.RequireFromString("9.999"), Categories: []string{cat.ID, cat.ID}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !p.Price.Equal(decimal.RequireFromString("10")) || len(p.Categories) != 1 {
		t.Fatalf("unexpected product: %+v", p)
	}
}

// Admin edits read a product before writing it back. Stock moved by orders in
// between must survive the write.
func TestProductEditsKeepConcurrentStockMoves(t *testing.T) {
	edits := []struct {
		name string
		run  func(f *fixture, ctx context.Context, productID, otherCat string) error
	}{
		{"rename", func(f *fixture, ctx context.Context, id, _ string) error {
			name := "Renamed"
			_, err := f.svc.UpdateProduct(ctx, id, ProductPatch{Name: &name})
			return err
		}},
		{"move category", func(f *fixture, ctx context.Context, id, other string) error {
			_, err := f.svc.UpdateProduct(ctx, id, ProductPatch{Categories: []string{other}})
			return err
		}},
		{"upload images", func(f *fixture, ctx context.Context, id, _ string) error {
			_, err := f.svc.UploadImages(ctx, id, []Upload{png("a.png", "img")})
			return err
		}},
		{"delete all images", func(f *fixture, ctx context.Context, id, _ string) error {
			_, err := f.svc.DeleteAllImages(ctx, id)
			return err
		}},
	}
	movements := []struct {
		name      string
		paidFirst bool
		move      func(ms *store.MemoryStore, ctx context.Context, orderID, userID string) error
		want      int
	}{
		{"payment", false, func(ms *store.MemoryStore, ctx context.Context, orderID, userID string) error {
			_, err := ms.PayOrder(ctx, orderID, userID, model.PaymentInfo{CardNumber: "**** **** **** 1111", ExpirationDate: "12/30"})
			return err
		}, 3},
		{"cancellation", true, func(ms *store.MemoryStore, ctx context.Context, orderID, userID string) error {
			_, err := ms.CancelOrder(ctx, orderID, userID)
			return err
		}, 5},
	}

	for _, e := range edits {
		for _, m := range movements {
			t.Run(e.name+"/"+m.name, func(t *testing.T) {
				f := newFixture(t, Options{})
				ctx := context.Background()
				cat := f.category(t, "Cameras", nil)
				other := f.category(t, "Optics", nil)
				p := f.product(t, "Camera", 500, 5, cat.ID)
				u := f.user(t, "buyer")
				if _, err := f.svc.AddToCart(ctx, u.ID, p.ID, 2); err != nil {
					t.Fatalf("add: %v", err)
				}
				o, err := f.svc.CreateOrder(ctx, u.ID)
				if err != nil {
					t.Fatalf("order: %v", err)
				}
				if m.paidFirst {
					if _, err := f.svc.PayOrder(ctx, u.ID, o.ID, validCard()); err != nil {
						t.Fatalf("pay: %v", err)
					}
				}

				fired := false
				f.store.GetProductFn = func(ctx context.Context, id string) (model.Product, error) {
					stale, err := f.store.MemoryStore.GetProduct(ctx, id)
					if err != nil || fired || id != p.ID {
						return stale, err
					}
					fired = true
					if err := m.move(f.store.MemoryStore, ctx, o.ID, u.ID); err != nil {
						t.Fatalf("%s: %v", m.name, err)
					}
					return stale, nil
				}

				if err := e.run(f, ctx, p.ID, other.ID); err != nil {
					t.Fatalf("%s: %v", e.name, err)
				}
				if !fired {
					t.Fatalf("edit never read the product")
				}
				if got := f.stock(t, p.ID); got != m.want {
					t.Fatalf("stock = %d, want %d", got, m.want)
				}
			})
		}
	}
}

func TestUpdateProductStockOnly(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "Any", nil)
	p := f.product(t, "Cable", 5, 3, cat.ID)

	neg := -2
	if _, err := f.svc.UpdateProduct(ctx, p.ID, ProductPatch{Stock: &neg}); !isValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	n := 40
	got, err := f.svc.UpdateProduct(ctx, p.ID, ProductPatch{Stock: &n})
	if err != nil {
		t.Fatalf("update stock: %v", err)
	}
	if got.Stock != 40 || got.Name != "Cable" {
		t.Fatalf("unexpected product: %+v", got)
	}
	if _, err := f.svc.UpdateProduct(ctx, model.NewID(), ProductPatch{Stock: &n}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetProductStoreError(t *testing.T) {
	f := newFixture(t, Options{})
	boom := errors.New("timeout")
	f.store.GetProductFn = func(ctx context.Context, id string) (model.Product, error) {
		return model.Product{}, boom
	}
	_, err := f.svc.GetProduct(context.Background(), "p1")
	if !errors.Is(err, boom) || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected raw store error, got %v", err)
	}
}

func png(name string, body string) Upload {
	return Upload{Filename: name, ContentType: "image/png", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestImagesFollowPrimaryCategory(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.category(t, "A", nil)
	b := f.category(t, "B", nil)
	p := f.product(t, "Camera", 500, 1, a.ID)

	res, err := f.svc.UploadImages(ctx, p.ID, []Upload{png("front.PNG", "one"), png("back.png", "two")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(res.Files) != 2 || len(res.Product.Images) != 2 {
		t.Fatalf("unexpected upload result: %+v", res)
	}
	first := res.Files[0]
	if !strings.HasSuffix(first.Filename, ".png") || first.OriginalName != "front.PNG" {
		t.Fatalf("unexpected file: %+v", first)
	}
	if first.URL != "/uploads/"+a.ID+"/"+p.ID+"/"+first.Filename {
		t.Fatalf("url = %s", first.URL)
	}

	updated, err := f.svc.UpdateProduct(ctx, p.ID, ProductPatch{Categories: []string{b.ID, a.ID}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Images[0] != "/uploads/"+b.ID+"/"+p.ID+"/"+first.Filename {
		t.Fatalf("url not rewritten: %v", updated.Images)
	}
	if _, err := os.Stat(filepath.Join(f.dir, b.ID, p.ID, first.Filename)); err != nil {
		t.Fatalf("file not moved: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, a.ID, p.ID)); !os.IsNotExist(err) {
		t.Fatalf("old directory still there: %v", err)
	}

	list, err := f.svc.ListImages(ctx, p.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %+v %v", list, err)
	}

	after, err := f.svc.DeleteImage(ctx, p.ID, first.Filename)
	if err != nil {
		t.Fatalf("delete image: %v", err)
	}
	if len(after.Images) != 1 {
		t.Fatalf("images after delete: %v", after.Images)
	}
	if _, err := f.svc.DeleteImage(ctx, p.ID, first.Filename); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected file not found, got %v", err)
	}
	if _, err := f.svc.DeleteImage(ctx, p.ID, "../x"); !isValidation(err) {
		t.Fatalf("expected bad name, got %v", err)
	}

	cleared, err := f.svc.DeleteAllImages(ctx, p.ID)
	if err != nil || len(cleared.Images) != 0 {
		t.Fatalf("delete all: %+v %v", cleared, err)
	}
}

func TestUploadImagesRejectsBadFiles(t *testing.T) {
	f := newFixture(t, Options{MaxUploadSize: 4, MaxUploadFiles: 2})
	ctx := context.Background()
	cat := f.category(t, "C", nil)
	p := f.product(t, "Lamp", 20, 1, cat.ID)

	cases := []struct {
		name  string
		files []Upload
	}{
		{"none", nil},
		{"too many", []Upload{png("a.png", "a"), png("b.png", "b"), png("c.png", "c")}},
		{"not an image", []Upload{{Filename: "a.txt", ContentType: "text/plain", Body: strings.NewReader("a")}}},
		{"declared too large", []Upload{png("a.png", "12345")}},
		{"actually too large", []Upload{{Filename: "a.png", ContentType: "image/png", Size: 1, Body: bytes.NewReader([]byte("123456789"))}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.UploadImages(ctx, p.ID, tc.files); !isValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if names, _ := f.svc.ListImages(ctx, p.ID); len(names) != 0 {
		t.Fatalf("rejected uploads left files: %v", names)
	}
}

func TestDeleteProductRemovesImagesAndCartLines(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cat := f.category(t, "D", nil)
	p := f.product(t, "Fan", 50, 5, cat.ID)
	u := f.user(t, "leo")

	if _, err := f.svc.UploadImages(ctx, p.ID, []Upload{png("fan.png", "x")}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := f.svc.AddToCart(ctx, u.ID, p.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.svc.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, cat.ID, p.ID)); !os.IsNotExist(err) {
		t.Fatalf("image dir still there: %v", err)
	}
	if cart, _ := f.svc.GetCart(ctx, u.ID); len(cart.Items) != 0 {
		t.Fatalf("deleted product still in cart: %+v", cart.Items)
	}
	if err := f.svc.DeleteProduct(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteCategoryMovesProducts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	root := f.category(t, "Root", nil)
	child := f.category(t, "Child", &root.ID)
	p := f.product(t, "Drill", 80, 1, child.ID)
	if _, err := f.svc.UploadImages(ctx, p.ID, []Upload{png("drill.png", "x")}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	deleted, err := f.svc.DeleteCategory(ctx, child.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != child.ID {
		t.Fatalf("deleted %s", deleted.ID)
	}
	got, err := f.svc.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Categories) != 1 || got.Categories[0].ID != root.ID {
		t.Fatalf("product should fall back to parent: %+v", got.Categories)
	}
	if !strings.HasPrefix(got.Images[0], "/uploads/"+root.ID+"/") {
		t.Fatalf("image url not moved: %v", got.Images)
	}
	if _, err := f.svc.DeleteCategory(ctx, child.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateUserRole(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	admin := f.user(t, "root")
	u := f.user(t, "mike")

	if _, err := f.svc.UpdateUserRole(ctx, admin.ID, admin.ID, "CUSTOMER"); !isValidation(err) {
		t.Fatalf("self role change should fail, got %v", err)
	}
	if _, err := f.svc.UpdateUserRole(ctx, admin.ID, u.ID, "owner"); !isValidation(err) {
		t.Fatalf("unknown role should fail, got %v", err)
	}
	if _, err := f.svc.UpdateUserRole(ctx, admin.ID, model.NewID(), "ADMIN"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	got, err := f.svc.UpdateUserRole(ctx, admin.ID, u.ID, "admin")
	if err != nil || got.Role != model.RoleAdmin {
		t.Fatalf("promote: %+v %v", got, err)
	}

	list, err := f.svc.ListUsers(ctx, NewPage(1, 10, 10), "MIKE")
	if err != nil || list.Total != 1 || list.Users[0].ID != u.ID {
		t.Fatalf("search users: %+v %v", list, err)
	}
}

func TestCreateAdminAndSeed(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	in := RegisterInput{Login: "admin", DisplayName: "Admin", Email: "admin@example.com", Password: "admin123"}

	created, err := f.svc.CreateAdmin(ctx, in)
	if err != nil || !created {
		t.Fatalf("create admin: %v %v", created, err)
	}
	created, err = f.svc.CreateAdmin(ctx, RegisterInput{Login: "admin2", DisplayName: "A", Email: "a2@example.com", Password: "admin123"})
	if err != nil || created {
		t.Fatalf("second admin should be skipped: %v %v", created, err)
	}
	u, err := f.svc.Login(ctx, "admin", "admin123")
	if err != nil || !u.IsAdmin() {
		t.Fatalf("admin login: %+v %v", u, err)
	}

	res, err := f.svc.Seed(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Products != len(seedProducts) || res.Categories == 0 {
		t.Fatalf("unexpected seed result: %+v", res)
	}
	products, err := f.svc.ListProducts(ctx)
	if err != nil || len(products) != len(seedProducts) {
		t.Fatalf("products after seed: %d %v", len(products), err)
	}
	for _, c := range products[0].Categories {
		if c.Name == "" {
			t.Fatalf("seeded product references unknown category: %+v", products[0])
		}
	}

	up, err := f.svc.UploadImages(ctx, products[0].ID, []Upload{png("front.png", "img")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	imgDir := filepath.Join(f.dir, products[0].Categories[0].ID, products[0].ID)
	if _, err := os.Stat(filepath.Join(imgDir, up.Files[0].Filename)); err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}

	again, err := f.svc.Seed(ctx)
	if err != nil || again != res {
		t.Fatalf("reseed should replace the catalog: %+v %v", again, err)
	}
	if _, err := os.Stat(imgDir); !os.IsNotExist(err) {
		t.Fatalf("reseed left old product images behind: %v", err)
	}
	tree, total, _ := f.svc.CategoryTree(ctx)
	if total != res.Categories || len(tree) != len(seedCategories) {
		t.Fatalf("reseed duplicated categories: %d roots, %d total", len(tree), total)
	}
}
