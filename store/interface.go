package store

import (
	"context"

	"el-store/model"
)

// Store is the persistence boundary of the storefront. Every operation that
// touches more than one row runs atomically.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u model.User) error
	GetUserByID(ctx context.Context, id string) (model.User, error)
	GetUserByLoginOrEmail(ctx context.Context, loginOrEmail string) (model.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error)
	UserExists(ctx context.Context, login, email string) (bool, error)
	AdminExists(ctx context.Context) (bool, error)
	ListUsers(ctx context.Context, search string, limit, offset int) ([]model.User, int, error)
	UpdateUserRole(ctx context.Context, id string, role model.Role) (model.User, error)

	// Sessions
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, id string) (model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// Categories
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id string) (model.Category, error)
	CreateCategory(ctx context.Context, c model.Category) error
	UpdateCategory(ctx context.Context, c model.Category) error
	DeleteCategory(ctx context.Context, id string) (model.Category, error)

	// Products
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) error
	// UpdateProduct writes name, description, price and categories. Stock only
	// moves through UpdateStock and the order transactions, images through
	// SetProductImages.
	UpdateProduct(ctx context.Context, p model.Product) error
	SetProductImages(ctx context.Context, id string, images []string) error
	UpdateStock(ctx context.Context, productID string, newStock int) error
	DeleteProduct(ctx context.Context, id string) error
	DeleteCatalog(ctx context.Context) error

	// Carts
	GetCart(ctx context.Context, userID string) (model.Cart, error)
	UpdateCart(ctx context.Context, userID string, fn func(*model.Cart) error) (model.Cart, error)
	DeleteCart(ctx context.Context, userID string) error

	// Orders
	CreateOrderFromCart(ctx context.Context, userID string) (model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter, limit, offset int) ([]model.Order, int, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	GetOrderForUser(ctx context.Context, id, userID string) (model.Order, error)
	UpdateOrderDetails(ctx context.Context, o model.Order, expect model.OrderStatus) error
	PayOrder(ctx context.Context, id, userID string, payment model.PaymentInfo) (model.Order, error)
	CancelOrder(ctx context.Context, id, userID string) (model.Order, error)
	SetOrderStatus(ctx context.Context, id string, from, to model.OrderStatus) (model.Order, error)

	Close() error
}
