package service

import (
	"context"

	"el-store/model"
)

type ServiceInterface interface {
	// Auth
	Register(ctx context.Context, in RegisterInput) (model.User, error)
	Login(ctx context.Context, login, password string) (model.User, error)
	StartSession(ctx context.Context, u model.User) (model.Session, error)
	Session(ctx context.Context, id string) (model.Session, error)
	Logout(ctx context.Context, id string) error
	CurrentUser(ctx context.Context, sessionID string) (*model.User, error)
	CleanupSessions(ctx context.Context) (int64, error)

	// Catalog
	ListProducts(ctx context.Context) ([]ProductView, error)
	GetProduct(ctx context.Context, id string) (ProductView, error)
	SearchProducts(ctx context.Context, q string, categoryIDs []string) ([]ProductView, error)
	CategoryTree(ctx context.Context) ([]model.CategoryNode, int, error)

	// Cart
	GetCart(ctx context.Context, userID string) (CartView, error)
	AddToCart(ctx context.Context, userID, productID string, qty int) (CartView, error)
	UpdateCartItem(ctx context.Context, userID, productID string, qty int) (CartView, error)
	RemoveFromCart(ctx context.Context, userID, productID string) (CartView, error)
	ClearCart(ctx context.Context, userID string) error

	// Orders
	CreateOrder(ctx context.Context, userID string) (OrderView, error)
	ListOrders(ctx context.Context, userID string, page Page, status string) (OrderList, error)
	GetOrder(ctx context.Context, userID, id string) (OrderView, error)
	UpdateOrder(ctx context.Context, userID, id string, in OrderUpdate) (OrderView, error)
	PayOrder(ctx context.Context, userID, id string, in PaymentInput) (OrderView, error)
	CancelOrder(ctx context.Context, userID, id string) (OrderView, error)
	DeliverOrder(ctx context.Context, userID, id string) (OrderView, error)

	// Admin
	ListUsers(ctx context.Context, page Page, search string) (UserList, error)
	UpdateUserRole(ctx context.Context, actorID, userID, role string) (model.User, error)
	CreateCategory(ctx context.Context, in CategoryInput) (model.Category, error)
	UpdateCategory(ctx context.Context, id string, in CategoryInput) (model.Category, error)
	DeleteCategory(ctx context.Context, id string) (model.Category, error)
	CreateProduct(ctx context.Context, in ProductInput) (ProductView, error)
	UpdateProduct(ctx context.Context, id string, patch ProductPatch) (ProductView, error)
	DeleteProduct(ctx context.Context, id string) error
	ListAllOrders(ctx context.Context, page Page, status, userID string) (OrderList, error)
	GetOrderAdmin(ctx context.Context, id string) (OrderView, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (OrderView, error)
	MarkDelivered(ctx context.Context, id string) (OrderView, error)

	// Images
	UploadImages(ctx context.Context, productID string, files []Upload) (UploadResult, error)
	ListImages(ctx context.Context, productID string) ([]ImageFile, error)
	DeleteImage(ctx context.Context, productID, filename string) (ProductImages, error)
	DeleteAllImages(ctx context.Context, productID string) (ProductImages, error)

	// Bootstrap
	CreateAdmin(ctx context.Context, in RegisterInput) (bool, error)
	Seed(ctx context.Context) (SeedResult, error)
}
