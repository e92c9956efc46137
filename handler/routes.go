package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"el-store/media"
	"el-store/service"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RegisterRoutes registers all API routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	// Auth
	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", h.Register).Methods("POST")
	auth.HandleFunc("/login", h.Login).Methods("POST")
	auth.Handle("/logout", h.requireAuth(http.HandlerFunc(h.Logout))).Methods("POST")
	auth.HandleFunc("/me", h.Me).Methods("GET")

	// Products
	products := api.PathPrefix("/product").Subrouter()
	products.HandleFunc("/all", h.ListProducts).Methods("GET")
	products.HandleFunc("/search", h.SearchProducts).Methods("GET")
	products.HandleFunc("/{productId}", h.GetProduct).Methods("GET")

	// Cart
	cart := api.PathPrefix("/cart").Subrouter()
	cart.Use(h.requireAuth)
	cart.HandleFunc("", h.GetCart).Methods("GET")
	cart.HandleFunc("", h.AddToCart).Methods("POST")
	cart.HandleFunc("", h.ClearCart).Methods("DELETE")
	cart.HandleFunc("/{productId}", h.UpdateCartItem).Methods("PUT")
	cart.HandleFunc("/{productId}", h.RemoveFromCart).Methods("DELETE")

	// Orders
	orders := api.PathPrefix("/orders").Subrouter()
	orders.Use(h.requireAuth)
	orders.HandleFunc("", h.CreateOrder).Methods("POST")
	orders.HandleFunc("", h.ListOrders).Methods("GET")
	orders.HandleFunc("/{orderId}", h.GetOrder).Methods("GET")
	orders.HandleFunc("/{orderId}", h.UpdateOrder).Methods("PUT")
	orders.HandleFunc("/{orderId}/pay", h.PayOrder).Methods("POST")
	orders.HandleFunc("/{orderId}/cancel", h.CancelOrder).Methods("POST")
	orders.HandleFunc("/{orderId}/deliver", h.DeliverOrder).Methods("POST")

	// Admin
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Handle("/users", h.admin(h.ListUsers)).Methods("GET")
	admin.Handle("/users/{userId}/role", h.admin(h.UpdateUserRole)).Methods("PATCH")
	admin.HandleFunc("/categories/tree", h.CategoryTree).Methods("GET")
	admin.Handle("/categories", h.admin(h.CreateCategory)).Methods("POST")
	admin.Handle("/categories/{categoryId}", h.admin(h.UpdateCategory)).Methods("PUT")
	admin.Handle("/categories/{categoryId}", h.admin(h.DeleteCategory)).Methods("DELETE")
	admin.Handle("/products", h.admin(h.ListProducts)).Methods("GET")
	admin.Handle("/products", h.admin(h.CreateProduct)).Methods("POST")
	admin.Handle("/products/{productId}", h.admin(h.GetProduct)).Methods("GET")
	admin.Handle("/products/{productId}", h.admin(h.UpdateProduct)).Methods("PUT")
	admin.Handle("/products/{productId}", h.admin(h.DeleteProduct)).Methods("DELETE")
	admin.Handle("/orders", h.admin(h.ListAllOrders)).Methods("GET")
	admin.Handle("/orders/{orderId}", h.admin(h.GetOrderAdmin)).Methods("GET")
	admin.Handle("/orders/{orderId}/status", h.admin(h.UpdateOrderStatus)).Methods("PUT")
	admin.Handle("/orders/{orderId}/deliver", h.admin(h.MarkDelivered)).Methods("POST")

	// Files
	files := api.PathPrefix("/files").Subrouter()
	files.Handle("/products/{productId}/upload", h.admin(h.UploadImages)).Methods("POST")
	files.HandleFunc("/products/{productId}", h.ListImages).Methods("GET")
	files.Handle("/products/{productId}/{filename}", h.admin(h.DeleteImage)).Methods("DELETE")
	files.Handle("/products/{productId}", h.admin(h.DeleteAllImages)).Methods("DELETE")
}

// NewRouter builds the complete HTTP handler: API routes, uploaded images,
// the client build when configured, CORS, panic recovery and request logs.
func NewRouter(svc service.ServiceInterface, log *zap.Logger, opts Options) http.Handler {
	h := NewHandler(svc, log, opts)

	r := mux.NewRouter()
	r.Use(h.attachSession)
	h.RegisterRoutes(r)

	if h.opts.UploadsDir != "" {
		files := http.StripPrefix(media.URLPrefix, http.FileServer(http.Dir(h.opts.UploadsDir)))
		r.PathPrefix(media.URLPrefix + "/").Handler(noListing(files)).Methods("GET", "HEAD")
	}
	if h.opts.StaticDir != "" {
		r.PathPrefix("/").Handler(h.spa(h.opts.StaticDir))
	}
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{h.opts.AllowedOrigin}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Requested-With"}),
		handlers.AllowCredentials(),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(h.log)),
		handlers.PrintRecoveryStack(true),
	)
	return h.logRequests(recovery(cors(r)))
}

func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			writeErr(w, http.StatusNotFound, "file not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// spa serves files of the client build and falls back to index.html so that
// client-side routes survive a reload. Unknown API paths still get a JSON 404.
func (h *Handler) spa(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			h.notFound(w, r)
			return
		}
		p := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			fs.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}
