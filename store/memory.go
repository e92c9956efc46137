package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"el-store/model"
)

// MemoryStore keeps everything in process memory. It backs the server when
// no database is configured and the service and handler tests.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]model.User
	sessions   map[string]model.Session
	categories map[string]model.Category
	products   map[string]model.Product
	carts      map[string]model.Cart // by user id
	orders     map[string]model.Order
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]model.User),
		sessions:   make(map[string]model.Session),
		categories: make(map[string]model.Category),
		products:   make(map[string]model.Product),
		carts:      make(map[string]model.Cart),
		orders:     make(map[string]model.Order),
	}
}

func (m *MemoryStore) Close() error { return nil }

func cloneStrings(s []string) []string {
	return append([]string{}, s...)
}

func cloneProduct(p model.Product) model.Product {
	p.Images = cloneStrings(p.Images)
	p.Categories = cloneStrings(p.Categories)
	return p
}

func cloneCart(c model.Cart) model.Cart {
	c.Items = append([]model.CartItem{}, c.Items...)
	return c
}

func cloneOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem{}, o.Items...)
	if o.Delivery.DeliveryTime != nil {
		t := *o.Delivery.DeliveryTime
		o.Delivery.DeliveryTime = &t
	}
	return o
}

func cloneCategory(c model.Category) model.Category {
	if c.ParentID != nil {
		p := *c.ParentID
		c.ParentID = &p
	}
	return c
}

// sortedKeys returns map keys in id order, which is creation order for
// ObjectIDs.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Users

func (m *MemoryStore) CreateUser(ctx context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if other.Login == u.Login || other.Email == u.Email {
			return ErrDuplicate
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) GetUserByLoginOrEmail(ctx context.Context, loginOrEmail string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range sortedKeys(m.users) {
		u := m.users[id]
		if u.Login == loginOrEmail || u.Email == loginOrEmail {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *MemoryStore) GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *MemoryStore) UserExists(ctx context.Context, login, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Login == login || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) AdminExists(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.IsAdmin() {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListUsers(ctx context.Context, search string, limit, offset int) ([]model.User, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(search)
	matched := []model.User{}
	for _, u := range m.users {
		if needle == "" ||
			strings.Contains(strings.ToLower(u.Login), needle) ||
			strings.Contains(strings.ToLower(u.DisplayName), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return page(matched, limit, offset), len(matched), nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func (m *MemoryStore) UpdateUserRole(ctx context.Context, id string, role model.Role) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	for sid, s := range m.sessions {
		if s.UserID == id {
			s.Role = role
			m.sessions[sid] = s
		}
	}
	return u, nil
}

// Sessions

func (m *MemoryStore) CreateSession(ctx context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var n int64
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Categories

func (m *MemoryStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Category, 0, len(m.categories))
	for _, id := range sortedKeys(m.categories) {
		out = append(out, cloneCategory(m.categories[id]))
	}
	return out, nil
}

func (m *MemoryStore) GetCategory(ctx context.Context, id string) (model.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok {
		return model.Category{}, ErrNotFound
	}
	return cloneCategory(c), nil
}

func (m *MemoryStore) CreateCategory(ctx context.Context, c model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.ID]; ok {
		return ErrDuplicate
	}
	m.categories[c.ID] = cloneCategory(c)
	return nil
}

func (m *MemoryStore) UpdateCategory(ctx context.Context, c model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.ID]; !ok {
		return ErrNotFound
	}
	m.categories[c.ID] = cloneCategory(c)
	return nil
}

func (m *MemoryStore) DeleteCategory(ctx context.Context, id string) (model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return model.Category{}, ErrNotFound
	}
	for cid, child := range m.categories {
		if child.ParentID != nil && *child.ParentID == id {
			child.ParentID = cloneCategory(c).ParentID
			m.categories[cid] = child
		}
	}
	for pid, p := range m.products {
		kept := make([]string, 0, len(p.Categories))
		removed := false
		for _, cat := range p.Categories {
			if cat == id {
				removed = true
				continue
			}
			kept = append(kept, cat)
		}
		if !removed {
			continue
		}
		if len(kept) == 0 && c.ParentID != nil {
			kept = []string{*c.ParentID}
		}
		p.Categories = kept
		m.products[pid] = p
	}
	delete(m.categories, id)
	return c, nil
}

// Products

func (m *MemoryStore) ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(f.CategoryIDs))
	for _, id := range f.CategoryIDs {
		wanted[id] = true
	}
	needle := strings.ToLower(f.Search)
	out := []model.Product{}
	for _, id := range sortedKeys(m.products) {
		p := m.products[id]
		if len(wanted) > 0 {
			hit := false
			for _, cat := range p.Categories {
				if wanted[cat] {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	return out, nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return model.Product{}, ErrNotFound
	}
	return cloneProduct(p), nil
}

func (m *MemoryStore) GetProductsByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool, len(ids))
	out := []model.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, p model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; ok {
		return ErrDuplicate
	}
	m.products[p.ID] = cloneProduct(p)
	return nil
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, p model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.Price = p.Price
	cur.Categories = cloneStrings(p.Categories)
	m.products[p.ID] = cur
	return nil
}

func (m *MemoryStore) SetProductImages(ctx context.Context, id string, images []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Images = append([]string{}, images...)
	m.products[id] = p
	return nil
}

func (m *MemoryStore) UpdateStock(ctx context.Context, productID string, newStock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.Stock = newStock
	m.products[productID] = p
	return nil
}

func (m *MemoryStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	for uid, c := range m.carts {
		if c.Remove(id) {
			if len(c.Items) == 0 {
				delete(m.carts, uid)
			} else {
				m.carts[uid] = c
			}
		}
	}
	return nil
}

func (m *MemoryStore) DeleteCatalog(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = make(map[string]model.Product)
	m.categories = make(map[string]model.Category)
	m.carts = make(map[string]model.Cart)
	return nil
}

// Carts

func (m *MemoryStore) GetCart(ctx context.Context, userID string) (model.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return model.Cart{}, ErrNotFound
	}
	return cloneCart(c), nil
}

func (m *MemoryStore) UpdateCart(ctx context.Context, userID string, fn func(*model.Cart) error) (model.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if ok {
		c = cloneCart(c)
	} else {
		c = model.Cart{UserID: userID, Items: []model.CartItem{}}
	}
	if err := fn(&c); err != nil {
		return model.Cart{}, err
	}
	m.saveCart(&c)
	return cloneCart(c), nil
}

// saveCart stores c, or drops it when it has no items. Callers hold mu.
func (m *MemoryStore) saveCart(c *model.Cart) {
	if len(c.Items) == 0 {
		delete(m.carts, c.UserID)
		c.ID = ""
		c.Items = []model.CartItem{}
		return
	}
	if c.ID == "" {
		c.ID = model.NewID()
	}
	m.carts[c.UserID] = cloneCart(*c)
}

func (m *MemoryStore) DeleteCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[userID]; !ok {
		return ErrNotFound
	}
	delete(m.carts, userID)
	return nil
}

// Orders

func (m *MemoryStore) CreateOrderFromCart(ctx context.Context, userID string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok || len(c.Items) == 0 {
		return model.Order{}, ErrEmptyCart
	}
	items := make([]model.OrderItem, 0, len(c.Items))
	var short []Shortage
	for _, it := range c.Items {
		p, ok := m.products[it.ProductID]
		if !ok {
			continue
		}
		if p.Stock < it.Quantity {
			short = append(short, Shortage{ProductID: p.ID, Name: p.Name, Requested: it.Quantity, Available: p.Stock})
		}
		items = append(items, model.OrderItem{ProductID: p.ID, Quantity: it.Quantity, Price: p.Price})
	}
	if len(items) == 0 {
		return model.Order{}, ErrEmptyCart
	}
	if len(short) > 0 {
		return model.Order{}, &ShortageError{Items: short}
	}
	now := time.Now().UTC()
	o := model.Order{
		ID:          model.NewID(),
		UserID:      userID,
		Items:       items,
		Status:      model.StatusNew,
		TotalAmount: model.ItemsTotal(items),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.orders[o.ID] = cloneOrder(o)
	delete(m.carts, userID)
	return o, nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, f model.OrderFilter, limit, offset int) ([]model.Order, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := []model.Order{}
	for _, o := range m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return page(matched, limit, offset), len(matched), nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) GetOrderForUser(ctx context.Context, id, userID string) (model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return model.Order{}, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) UpdateOrderDetails(ctx context.Context, o model.Order, expect model.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != expect {
		return ErrStatusConflict
	}
	cur.Items = o.Items
	cur.Delivery = o.Delivery
	cur.Payment = o.Payment
	cur.TotalAmount = o.TotalAmount
	cur.UpdatedAt = time.Now().UTC()
	m.orders[o.ID] = cloneOrder(cur)
	return nil
}

// ownedOrder looks up an order, restricted to userID unless it is empty.
// Callers hold mu.
func (m *MemoryStore) ownedOrder(id, userID string) (model.Order, error) {
	o, ok := m.orders[id]
	if !ok || (userID != "" && o.UserID != userID) {
		return model.Order{}, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) PayOrder(ctx context.Context, id, userID string, payment model.PaymentInfo) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.ownedOrder(id, userID)
	if err != nil {
		return model.Order{}, err
	}
	if !o.Status.CanPay() {
		return model.Order{}, ErrStatusConflict
	}
	need := map[string]int{}
	for _, it := range o.Items {
		need[it.ProductID] += it.Quantity
	}
	var short []Shortage
	for _, it := range o.Items {
		p, ok := m.products[it.ProductID]
		if !ok || p.Stock < need[it.ProductID] {
			short = append(short, Shortage{ProductID: it.ProductID, Name: p.Name, Requested: it.Quantity, Available: p.Stock})
		}
	}
	if len(short) > 0 {
		return model.Order{}, &ShortageError{Items: short}
	}
	for _, it := range o.Items {
		p := m.products[it.ProductID]
		p.Stock -= it.Quantity
		m.products[it.ProductID] = p
	}
	if payment.CardNumber != "" {
		o.Payment = payment
	}
	o.Status = model.StatusPaid
	o.UpdatedAt = time.Now().UTC()
	m.orders[id] = cloneOrder(o)
	return o, nil
}

func (m *MemoryStore) CancelOrder(ctx context.Context, id, userID string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.ownedOrder(id, userID)
	if err != nil {
		return model.Order{}, err
	}
	switch o.Status {
	case model.StatusPaid:
		for _, it := range o.Items {
			if p, ok := m.products[it.ProductID]; ok {
				p.Stock += it.Quantity
				m.products[it.ProductID] = p
			}
		}
	case model.StatusNew:
		c, ok := m.carts[o.UserID]
		if ok {
			c = cloneCart(c)
		} else {
			c = model.Cart{UserID: o.UserID, Items: []model.CartItem{}}
		}
		for _, it := range o.Items {
			if _, ok := m.products[it.ProductID]; ok {
				c.Add(it.ProductID, it.Quantity)
			}
		}
		m.saveCart(&c)
	default:
		return model.Order{}, ErrStatusConflict
	}
	o.Status = model.StatusCancelled
	o.UpdatedAt = time.Now().UTC()
	m.orders[id] = cloneOrder(o)
	return o, nil
}

func (m *MemoryStore) SetOrderStatus(ctx context.Context, id string, from, to model.OrderStatus) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	if o.Status != from {
		return model.Order{}, ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	m.orders[id] = o
	return cloneOrder(o), nil
}
