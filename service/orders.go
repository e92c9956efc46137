package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"el-store/model"
	"el-store/store"

	"go.uber.org/zap"
)

var (
	cardNumberRe = regexp.MustCompile(`^\d{16}$`)
	cvcRe        = regexp.MustCompile(`^\d{3}$`)
	expiryRe     = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
)

// PaymentInput is card data as entered by the customer. The CVC is checked
// and then dropped.
type PaymentInput struct {
	CardNumber     string `json:"cardNumber"`
	CVC            string `json:"cvc"`
	ExpirationDate string `json:"expirationDate"`
}

func (in PaymentInput) validate() (model.PaymentInfo, error) {
	number := strings.ReplaceAll(strings.TrimSpace(in.CardNumber), " ", "")
	switch {
	case !cardNumberRe.MatchString(number):
		return model.PaymentInfo{}, invalid("invalid card number")
	case !cvcRe.MatchString(strings.TrimSpace(in.CVC)):
		return model.PaymentInfo{}, invalid("invalid CVC")
	case !expiryRe.MatchString(strings.TrimSpace(in.ExpirationDate)):
		return model.PaymentInfo{}, invalid("invalid expiration date")
	}
	return model.PaymentInfo{
		CardNumber:     model.MaskCard(number),
		ExpirationDate: strings.TrimSpace(in.ExpirationDate),
	}, nil
}

// OrderUpdate holds the customer-editable parts of an order. Nil fields are
// left alone; fields the order status does not allow are ignored.
type OrderUpdate struct {
	Delivery *model.DeliveryInfo `json:"deliveryInfo"`
	Payment  *PaymentInput       `json:"paymentInfo"`
	Items    []model.CartItem    `json:"items"`
}

// CreateOrder turns the user's cart into a NEW order.
func (s *Service) CreateOrder(ctx context.Context, userID string) (OrderView, error) {
	o, err := s.store.CreateOrderFromCart(ctx, userID)
	if err != nil {
		var se *store.ShortageError
		switch {
		case errors.Is(err, store.ErrEmptyCart):
			return OrderView{}, invalid("cart is empty")
		case errors.As(err, &se):
			return OrderView{}, &StockIssuesError{Issues: se.Items}
		}
		return OrderView{}, err
	}
	s.log.Info("order created", zap.String("order_id", o.ID), zap.String("user_id", userID),
		zap.String("total", o.TotalAmount.StringFixed(2)))
	return s.orderView(ctx, o, false)
}

// ListOrders returns the user's orders, newest first. An unknown status
// filter is ignored.
func (s *Service) ListOrders(ctx context.Context, userID string, page Page, status string) (OrderList, error) {
	f := model.OrderFilter{UserID: userID}
	if st, ok := model.ParseOrderStatus(status); ok {
		f.Status = st
	}
	return s.listOrders(ctx, f, page, false)
}

func (s *Service) listOrders(ctx context.Context, f model.OrderFilter, page Page, withUsers bool) (OrderList, error) {
	orders, total, err := s.store.ListOrders(ctx, f, page.Limit, page.Offset())
	if err != nil {
		return OrderList{}, err
	}
	views, err := s.orderViews(ctx, orders, withUsers)
	if err != nil {
		return OrderList{}, err
	}
	return OrderList{Orders: views, PageInfo: page.Info(total)}, nil
}

func (s *Service) userOrder(ctx context.Context, userID, id string) (model.Order, error) {
	o, err := s.store.GetOrderForUser(ctx, id, userID)
	if err != nil {
		return model.Order{}, orNotFound(err, "order")
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, userID, id string) (OrderView, error) {
	o, err := s.userOrder(ctx, userID, id)
	if err != nil {
		return OrderView{}, err
	}
	return s.orderView(ctx, o, false)
}

// UpdateOrder edits an order within what its status allows: NEW orders take
// delivery, payment and items; PAID orders only delivery.
func (s *Service) UpdateOrder(ctx context.Context, userID, id string, in OrderUpdate) (OrderView, error) {
	o, err := s.userOrder(ctx, userID, id)
	if err != nil {
		return OrderView{}, err
	}
	switch o.Status {
	case model.StatusDelivered:
		return OrderView{}, invalid("order is already delivered and cannot be edited")
	case model.StatusCancelled:
		return OrderView{}, invalid("order is cancelled")
	}
	canDelivery, canPayment, canItems := o.Status.Editable()

	if in.Delivery != nil && canDelivery {
		o.Delivery = model.DeliveryInfo{
			Address:      strings.TrimSpace(in.Delivery.Address),
			DeliveryTime: in.Delivery.DeliveryTime,
			CourierNotes: strings.TrimSpace(in.Delivery.CourierNotes),
		}
	}
	if in.Payment != nil && canPayment {
		if o.Payment, err = in.Payment.validate(); err != nil {
			return OrderView{}, err
		}
	}
	if in.Items != nil && canItems {
		if o.Items, err = s.priceItems(ctx, in.Items); err != nil {
			return OrderView{}, err
		}
		o.TotalAmount = model.ItemsTotal(o.Items)
	}

	if err := s.store.UpdateOrderDetails(ctx, o, o.Status); err != nil {
		return OrderView{}, orNotFound(err, "order")
	}
	return s.GetOrder(ctx, userID, id)
}

// priceItems validates replacement order lines against stock and snapshots
// current prices. Repeated products are merged.
func (s *Service) priceItems(ctx context.Context, in []model.CartItem) ([]model.OrderItem, error) {
	if len(in) == 0 {
		return nil, invalid("an order needs at least one item")
	}
	var merged model.Cart
	for _, it := range in {
		if it.Quantity <= 0 {
			return nil, invalid("quantity must be > 0")
		}
		merged.Add(it.ProductID, it.Quantity)
	}
	ids := make([]string, 0, len(merged.Items))
	for _, it := range merged.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	items := make([]model.OrderItem, 0, len(merged.Items))
	for _, it := range merged.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, invalid(stockMessage(it.ProductID))
		}
		if p.Stock < it.Quantity {
			return nil, invalid(stockMessage(p.Name))
		}
		items = append(items, model.OrderItem{ProductID: p.ID, Quantity: it.Quantity, Price: p.Price})
	}
	return items, nil
}

func shortageToStockError(err error) error {
	var se *store.ShortageError
	if errors.As(err, &se) && len(se.Items) > 0 {
		first := se.Items[0]
		name := first.Name
		if name == "" {
			name = first.ProductID
		}
		return &StockError{Msg: stockMessage(name), Available: first.Available}
	}
	return err
}

// PayOrder charges a NEW order: the card is validated and masked and the
// ordered quantities leave stock.
func (s *Service) PayOrder(ctx context.Context, userID, id string, in PaymentInput) (OrderView, error) {
	payment, err := in.validate()
	if err != nil {
		return OrderView{}, err
	}
	o, err := s.userOrder(ctx, userID, id)
	if err != nil {
		return OrderView{}, err
	}
	if !o.Status.CanPay() {
		if o.Status == model.StatusPaid {
			return OrderView{}, invalid("order is already paid")
		}
		return OrderView{}, invalid("order cannot be paid")
	}
	paid, err := s.store.PayOrder(ctx, id, userID, payment)
	if err != nil {
		return OrderView{}, orNotFound(shortageToStockError(err), "order")
	}
	s.log.Info("order paid", zap.String("order_id", id), zap.String("total", paid.TotalAmount.StringFixed(2)))
	return s.orderView(ctx, paid, false)
}

func cancelCheck(st model.OrderStatus) error {
	switch st {
	case model.StatusDelivered:
		return invalid("a delivered order cannot be cancelled")
	case model.StatusCancelled:
		return invalid("order is already cancelled")
	}
	return nil
}

// CancelOrder cancels a NEW order (items go back to the cart) or a PAID one
// (stock is restored).
func (s *Service) CancelOrder(ctx context.Context, userID, id string) (OrderView, error) {
	o, err := s.userOrder(ctx, userID, id)
	if err != nil {
		return OrderView{}, err
	}
	if err := cancelCheck(o.Status); err != nil {
		return OrderView{}, err
	}
	cancelled, err := s.store.CancelOrder(ctx, id, userID)
	if err != nil {
		return OrderView{}, orNotFound(err, "order")
	}
	s.log.Info("order cancelled", zap.String("order_id", id), zap.String("from", string(o.Status)))
	return s.orderView(ctx, cancelled, false)
}

func deliverCheck(st model.OrderStatus) error {
	if !st.CanDeliver() {
		return invalid("order can be delivered only after payment")
	}
	return nil
}

func (s *Service) DeliverOrder(ctx context.Context, userID, id string) (OrderView, error) {
	o, err := s.userOrder(ctx, userID, id)
	if err != nil {
		return OrderView{}, err
	}
	if err := deliverCheck(o.Status); err != nil {
		return OrderView{}, err
	}
	delivered, err := s.store.SetOrderStatus(ctx, id, model.StatusPaid, model.StatusDelivered)
	if err != nil {
		return OrderView{}, orNotFound(err, "order")
	}
	return s.orderView(ctx, delivered, false)
}
