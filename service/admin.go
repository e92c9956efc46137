package service

import (
	"context"
	"strings"

	"el-store/model"

	"go.uber.org/zap"
)

func (s *Service) ListUsers(ctx context.Context, page Page, search string) (UserList, error) {
	users, total, err := s.store.ListUsers(ctx, strings.TrimSpace(search), page.Limit, page.Offset())
	if err != nil {
		return UserList{}, err
	}
	return UserList{Users: users, PageInfo: page.Info(total)}, nil
}

// UpdateUserRole changes another user's role. Admins cannot change their own.
func (s *Service) UpdateUserRole(ctx context.Context, actorID, userID, role string) (model.User, error) {
	r, ok := model.ParseRole(role)
	if !ok {
		return model.User{}, invalid("invalid role")
	}
	if userID == actorID {
		return model.User{}, invalid("you cannot change your own role")
	}
	u, err := s.store.UpdateUserRole(ctx, userID, r)
	if err != nil {
		return model.User{}, orNotFound(err, "user")
	}
	s.log.Info("user role changed", zap.String("user_id", userID), zap.String("role", string(r)),
		zap.String("by", actorID))
	return u, nil
}

// ListAllOrders lists orders of every user. Empty status and userID match
// all orders.
func (s *Service) ListAllOrders(ctx context.Context, page Page, status, userID string) (OrderList, error) {
	f := model.OrderFilter{UserID: strings.TrimSpace(userID)}
	if st, ok := model.ParseOrderStatus(status); ok {
		f.Status = st
	}
	return s.listOrders(ctx, f, page, true)
}

func (s *Service) GetOrderAdmin(ctx context.Context, id string) (OrderView, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return OrderView{}, orNotFound(err, "order")
	}
	return s.orderView(ctx, o, true)
}

// UpdateOrderStatus moves an order along the same transitions customers go
// through: paying takes stock, cancelling gives it back or refills the cart.
func (s *Service) UpdateOrderStatus(ctx context.Context, id, status string) (OrderView, error) {
	next, ok := model.ParseOrderStatus(status)
	if !ok {
		return OrderView{}, invalid("invalid order status")
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return OrderView{}, orNotFound(err, "order")
	}
	if next == model.StatusDelivered {
		if err := deliverCheck(o.Status); err != nil {
			return OrderView{}, err
		}
	}
	if next == model.StatusCancelled {
		if err := cancelCheck(o.Status); err != nil {
			return OrderView{}, err
		}
	}
	if !o.Status.CanTransitionTo(next) {
		return OrderView{}, invalid("cannot change order status from " + string(o.Status) + " to " + string(next))
	}

	var updated model.Order
	switch next {
	case model.StatusPaid:
		updated, err = s.store.PayOrder(ctx, id, "", model.PaymentInfo{})
		err = shortageToStockError(err)
	case model.StatusCancelled:
		updated, err = s.store.CancelOrder(ctx, id, "")
	default:
		updated, err = s.store.SetOrderStatus(ctx, id, o.Status, next)
	}
	if err != nil {
		return OrderView{}, orNotFound(err, "order")
	}
	s.log.Info("order status changed", zap.String("order_id", id),
		zap.String("from", string(o.Status)), zap.String("to", string(next)))
	return s.orderView(ctx, updated, true)
}

func (s *Service) MarkDelivered(ctx context.Context, id string) (OrderView, error) {
	return s.UpdateOrderStatus(ctx, id, string(model.StatusDelivered))
}
