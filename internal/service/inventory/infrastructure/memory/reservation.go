// internal/service/inventory/infrastructure/memory/reservation.go
package memory

import (
	"context"
	"sort"
	"sync"

	"stockpile/internal/service/inventory/domain"
)

// ReservationRepository 是 domain.ReservationRepository 的内存实现。
type ReservationRepository struct {
	mu     sync.Mutex
	nextID uint64
	rows   []*domain.OrderReservation
}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{nextID: 1}
}

func (r *ReservationRepository) Record(_ context.Context, reservation *domain.OrderReservation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.findOpenLocked(reservation.OrderID, reservation.ProductID); existing != nil {
		*reservation = *existing
		return false, nil
	}
	reservation.ID = r.nextID
	r.nextID++
	stored := *reservation
	r.rows = append(r.rows, &stored)
	return true, nil
}

func (r *ReservationRepository) FindOpen(_ context.Context, orderID, productID string) (*domain.OrderReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row := r.findOpenLocked(orderID, productID); row != nil {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (r *ReservationRepository) FindOpenForOrder(_ context.Context, orderID string) ([]*domain.OrderReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.OrderReservation
	for _, row := range r.rows {
		if row.OrderID == orderID && row.IsOpen() {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *ReservationRepository) MarkReleased(_ context.Context, orderID, productID string) (*domain.OrderReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.findOpenLocked(orderID, productID)
	if row == nil || !row.MarkReleased() {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *ReservationRepository) MarkConfirmed(_ context.Context, orderID, productID string) (*domain.OrderReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.findOpenLocked(orderID, productID)
	if row == nil || !row.MarkConfirmed() {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *ReservationRepository) Reopen(_ context.Context, reservationID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == reservationID {
			row.Reopen()
			return nil
		}
	}
	return nil
}

func (r *ReservationRepository) MarkOrderReleased(_ context.Context, orderID string) ([]*domain.OrderReservation, error) {
	return r.markOrder(orderID, domain.StatusReleased)
}

func (r *ReservationRepository) MarkOrderConfirmed(_ context.Context, orderID string) ([]*domain.OrderReservation, error) {
	return r.markOrder(orderID, domain.StatusConfirmed)
}

func (r *ReservationRepository) markOrder(orderID string, target domain.ReservationStatus) ([]*domain.OrderReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var moved []*domain.OrderReservation
	for _, row := range r.rows {
		if row.OrderID != orderID || !row.IsOpen() {
			continue
		}
		var ok bool
		if target == domain.StatusReleased {
			ok = row.MarkReleased()
		} else {
			ok = row.MarkConfirmed()
		}
		if ok {
			cp := *row
			moved = append(moved, &cp)
		}
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].ProductID < moved[j].ProductID })
	return moved, nil
}

func (r *ReservationRepository) findOpenLocked(orderID, productID string) *domain.OrderReservation {
	for _, row := range r.rows {
		if row.OrderID == orderID && row.ProductID == productID && row.IsOpen() {
			return row
		}
	}
	return nil
}
