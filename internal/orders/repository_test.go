package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/bakehouse/ordering/internal/domain"
)

// A nil *sql.DB panics on use, so these only pass when malformed ids never reach the database.
func TestOrderRepository_MalformedIDs(t *testing.T) {
	repo := NewOrderRepository(nil)
	ctx := context.Background()
	valid := "00000000-0000-0000-0000-000000000001"

	if order, err := repo.GetByID(ctx, "not-a-uuid"); order != nil || err != nil {
		t.Errorf("GetByID: got (%v, %v), want (nil, nil)", order, err)
	}
	if order, err := repo.UpdateStatus(ctx, "o1", domain.OrderStatusNew); order != nil || err != nil {
		t.Errorf("UpdateStatus: got (%v, %v), want (nil, nil)", order, err)
	}
	if order, err := repo.SetLocked(ctx, "o1", true); order != nil || err != nil {
		t.Errorf("SetLocked: got (%v, %v), want (nil, nil)", order, err)
	}
	if order, err := repo.UpdateItemQuantity(ctx, valid, "i1", 2, ""); order != nil || err != nil {
		t.Errorf("UpdateItemQuantity: got (%v, %v), want (nil, nil)", order, err)
	}
	if err := repo.SetItemChecked(ctx, "o1", valid, true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SetItemChecked: got %v, want ErrNotFound", err)
	}
	changes, err := repo.ItemHistory(ctx, "o1")
	if err != nil || len(changes) != 0 {
		t.Errorf("ItemHistory: got (%v, %v), want empty", changes, err)
	}
}
