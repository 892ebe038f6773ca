package receipts

import (
	"context"
	"testing"
)

func TestReceiptRepository_GetByID_MalformedID(t *testing.T) {
	// nil db: a query would panic.
	receipt, err := NewReceiptRepository(nil).GetByID(context.Background(), "r1")
	if receipt != nil || err != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", receipt, err)
	}
}

func TestReturnRepository_MalformedIDs(t *testing.T) {
	repo := NewReturnRepository(nil)
	ctx := context.Background()

	if ret, err := repo.GetByID(ctx, "r1"); ret != nil || err != nil {
		t.Errorf("GetByID: got (%v, %v), want (nil, nil)", ret, err)
	}
	if ret, err := repo.UpdateItemQuantity(ctx, "r1", "i1", 2); ret != nil || err != nil {
		t.Errorf("UpdateItemQuantity: got (%v, %v), want (nil, nil)", ret, err)
	}
	if ret, err := repo.DeleteItem(ctx, "r1", "i1"); ret != nil || err != nil {
		t.Errorf("DeleteItem: got (%v, %v), want (nil, nil)", ret, err)
	}
}
