package cart

import (
	"context"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing cart is empty", func(t *testing.T) {
		s := NewMemoryStore()

		c, err := s.Get(ctx, KindOrder, "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !c.IsEmpty() {
			t.Errorf("expected empty cart, got %d lines", c.Len())
		}
	})

	t.Run("kinds are kept apart", func(t *testing.T) {
		s := NewMemoryStore()
		c := New()
		c.Add(product(1, "10", "8", "7"))

		if err := s.Put(ctx, KindReceipt, "user-1", c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		order, _ := s.Get(ctx, KindOrder, "user-1")
		receipt, _ := s.Get(ctx, KindReceipt, "user-1")
		if !order.IsEmpty() {
			t.Error("expected order cart to stay empty")
		}
		if receipt.Len() != 1 {
			t.Errorf("expected 1 receipt line, got %d", receipt.Len())
		}
	})

	t.Run("returned carts are copies", func(t *testing.T) {
		s := NewMemoryStore()
		c := New()
		c.Add(product(1, "10", "8", "7"))
		_ = s.Put(ctx, KindOrder, "user-1", c)

		got, _ := s.Get(ctx, KindOrder, "user-1")
		got.Items[0].Quantity = 99

		again, _ := s.Get(ctx, KindOrder, "user-1")
		if again.Items[0].Quantity != 1 {
			t.Errorf("expected stored quantity 1, got %d", again.Items[0].Quantity)
		}
	})

	t.Run("delete drops the cart", func(t *testing.T) {
		s := NewMemoryStore()
		c := New()
		c.Add(product(1, "10", "8", "7"))
		_ = s.Put(ctx, KindOrder, "user-1", c)

		if err := s.Delete(ctx, KindOrder, "user-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := s.Get(ctx, KindOrder, "user-1")
		if !got.IsEmpty() {
			t.Error("expected cart to be empty after delete")
		}
	})
}

func TestRedisStore_Key(t *testing.T) {
	s := NewRedisStore(nil, RedisStoreConfig{})

	if got := s.key(KindOrder, "abc"); got != "bakery:cart:order:abc" {
		t.Errorf("unexpected key %q", got)
	}
	if s.config.TTL <= 0 {
		t.Error("expected default ttl")
	}
}
