package orders

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/bakehouse/ordering/internal/domain"
	"github.com/bakehouse/ordering/internal/geocoding"
	"github.com/bakehouse/ordering/internal/profiles"
)

type fakeRepo struct {
	orders      map[string]*domain.Order
	lastFilter  ListFilter
	changedBy   string
	checkedErr  error
	summaryDate string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: map[string]*domain.Order{
		"o1": {ID: "o1", UserID: "user-1", Status: domain.OrderStatusNew, Total: decimal.NewFromInt(90),
			Items: []domain.OrderItem{{ID: "i1", OrderID: "o1", ProductID: 1, Quantity: 2, Price: decimal.NewFromInt(45)}}},
		"o2": {ID: "o2", UserID: "user-2", Status: domain.OrderStatusNew, IsLocked: true},
	}}
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (f *fakeRepo) List(_ context.Context, filter ListFilter) ([]domain.Order, error) {
	f.lastFilter = filter
	return []domain.Order{}, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	o.Status = status
	return o, nil
}

func (f *fakeRepo) SetLocked(_ context.Context, id string, locked bool) (*domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	o.IsLocked = locked
	return o, nil
}

func (f *fakeRepo) UpdateItemQuantity(_ context.Context, orderID, itemID string, quantity int, changedBy string) (*domain.Order, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	o := f.orders[orderID]
	if o.IsLocked {
		return nil, ErrOrderLocked
	}
	f.changedBy = changedBy
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items[i].Quantity = quantity
			o.Total = o.Items[i].Price.Mul(decimal.NewFromInt(int64(quantity)))
			return o, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) SetItemChecked(context.Context, string, string, bool) error {
	return f.checkedErr
}

func (f *fakeRepo) ItemHistory(context.Context, string) ([]domain.OrderItemChange, error) {
	return []domain.OrderItemChange{{OrderItemID: "i1", OldQuantity: 1, NewQuantity: 2}}, nil
}

func (f *fakeRepo) SummaryLines(_ context.Context, date string) ([]SummaryLine, error) {
	f.summaryDate = date
	return []SummaryLine{{ProductID: 1, ProductName: "Chléb", CategoryID: 1, Quantity: 3, Amount: decimal.NewFromInt(135)}}, nil
}

func (f *fakeRepo) Stops(context.Context, string) ([]Stop, error) {
	return []Stop{
		{OrderID: "o1", Address: "Praha 1"},
		{OrderID: "o2", Address: ""},
	}, nil
}

type fakeGeocoder struct{}

func (fakeGeocoder) Geocode(_ context.Context, address string) (*geocoding.Location, error) {
	if strings.TrimSpace(address) == "" {
		return nil, &geocoding.Error{Code: geocoding.CodeInvalidAddress, Message: "Address is required"}
	}
	return &geocoding.Location{Lat: 50, Lng: 14, FormattedAddress: address}, nil
}

func (fakeGeocoder) Reverse(_ context.Context, lat, lng float64) (*geocoding.Location, error) {
	if !geocoding.ValidCoordinates(lat, lng) {
		return nil, &geocoding.Error{Code: geocoding.CodeInvalidCoordinates, Message: "out of range"}
	}
	return &geocoding.Location{Lat: lat, Lng: lng, FormattedAddress: "Náměstí Svobody, Brno"}, nil
}

func newTestRouter(repo *fakeRepo, user domain.Profile) http.Handler {
	h := NewHandler(repo, fakeGeocoder{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(profiles.NewContext(r.Context(), user)))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

var (
	customer = domain.Profile{ID: "user-1", Role: domain.RoleUser}
	admin    = domain.Profile{ID: "admin-1", Role: domain.RoleAdmin}
	driver   = domain.Profile{ID: "driver-1", Role: domain.RoleDriver}
)

func TestHandler_HandleList(t *testing.T) {
	t.Run("customers only see their own orders", func(t *testing.T) {
		repo := newFakeRepo()
		rec := serve(newTestRouter(repo, customer), http.MethodGet, "/orders?user_id=user-2&from=2025-03-01", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if repo.lastFilter.UserID != "user-1" || repo.lastFilter.From != "2025-03-01" {
			t.Errorf("unexpected filter %+v", repo.lastFilter)
		}
	})

	t.Run("staff may filter by user", func(t *testing.T) {
		repo := newFakeRepo()
		serve(newTestRouter(repo, admin), http.MethodGet, "/orders?user_id=user-2", "")

		if repo.lastFilter.UserID != "user-2" {
			t.Errorf("unexpected filter %+v", repo.lastFilter)
		}
	})

	t.Run("invalid date", func(t *testing.T) {
		rec := serve(newTestRouter(newFakeRepo(), admin), http.MethodGet, "/orders?to=tomorrow", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		rec := serve(newTestRouter(newFakeRepo(), admin), http.MethodGet, "/orders?status=Lost", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleGet(t *testing.T) {
	t.Run("owner sees order", func(t *testing.T) {
		rec := serve(newTestRouter(newFakeRepo(), customer), http.MethodGet, "/orders/o1", "")
		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("other customer's order is hidden", func(t *testing.T) {
		rec := serve(newTestRouter(newFakeRepo(), customer), http.MethodGet, "/orders/o2", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		rec := serve(newTestRouter(newFakeRepo(), admin), http.MethodGet, "/orders/nope", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleUpdateStatus(t *testing.T) {
	t.Run("staff updates status", func(t *testing.T) {
		repo := newFakeRepo()
		rec := serve(newTestRouter(repo, driver), http.MethodPatch, "/orders/o1/status", `{"status":"Přeprava"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if repo.orders["o1"].Status != domain.OrderStatusTransport {
			t.Errorf("expected Přeprava, got %s", repo.orders["o1"].Status)
		}
	})

	t.Run("customer is forbidden", func(t *testing.T) {
		rec := serve(newTestRouter(newFakeRepo(), customer), http.MethodPatch, "/orders/o1/status", `{"status":"Paid"}`)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		rec := serve(newTestRouter(newFakeRepo(), admin), http.MethodPatch, "/orders/o1/status", `{"status":"Shipped"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleUpdateItemQuantity(t *testing.T) {
	t.Run("owner edits unlocked order", func(t *testing.T) {
		repo := newFakeRepo()
		rec := serve(newTestRouter(repo, customer), http.MethodPatch, "/orders/o1/items/i1", `{"quantity":5}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var order domain.Order
		_ = json.NewDecoder(rec.Body).Decode(&order)
		if order.Items[0].Quantity != 5 || !order.Total.Equal(decimal.NewFromInt(225)) {
			t.Errorf("unexpected order %+v", order)
		}
		if repo.changedBy != "user-1" {
			t.Errorf("expected change attributed to user-1, got %q", repo.changedBy)
		}
	})

	t.Run("locked order", func(t *testing.T) {
		rec := serve(newTestRouter(newFakeRepo(), admin), http.MethodPatch, "/orders/o2/items/x", `{"quantity":1}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("negative quantity", func(t *testing.T) {
		rec := serve(newTestRouter(newFakeRepo(), customer), http.MethodPatch, "/orders/o1/items/i1", `{"quantity":-1}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		rec := serve(newTestRouter(newFakeRepo(), customer), http.MethodPatch, "/orders/o1/items/zz", `{"quantity":1}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleSetLocked(t *testing.T) {
	repo := newFakeRepo()

	rec := serve(newTestRouter(repo, driver), http.MethodPatch, "/orders/o1/lock", `{"locked":true}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for driver, got %d", rec.Code)
	}

	rec = serve(newTestRouter(repo, admin), http.MethodPatch, "/orders/o1/lock", `{"locked":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !repo.orders["o1"].IsLocked {
		t.Error("expected order to be locked")
	}
}

func TestHandler_HandleSetItemChecked(t *testing.T) {
	repo := newFakeRepo()
	repo.checkedErr = domain.ErrNotFound

	rec := serve(newTestRouter(repo, admin), http.MethodPatch, "/orders/o1/items/zz/checked", `{"checked":true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestHandler_HandleSummary(t *testing.T) {
	repo := newFakeRepo()
	rec := serve(newTestRouter(repo, admin), http.MethodGet, "/orders/summary?date=2025-03-14", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var s Summary
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if s.Date != "2025-03-14" || s.Quantity != 3 || repo.summaryDate != "2025-03-14" {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestHandler_HandleMap(t *testing.T) {
	rec := serve(newTestRouter(newFakeRepo(), driver), http.MethodGet, "/orders/map?date=2025-03-14", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var stops []mapStop
	if err := json.NewDecoder(rec.Body).Decode(&stops); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(stops))
	}
	if stops[0].Location == nil || stops[0].Location.Lat != 50 {
		t.Errorf("expected first stop geocoded, got %+v", stops[0])
	}
	if stops[1].Location != nil || stops[1].Error == "" {
		t.Errorf("expected second stop to carry a geocode error, got %+v", stops[1])
	}
}

func TestHandler_HandleGeocode(t *testing.T) {
	rec := serve(newTestRouter(newFakeRepo(), admin), http.MethodGet, "/geocode?address=", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}

	var body geocoding.Error
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Code != geocoding.CodeInvalidAddress {
		t.Errorf("unexpected error body %+v", body)
	}

	rec = serve(newTestRouter(newFakeRepo(), admin), http.MethodGet, "/geocode?address=Brno", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestHandler_HandleGeocode_Reverse(t *testing.T) {
	router := newTestRouter(newFakeRepo(), admin)

	rec := serve(router, http.MethodGet, "/geocode?lat=49.195&lng=16.608", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var loc geocoding.Location
	_ = json.NewDecoder(rec.Body).Decode(&loc)
	if loc.FormattedAddress != "Náměstí Svobody, Brno" || loc.Lat != 49.195 {
		t.Errorf("unexpected location %+v", loc)
	}

	tests := []struct {
		name  string
		query string
	}{
		{"missing lng", "lat=49.195"},
		{"not a number", "lat=north&lng=16.6"},
		{"out of range", "lat=95&lng=16.6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := serve(router, http.MethodGet, "/geocode?"+tt.query, ""); rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
		})
	}
}
