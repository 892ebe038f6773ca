package printing

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bakehouse/ordering/internal/domain"
)

const (
	DefaultWidth = 32
	dateLayout   = "2. 1. 2006"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// RenderReceipt lays out a sales receipt for a thermal printer.
func RenderReceipt(sellerName string, r domain.Receipt, width int, loc *time.Location) []byte {
	if width <= 0 {
		width = DefaultWidth
	}
	if loc == nil {
		loc = time.Local
	}

	d := NewDocument(width)
	d.Align(AlignCenter).Bold(true)
	d.Println(sellerName)
	d.Println("Doklad #" + r.ReceiptNo)
	d.Println(r.Date.In(loc).Format(dateLayout))
	d.Bold(false).Line()

	d.Align(AlignLeft)
	for _, item := range r.Items {
		name := item.Name
		if name == "" {
			name = "#" + strconv.FormatInt(item.ProductID, 10)
		}
		d.Println(name)
		lineTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		d.LeftRight(fmt.Sprintf("%dx @ %s", item.Quantity, money(item.Price)), money(lineTotal)+" Kč")
	}
	d.Line()

	d.Align(AlignRight).Bold(true)
	d.Println("Celkem: " + money(r.Total) + " Kč")
	d.Bold(false)

	d.Feed(3).Cut()
	return d.Bytes()
}
