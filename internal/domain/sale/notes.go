package sale

import (
	"fmt"
	"html"

	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
)

func recordLink(model, id, label string) string {
	return fmt.Sprintf(`<a href="#" data-oe-model="%s" data-oe-id="%s">%s</a>`,
		model, html.EscapeString(id), html.EscapeString(label))
}

// createdOnSaleNote is posted on the sale order when a field service order
// is generated for it.
func createdOnSaleNote(fo *fsm.Order, productName string) string {
	link := recordLink(env.ModelFSMOrder, fo.ID, fo.Name)
	if productName == "" {
		return "Field Service Order Created: " + link
	}
	return fmt.Sprintf("Field Service Order Created (%s): %s", html.EscapeString(productName), link)
}

// createdFromSaleNote is posted on the generated field service order.
func createdFromSaleNote(order *Order, productName string) string {
	link := recordLink(env.ModelSaleOrder, order.ID, order.Name)
	if productName == "" {
		return "This order has been created from: " + link
	}
	return fmt.Sprintf("This order has been created from: %s (%s)", link, html.EscapeString(productName))
}
