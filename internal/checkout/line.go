package checkout

// Source tells where a checkout line comes from.
type Source string

const (
	SourceCart   Source = "cart"
	SourceDirect Source = "direct" // "buy now" from a product page
)

// Line is one product selected for checkout. Cart lines take their quantity
// from the cart and are removed from it once the order exists; direct lines
// carry their own quantity and leave the cart alone.
type Line struct {
	ProductID string
	Quantity  int
	Source    Source
}

func FromCartLine(productID string) Line {
	return Line{ProductID: productID, Source: SourceCart}
}

func FromDirectPurchase(productID string, quantity int) Line {
	return Line{ProductID: productID, Quantity: quantity, Source: SourceDirect}
}
