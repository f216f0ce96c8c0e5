package redisx

import "time"

// Key formats. All keys are fmt.Sprintf formats taking the documented argument.
const (
	// KeyProduct caches a single active product by product id.
	KeyProduct = "product:%s"
	// KeyCartCount caches the cart row count by owner identity.
	KeyCartCount = "cart:count:%s"
	// KeyCategories caches the distinct category list.
	KeyCategories = "categories"
)

// Cache TTLs. Short enough that external catalog edits surface quickly.
const (
	TTLProduct    = 5 * time.Minute
	TTLCartCount  = 10 * time.Minute
	TTLCategories = 10 * time.Minute
)
