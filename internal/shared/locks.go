package shared

import "fmt"

// LowStockAlertKey builds the redis key used to suppress repeated low-stock alerts.
func LowStockAlertKey(variantID int64) string {
	return fmt.Sprintf("inventory:variant:%d:low-stock", variantID)
}

// InventoryLevelKey builds the redis key caching a variant stock level.
func InventoryLevelKey(variantID int64) string {
	return fmt.Sprintf("inventory:variant:%d:level", variantID)
}
