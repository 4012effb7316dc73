package repository

import (
	"encoding/base64"
	"strings"

	"velvet-pos/internal/ledger"
)

// Document layout of a store in the ledger:
//
//	stores/{store}/config
//	stores/{store}/inventory/{product}
//	stores/{store}/categories/{category}
//	stores/{store}/customers/{customer}
//	stores/{store}/users/{user}
//	stores/{store}/transactions/{transaction}
//	stores/{store}/daily_summaries/{YYYY-MM-DD}
//	stores/{store}/idempotency/{key}
//	user_emails/{base64url(email)}
//	refresh_tokens/{token}
const (
	storesRoot        = "stores"
	configDoc         = "config"
	inventoryColl     = "inventory"
	categoriesColl    = "categories"
	customersColl     = "customers"
	usersColl         = "users"
	transactionsColl  = "transactions"
	summariesColl     = "daily_summaries"
	idempotencyColl   = "idempotency"
	userEmailsRoot    = "user_emails"
	refreshTokensRoot = "refresh_tokens"
)

func storePath(storeID string, segments ...string) (string, error) {
	return ledger.Join(append([]string{storesRoot, storeID}, segments...)...)
}

// ConfigPath is the location of a store's configuration document.
func ConfigPath(storeID string) (string, error) {
	return storePath(storeID, configDoc)
}

func InventoryPath(storeID string) (string, error) {
	return storePath(storeID, inventoryColl)
}

func ProductPath(storeID, productID string) (string, error) {
	return storePath(storeID, inventoryColl, productID)
}

func TransactionPath(storeID, txID string) (string, error) {
	return storePath(storeID, transactionsColl, txID)
}

func SummaryPath(storeID, date string) (string, error) {
	return storePath(storeID, summariesColl, date)
}

func IdempotencyPath(storeID, key string) (string, error) {
	return storePath(storeID, idempotencyColl, key)
}

func emailIndexPath(email string) (string, error) {
	key := base64.RawURLEncoding.EncodeToString([]byte(strings.ToLower(strings.TrimSpace(email))))
	return ledger.Join(userEmailsRoot, key)
}
