// Command soymail renders transactional email documents.
//
//	soymail render order_confirmation --data order.yaml --locale vi
//	soymail css
//	soymail validate
//	soymail helpers
//	soymail send welcome --data user.json --to ana@example.com
//	soymail extract > messages.pot
//	soymail preview --templates ./templates --data order.yaml
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
