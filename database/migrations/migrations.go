// Package migrations holds the storefront schema. Each file registers its
// changes from init(); cmd/storefront imports the package for that effect.
package migrations
