// Package textutil offers small string helpers for turning library and game
// names into filesystem-safe path components and display labels.
package textutil
