// Package textutil provides filename sanitization helpers.
package textutil
