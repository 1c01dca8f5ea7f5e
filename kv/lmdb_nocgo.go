//go:build !cgo

package kv

import "errors"

const lmdbAvailable = false

func openLMDB(path string, opt Options) (Engine, error) {
	return nil, errors.New("lmdb engine requires cgo")
}
