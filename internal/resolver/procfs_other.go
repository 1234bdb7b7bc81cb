//go:build !linux

package resolver

const procfsSupported = false
