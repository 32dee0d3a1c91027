// Package version reports the version of this module.
//
// When mongofixtures is a dependency the version comes from the build info
// of the test binary. It can be overridden at compile time via -ldflags:
//
//	go test -ldflags "-X github.com/kbukum/mongofixtures/version.Version=v1.0.0"
package version
