// Package testsupport builds temp-dir configs, fake engines, and payload
// files for package tests.
package testsupport
