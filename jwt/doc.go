// Package jwt issues and verifies owner capability tokens: short-lived signed
// tokens that bind a subject to one factory address and, optionally, to a
// subset of owner operations.
package jwt
