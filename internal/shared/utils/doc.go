// Package utils holds field validation shared by the wire protocol.
package utils
