// Package sanitizer cleans free text typed by users before it is validated
// or stored.
//
//	name := sanitizer.Field("  Jane\t\u0007 Doe\n")
//	// name == "Jane Doe"
package sanitizer
