// Package clientip extracts the client address from an HTTP request.
//
// Headers are checked in order: CF-Connecting-IP, DO-Connecting-IP,
// X-Forwarded-For (leftmost entry), X-Real-IP. The first value that parses
// as an IP and is not the unspecified address wins; otherwise the host part
// of RemoteAddr is returned, or RemoteAddr itself when it has no port.
//
//	ip := clientip.GetIP(r)
//
// Results are normalized with net.IP.String, so "::ffff:192.0.2.1" becomes
// "192.0.2.1".
package clientip
