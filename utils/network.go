// Package utils provides network utilities for the runner.
//
// This file checks whether the backend's port is already taken before the
// backend is started, which usually means a previous run was not torn down.
package utils

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// BackendAddr returns the host:port the base URL points at, filling in the
// scheme's default port.
func BackendAddr(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("base URL %q has no host", baseURL)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// IsLocalAddr reports whether addr refers to this machine
func IsLocalAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// IsPortInUse reports whether something accepts connections on addr
func IsPortInUse(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
