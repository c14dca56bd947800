package main

import "testing"

func TestIsLoopbackListenAddress(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:8090": true,
		"[::1]:8090":     true,
		"localhost:8090": true,
		":8090":          false,
		"0.0.0.0:8090":   false,
		"10.1.2.3:8090":  false,
	} {
		if got := isLoopbackListenAddress(addr); got != want {
			t.Errorf("%s: got %v want %v", addr, got, want)
		}
	}
}
