package fingerprint

import (
	"net/http"
	"testing"
)

func TestHeaderOrderHash_DeterministicRegardlessOfMapIteration(t *testing.T) {
	r1, _ := http.NewRequest(http.MethodGet, "http://example.test/x", nil)
	r1.Header.Set("User-Agent", "test")
	r1.Header.Set("Accept", "*/*")
	r1.Header.Set("Accept-Language", "en")

	r2, _ := http.NewRequest(http.MethodGet, "http://example.test/x", nil)
	r2.Header.Set("Accept-Language", "en")
	r2.Header.Set("Accept", "*/*")
	r2.Header.Set("User-Agent", "test")

	if HeaderOrderHash(r1) != HeaderOrderHash(r2) {
		t.Fatal("hash must be stable for the same header set regardless of insertion order")
	}
}

func TestHeaderOrderHash_DiffersForDifferentHeaderSets(t *testing.T) {
	r1, _ := http.NewRequest(http.MethodGet, "http://example.test/x", nil)
	r1.Header.Set("User-Agent", "test")

	r2, _ := http.NewRequest(http.MethodGet, "http://example.test/x", nil)
	r2.Header.Set("User-Agent", "test")
	r2.Header.Set("Accept", "*/*")

	if HeaderOrderHash(r1) == HeaderOrderHash(r2) {
		t.Fatal("hash should differ when the header set differs")
	}
}

func TestStore_NilReceiverIsSafe(t *testing.T) {
	var s *Store
	s.Record(nil, "client", "hash") //nolint:staticcheck // nil ctx tolerated by the guard below

	if _, ok := s.Lookup(nil, "client"); ok {
		t.Fatal("nil store must report no fingerprint on file")
	}
}
