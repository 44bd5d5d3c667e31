package codefilter

import (
	"fmt"
	"sync"
	"testing"
)

func TestFilter_AddedCodesAlwaysFound(t *testing.T) {
	f := New(1000, 0.001)

	for i := 0; i < 500; i++ {
		f.Add(1, fmt.Sprintf("code%04d", i))
	}
	for i := 0; i < 500; i++ {
		if !f.MayExist(1, fmt.Sprintf("code%04d", i)) {
			t.Fatalf("added code%04d reported absent", i)
		}
	}
}

func TestFilter_DomainsAreDistinct(t *testing.T) {
	f := New(1000, 0.001)

	f.Add(1, "promo")
	if !f.MayExist(1, "promo") {
		t.Fatal("added pair reported absent")
	}
	if f.MayExist(2, "promo") {
		t.Fatal("same code on another domain reported present")
	}
}

func TestFilter_ZeroConfigDefaults(t *testing.T) {
	f := New(0, 0)

	f.Add(7, "abc1234")
	if !f.MayExist(7, "abc1234") {
		t.Fatal("added pair reported absent with default sizing")
	}
}

func TestFilter_ConcurrentUse(t *testing.T) {
	f := New(10000, 0.001)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				f.Add(uint64(w), fmt.Sprintf("c%d-%d", w, i))
				f.MayExist(uint64(w), fmt.Sprintf("c%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < 8; w++ {
		if !f.MayExist(uint64(w), fmt.Sprintf("c%d-%d", w, 199)) {
			t.Fatalf("worker %d's last code reported absent", w)
		}
	}
}
