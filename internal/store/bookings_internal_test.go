package store

import (
	"reflect"
	"testing"
)

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"3", "1", "3", "2", "1"})
	if !reflect.DeepEqual(got, []string{"3", "1", "2"}) {
		t.Errorf("dedupe = %v", got)
	}
	if got := dedupe(nil); len(got) != 0 {
		t.Errorf("dedupe(nil) = %v", got)
	}
}

func TestMissing(t *testing.T) {
	requested := []string{"1", "2", "3"}

	if got := missing(requested, []string{"1", "3"}); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("missing = %v", got)
	}
	if got := missing(requested, requested); len(got) != 0 {
		t.Errorf("nothing should be missing, got %v", got)
	}
	if got := missing(requested, nil); !reflect.DeepEqual(got, requested) {
		t.Errorf("all should be missing, got %v", got)
	}
}
