package main

import (
	"reflect"
	"testing"
)

func TestSplitSeedAddrs(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"1.2.3.4:8233", []string{"1.2.3.4:8233"}},
		{"1.2.3.4:8233, 5.6.7.8:8233 ,9.9.9.9:8233", []string{"1.2.3.4:8233", "5.6.7.8:8233", "9.9.9.9:8233"}},
		{"1.2.3.4:8233,,5.6.7.8:8233", []string{"1.2.3.4:8233", "5.6.7.8:8233"}},
	}
	for _, tc := range cases {
		got := splitSeedAddrs(tc.raw)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitSeedAddrs(%q) = %#v, want %#v", tc.raw, got, tc.want)
		}
	}
}

func TestObserverOrNilReturnsTrueNilInterface(t *testing.T) {
	if observerOrNil(nil) != nil {
		t.Error("observerOrNil(nil) should be a true nil interface")
	}
}
