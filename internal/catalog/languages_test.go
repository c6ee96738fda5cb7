package catalog_test

import (
	"reflect"
	"testing"

	"voicerack/internal/catalog"
)

func TestDisplayNamesKeepsRegions(t *testing.T) {
	got := catalog.DisplayNames([]string{"en-US", "en_GB", "fr", "", "not-a-tag!!"})
	want := []string{"American English", "British English", "French"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DisplayNames = %v, want %v", got, want)
	}
}

func TestBaseNamesCollapsesRegions(t *testing.T) {
	got := catalog.BaseNames([]string{"en-US", "en-GB", "en"})
	want := []string{"English"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BaseNames = %v, want %v", got, want)
	}
}
