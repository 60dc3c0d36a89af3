package health

import (
	"testing"

	"github.com/vitalctx/vitalctx/internal/category"
)

func TestPanelTokens(t *testing.T) {
	p := &Panel{ResultCount: 3}
	if got := PanelTokens(p); got != 200 {
		t.Errorf("PanelTokens(3 results) = %d, want 200", got)
	}
	empty := &Panel{ResultCount: 0}
	if got := PanelTokens(empty); got != PanelHeaderTokens {
		t.Errorf("PanelTokens(0 results) = %d, want %d", got, PanelHeaderTokens)
	}
}

func TestDocumentTokens(t *testing.T) {
	withText := &Document{ExtractedChars: 400}
	if got := DocumentTokens(withText); got != 100 {
		t.Errorf("DocumentTokens(400 chars) = %d, want 100", got)
	}
	noText := &Document{}
	if got := DocumentTokens(noText); got != DefaultItemTokens {
		t.Errorf("DocumentTokens(no text) = %d, want %d", got, DefaultItemTokens)
	}
}

func TestFormatTokens(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{850, "850"},
		{999, "999"},
		{1000, "1.0K"},
		{4200, "4.2K"},
		{9999, "10.0K"},
		{10000, "10K"},
		{15000, "15K"},
		{15400, "15K"},
	}
	for _, c := range cases {
		if got := FormatTokens(c.n); got != c.want {
			t.Errorf("FormatTokens(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestCountChars(t *testing.T) {
	if got := CountChars("héllo"); got != 5 {
		t.Errorf("CountChars(héllo) = %d, want 5", got)
	}
	if got := CountChars(""); got != 0 {
		t.Errorf("CountChars(empty) = %d, want 0", got)
	}
}

func TestDocumentCategory(t *testing.T) {
	d := &Document{Kind: category.KindImagingDoc}
	if got := d.Category(); got != category.Imaging {
		t.Errorf("Category() = %q, want %q", got, category.Imaging)
	}
}
