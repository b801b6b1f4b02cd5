package browser

import (
	"testing"

	"github.com/chromedp/cdproto/target"
)

func TestPickTarget(t *testing.T) {
	infos := []*target.Info{
		{Type: "background_page", URL: "https://artlist.io/extension"},
		{Type: "page", URL: "https://example.com/"},
		{Type: "page", URL: "https://artlist.io/royalty-free-music"},
		{Type: "page", URL: "https://artlist.io/sfx"},
	}

	got := pickTarget(infos, "artlist.io")
	if got == nil {
		t.Fatal("pickTarget() = nil, want artlist.io page")
	}
	if got.URL != "https://artlist.io/royalty-free-music" {
		t.Errorf("pickTarget() URL = %q, want first matching page", got.URL)
	}

	if pickTarget(infos, "soundstripe.com") != nil {
		t.Error("pickTarget() found a target for an absent host")
	}
}
