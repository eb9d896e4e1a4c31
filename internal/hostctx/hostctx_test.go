package hostctx

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name            string
		shop, host, key string
		want            Kind
	}{
		{"all present", "demo.myshopify.com", "YWRtaW4", "key", Embedded},
		{"no host", "demo.myshopify.com", "", "key", Standalone},
		{"no shop", "", "YWRtaW4", "key", Standalone},
		{"no api key", "demo.myshopify.com", "YWRtaW4", "", Standalone},
		{"blank", " ", " ", "key", Standalone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.shop, tt.host, tt.key, "").Kind; got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromLaunchURL(t *testing.T) {
	ctx, err := FromLaunchURL("https://app.example.com/?shop=demo.myshopify.com&host=YWRtaW4", "key", "https://app.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !ctx.Embedded() || ctx.Shop != "demo.myshopify.com" {
		t.Errorf("unexpected context %+v", ctx)
	}
	if ctx.Title() != "Product Image Updater · demo.myshopify.com" {
		t.Errorf("unexpected title %q", ctx.Title())
	}

	if _, err := FromLaunchURL("://bad", "key", ""); err == nil {
		t.Error("expected parse error")
	}
}
