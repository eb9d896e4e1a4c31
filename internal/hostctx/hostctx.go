// Package hostctx decides once at startup whether the tool runs embedded in
// the Shopify admin or standalone.
package hostctx

import (
	"fmt"
	"net/url"
	"strings"
)

type Kind int

const (
	Standalone Kind = iota
	Embedded
)

func (k Kind) String() string {
	if k == Embedded {
		return "embedded"
	}
	return "standalone"
}

type Context struct {
	Kind   Kind
	Shop   string
	Host   string
	APIKey string
	AppURL string
}

// Detect is embedded only when shop and host are both known and an API key
// is configured.
func Detect(shop, host, apiKey, appURL string) Context {
	ctx := Context{
		Shop:   strings.TrimSpace(shop),
		Host:   strings.TrimSpace(host),
		APIKey: strings.TrimSpace(apiKey),
		AppURL: appURL,
	}
	if ctx.Shop != "" && ctx.Host != "" && ctx.APIKey != "" {
		ctx.Kind = Embedded
	}
	return ctx
}

// FromLaunchURL reads shop and host from the query of the URL the admin
// opened the app with.
func FromLaunchURL(launch, apiKey, appURL string) (Context, error) {
	if launch == "" {
		return Detect("", "", apiKey, appURL), nil
	}
	u, err := url.Parse(launch)
	if err != nil {
		return Context{}, fmt.Errorf("invalid launch url: %w", err)
	}
	q := u.Query()
	return Detect(q.Get("shop"), q.Get("host"), apiKey, appURL), nil
}

func (c Context) Embedded() bool {
	return c.Kind == Embedded
}

// Title is the header shown by the console.
func (c Context) Title() string {
	if c.Embedded() {
		return "Product Image Updater · " + c.Shop
	}
	return "Product Image Updater"
}
