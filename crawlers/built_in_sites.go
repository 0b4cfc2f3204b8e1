package crawlers

import (
	"context"

	"github.com/Glyph8/navermapCrawling/common/browser/rodbrowser"

	// built-in sites register themselves with the site registry
	_ "github.com/Glyph8/navermapCrawling/crawlers/navermap"
)

// RodOpener opens every search in a fresh session of b
func RodOpener(b *rodbrowser.Browser) Opener {
	return func(ctx context.Context) (BrowserSession, error) {
		session, err := b.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}
