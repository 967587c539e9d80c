package attribution

import (
	"context"
	"fmt"
)

// Pageview is the read-only outcome of a landing page view carrying attribution params.
type Pageview struct {
	Link *Link
	// ClickID is the click the page view was reached from, zero when it does not
	// belong to the link.
	ClickID ClickID
}

// PageviewVerifier confirms that a landing page view came through a tracking link.
// It never writes: the click was already recorded on redirect.
type PageviewVerifier struct {
	links  LinkRepository
	clicks ClickRepository
}

// NewPageviewVerifier creates a page view verifier.
func NewPageviewVerifier(links LinkRepository, clicks ClickRepository) *PageviewVerifier {
	return &PageviewVerifier{links: links, clicks: clicks}
}

// Verify resolves code and checks that clickID belongs to it.
func (v *PageviewVerifier) Verify(ctx context.Context, code Code, clickID ClickID) (*Pageview, error) {
	if code == "" {
		return nil, ErrCodeRequired
	}

	link, err := v.links.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup link %q: %w", code, err)
	}

	view := &Pageview{Link: link}

	if clickID == 0 {
		return view, nil
	}

	click, err := v.clicks.GetClick(ctx, clickID)
	if err == nil && click.LinkID == link.ID {
		view.ClickID = clickID
	}

	return view, nil
}
