package browser

import (
	"context"
	"errors"
	"fmt"
)

// ActivateScript clicks the element it is evaluated on
const ActivateScript = `() => this.click()`

// Activate clicks el and falls back to script activation when the click
// fails for any reason other than a stale handle or cancellation.
func Activate(ctx context.Context, doc Document, el Element) error {
	clickErr := doc.Click(ctx, el)
	if clickErr == nil {
		return nil
	}
	if IsStale(clickErr) || IsCanceled(clickErr) {
		return clickErr
	}

	if _, err := doc.Evaluate(ctx, ActivateScript, el); err != nil {
		if IsStale(err) || IsCanceled(err) {
			return err
		}
		return fmt.Errorf("script activation: %w", errors.Join(clickErr, err))
	}
	return nil
}
