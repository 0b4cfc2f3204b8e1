package rodbrowser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "context destroyed",
			err:  &cdp.Error{Code: -32000, Message: "Cannot find context with specified id"},
			want: browser.ErrStaleContext,
		},
		{
			name: "detached node",
			err:  fmt.Errorf("call: %w", &cdp.Error{Code: -32000, Message: "Could not find node with given id"}),
			want: browser.ErrStaleHandle,
		},
		{
			name: "released object",
			err:  &rod.ObjectNotFoundError{},
			want: browser.ErrStaleHandle,
		},
		{
			name: "navigated frame",
			err:  errors.New("Execution context was destroyed, most likely because of a navigation"),
			want: browser.ErrStaleContext,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}
}

func TestClassifyPassesThrough(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(context.Canceled), context.Canceled)

	other := errors.New("net::ERR_NAME_NOT_RESOLVED")
	got := classify(other)
	assert.Equal(t, other, got)
	assert.False(t, browser.IsStale(got))
}

func TestLauncherFlag(t *testing.T) {
	name, values := launcherFlag("--lang=ko-KR")
	assert.Equal(t, flags.Flag("lang"), name)
	assert.Equal(t, []string{"ko-KR"}, values)

	name, values = launcherFlag("mute-audio")
	assert.Equal(t, flags.Flag("mute-audio"), name)
	assert.Nil(t, values)
}
