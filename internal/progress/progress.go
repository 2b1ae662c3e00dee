package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// Bar counts finished trials
type Bar struct {
	*progressbar.ProgressBar
}

// New creates a bar like:
// trials  40% [========>            ] (200/500, 2 it/s)
func New(w io.Writer, total int, describe string) *Bar {
	return &Bar{
		progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetDescription(describe),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		),
	}
}

// Increment adds one finished trial
func (b *Bar) Increment() {
	if err := b.Add(1); err != nil {
		logrus.Errorf("failed to increment progress bar: %v", err)
	}
}
