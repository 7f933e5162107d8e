package media

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/kamerplay/internal/app/playback"
)

// NewOutput creates the media output configured by outputType.
func NewOutput(outputType string, settings map[string]any, prober DurationProber) (playback.Output, error) {
	zlog.Debug().Msgf("creating media output: type=%s settings=%+v", outputType, settings)

	switch outputType {
	case "clock", "":
		clock, err := NewClock(prober, settings)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create output (type %s)", outputType)
		}
		return clock, nil
	default:
		return nil, errors.Newf("unsupported output type: %s", outputType)
	}
}
