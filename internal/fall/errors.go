package fall

import (
	"errors"
	"fmt"

	"github.com/banshee-data/fallwatch/internal/pose"
)

// InputError reports a frame that could not be turned into model input.
// It is the only per-frame failure Process returns besides engine errors.
type InputError = pose.InputError

// Reasons a frame produced no verdict. These are never returned by Process;
// they surface through Observation.Reason.
var (
	ErrDegenerate   = errors.New("degenerate observation")
	ErrInconclusive = errors.New("inconclusive comparison")

	ErrNoHistory    = errors.New("no prior frame to compare")
	ErrTooSoon      = fmt.Errorf("%w: frames too close in time", ErrInconclusive)
	ErrTooOld       = fmt.Errorf("%w: frames too far apart", ErrInconclusive)
	ErrUncorrelated = fmt.Errorf("%w: no common body side", ErrInconclusive)
	ErrNoFall       = errors.New("no fall")
)
