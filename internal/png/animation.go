package png

import (
	"bytes"

	"github.com/kettek/apng"
)

var actl = []byte("acTL")

// IsAnimated reports whether data is an APNG with more than one frame. The
// still-image codec only sees the default frame, so re-encoding such a file
// would drop the animation.
func IsAnimated(data []byte) bool {
	// every APNG carries an animation control chunk; skip the second decode
	// for plain PNGs
	if !bytes.Contains(data, actl) {
		return false
	}
	a, err := apng.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return len(a.Frames) > 1
}
