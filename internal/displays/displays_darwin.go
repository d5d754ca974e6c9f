//go:build darwin

package displays

/*
#cgo LDFLAGS: -framework CoreGraphics

#include <CoreGraphics/CoreGraphics.h>

static uint32_t mouseshareDisplayCount() {
    uint32_t count = 0;
    CGGetActiveDisplayList(0, NULL, &count);
    return count;
}

static void mouseshareFillDisplays(CGDirectDisplayID *ids, uint32_t max, uint32_t *count) {
    CGGetActiveDisplayList(max, ids, count);
}
*/
import "C"

import (
	"fmt"

	"github.com/mouseshare/mouseshare/internal/arrangement"
)

func localDisplays() []arrangement.LocalDisplay {
	count := uint32(C.mouseshareDisplayCount())
	if count == 0 {
		return nil
	}

	ids := make([]C.CGDirectDisplayID, count)
	var filled C.uint32_t
	C.mouseshareFillDisplays(&ids[0], C.uint32_t(count), &filled)

	out := make([]arrangement.LocalDisplay, 0, filled)
	for i := 0; i < int(filled); i++ {
		id := ids[i]
		b := C.CGDisplayBounds(id)
		out = append(out, arrangement.LocalDisplay{
			ID:        fmt.Sprintf("%d", uint32(id)),
			Name:      fmt.Sprintf("Display %d", uint32(id)),
			X:         float64(b.origin.x),
			Y:         float64(b.origin.y),
			W:         float64(b.size.width),
			H:         float64(b.size.height),
			IsPrimary: C.CGDisplayIsMain(id) != 0,
		})
	}
	return out
}
