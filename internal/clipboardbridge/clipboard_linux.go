//go:build linux

package clipboardbridge

/*
#cgo LDFLAGS: -lX11

#include <X11/Xlib.h>
#include <X11/Xatom.h>
#include <stdlib.h>
#include <string.h>

// mouseshareXConn keeps a single Display and a hidden selection-owner window
// open for the lifetime of the process, the same "open once, poll forever"
// lifecycle the retrieved clipboard-sync pack uses for its X11 backend.
typedef struct {
    Display *display;
    Window window;
    Atom clipboard;
    Atom utf8;
    Atom targets;
} mouseshareXConn;

static mouseshareXConn *mouseshare_x_open() {
    Display *d = XOpenDisplay(NULL);
    if (!d) {
        return NULL;
    }
    mouseshareXConn *c = malloc(sizeof(mouseshareXConn));
    c->display = d;
    c->window = XCreateSimpleWindow(d, DefaultRootWindow(d), 0, 0, 1, 1, 0, 0, 0);
    c->clipboard = XInternAtom(d, "CLIPBOARD", False);
    c->utf8 = XInternAtom(d, "UTF8_STRING", False);
    c->targets = XInternAtom(d, "TARGETS", False);
    return c;
}

static char *mouseshare_x_read(mouseshareXConn *c, unsigned long *outLen) {
    Window owner = XGetSelectionOwner(c->display, c->clipboard);
    if (owner == None) {
        *outLen = 0;
        return NULL;
    }
    Atom prop = XInternAtom(c->display, "MOUSESHARE_SEL", False);
    XConvertSelection(c->display, c->clipboard, c->utf8, prop, c->window, CurrentTime);
    XFlush(c->display);

    XEvent event;
    for (int i = 0; i < 200; i++) {
        if (XCheckTypedWindowEvent(c->display, c->window, SelectionNotify, &event)) {
            break;
        }
        usleep(5000);
    }
    if (event.type != SelectionNotify || event.xselection.property == None) {
        *outLen = 0;
        return NULL;
    }

    Atom type;
    int format;
    unsigned long len, bytesAfter;
    unsigned char *data;
    XGetWindowProperty(c->display, c->window, prop, 0, ~0L, False, AnyPropertyType,
        &type, &format, &len, &bytesAfter, &data);

    if (data == NULL) {
        *outLen = 0;
        return NULL;
    }
    char *out = malloc(len);
    memcpy(out, data, len);
    XFree(data);
    *outLen = len;
    return out;
}

static void mouseshare_x_write(mouseshareXConn *c, const char *buf, unsigned long len) {
    XChangeProperty(c->display, c->window, c->clipboard, c->utf8, 8, PropModeReplace,
        (const unsigned char *)buf, len);
    XSetSelectionOwner(c->display, c->clipboard, c->window, CurrentTime);
    XFlush(c->display);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type x11Backend struct {
	conn *C.mouseshareXConn
}

// NewBackend opens the X11 display, grounded on the retrieved
// clipboard-sync pack's NativeClipboard, whose Go wrapper is a thin shim
// over the same XGetSelectionOwner/XConvertSelection/XChangeProperty calls.
func NewBackend() (Backend, error) {
	conn := C.mouseshare_x_open()
	if conn == nil {
		return nil, fmt.Errorf("clipboardbridge: failed to open X11 display, is DISPLAY set?")
	}
	return &x11Backend{conn: conn}, nil
}

func (x *x11Backend) Read() ([]byte, string, error) {
	var length C.ulong
	data := C.mouseshare_x_read(x.conn, &length)
	if data == nil {
		return nil, "text/plain", nil
	}
	defer C.free(unsafe.Pointer(data))
	buf := C.GoBytes(unsafe.Pointer(data), C.int(length))
	return buf, "text/plain", nil
}

func (x *x11Backend) Write(content []byte, mimeTag string) error {
	if len(content) == 0 {
		return nil
	}
	cBuf := C.CBytes(content)
	defer C.free(cBuf)
	C.mouseshare_x_write(x.conn, (*C.char)(cBuf), C.ulong(len(content)))
	return nil
}
