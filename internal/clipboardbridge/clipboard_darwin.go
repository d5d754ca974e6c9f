//go:build darwin

package clipboardbridge

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AppKit

#import <AppKit/AppKit.h>

static long long mouseshareChangeCount() {
    return [[NSPasteboard generalPasteboard] changeCount];
}

static const char *mouseshareReadString() {
    NSPasteboard *pb = [NSPasteboard generalPasteboard];
    NSString *s = [pb stringForType:NSPasteboardTypeString];
    if (s == nil) {
        return NULL;
    }
    return strdup([s UTF8String]);
}

static void mouseshareWriteString(const char *buf) {
    NSPasteboard *pb = [NSPasteboard generalPasteboard];
    [pb clearContents];
    NSString *s = [NSString stringWithUTF8String:buf];
    [pb setString:s forType:NSPasteboardTypeString];
}
*/
import "C"

import "unsafe"

// darwinBackend polls NSPasteboard's changeCount the way the teacher's own
// cgo files poll CGEventTap/CGEvent state: a cheap native counter read each
// tick, with the string fetch deferred to when the counter actually moves.
type darwinBackend struct {
	lastChangeCount int64
	lastRead        []byte
}

func NewBackend() (Backend, error) {
	b := &darwinBackend{lastChangeCount: int64(C.mouseshareChangeCount()) - 1}
	b.Read()
	return b, nil
}

// Read returns the pasteboard's full current string content. The native
// changeCount is consulted first so an unchanged pasteboard skips the
// UTF8String copy; Bridge itself still owns change detection via its own
// lastContent diff, so an unchanged read must yield the same bytes as last
// time rather than nil.
func (d *darwinBackend) Read() ([]byte, string, error) {
	count := int64(C.mouseshareChangeCount())
	if count == d.lastChangeCount {
		return d.lastRead, "text/plain", nil
	}
	d.lastChangeCount = count

	cstr := C.mouseshareReadString()
	if cstr == nil {
		d.lastRead = nil
		return nil, "text/plain", nil
	}
	defer C.free(unsafe.Pointer(cstr))
	d.lastRead = []byte(C.GoString(cstr))
	return d.lastRead, "text/plain", nil
}

func (d *darwinBackend) Write(content []byte, mimeTag string) error {
	cstr := C.CString(string(content))
	defer C.free(unsafe.Pointer(cstr))
	C.mouseshareWriteString(cstr)
	d.lastChangeCount = int64(C.mouseshareChangeCount())
	d.lastRead = content
	return nil
}
