// Package discovery finds attached HiDock recorders on the USB bus and
// watches for attach/detach events.
//
// USB has no subscription mechanism that works portably across libusb
// versions, so the watcher polls: it enumerates the bus at a fixed
// interval and diffs the result against the previous snapshot. Consumers
// receive attach and detach events on channels and open a session with
// the handle's bus/address pair.
package discovery
