// Package actuator drives the barrier motor through a USB serial relay board.
//
// Relay mirrors committed barrier states onto the board from a single driver
// goroutine so gate operations never wait on serial I/O. Writes that fail are
// retried on an interval and after the device reappears; HotplugMonitor
// watches udev for the relay being unplugged or reconnected.
package actuator
