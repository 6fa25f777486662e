// Package gpio provides the button input and the status LED with hardware
// abstraction. The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Button reads the habit button.
type Button interface {
	// Read returns the logical button level.
	// The raw line is active low (pull-up, switch to ground): raw 0 = pressed.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// LED drives the status LED.
type LED interface {
	// Set switches the LED on or off.
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinButton = 5 // physical pin 29
	DefaultPinLED    = 6 // physical pin 31
)
