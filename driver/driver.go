// Package driver talks to TMC2209 stepper driver chips over their UART
// register interface, so the axis pulse engines can hand off current and
// microstepping configuration to silicon that supports it instead of
// assuming a bare step/dir driver.
package driver

import "log"

// RegisterComm is the transport a TMC2209 speaks its register protocol
// over. UARTComm is the only implementation; it exists so tests can swap
// in a fake without a real UART.
type RegisterComm interface {
	ReadRegister(register uint8, driverIndex uint8) (uint32, error)
	WriteRegister(register uint8, value uint32, driverIndex uint8) error
}

// TMC2209 represents a single TMC2209 stepper driver on the bus.
type TMC2209 struct {
	comm    RegisterComm
	address uint8
	log     *log.Logger
}

// NewTMC2209 creates a driver handle for the chip at address on comm.
func NewTMC2209(comm RegisterComm, address uint8, logger *log.Logger) *TMC2209 {
	if logger == nil {
		logger = log.Default()
	}
	return &TMC2209{comm: comm, address: address, log: logger}
}

// Setup brings the UART link up if comm supports it.
func (d *TMC2209) Setup() error {
	if u, ok := d.comm.(*UARTComm); ok {
		return u.Setup()
	}
	d.log.Printf("driver: comm for address %d is not a UARTComm", d.address)
	return nil
}

// WriteRegister writes value to reg on this driver's address.
func (d *TMC2209) WriteRegister(reg uint8, value uint32) error {
	if d.comm == nil {
		return errNoComm
	}
	return d.comm.WriteRegister(reg, value, d.address)
}

// ReadRegister reads reg from this driver's address.
func (d *TMC2209) ReadRegister(reg uint8) (uint32, error) {
	if d.comm == nil {
		return 0, errNoComm
	}
	return d.comm.ReadRegister(reg, d.address)
}

type driverError string

func (e driverError) Error() string { return string(e) }

const errNoComm = driverError("driver: communication interface not set")
