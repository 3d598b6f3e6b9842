// Package mux drives a TCA9548A style I2C multiplexer, used when the motor
// board shares an address with something else on the bus.
package mux

import (
	"fmt"

	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x70
	NumPorts    = 8
)

type Interface interface {
	DisableAllPorts() error
	SelectSinglePort(num int) error
	Close() error
}

type writer interface {
	Write(buf []byte) error
	Close() error
}

type Mux struct {
	dev writer
}

func New(deviceFile string) (Interface, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, DefaultAddr)
	if err != nil {
		return nil, err
	}
	return &Mux{
		dev: dev,
	}, nil
}

func (p *Mux) SelectSinglePort(num int) error {
	if num < 0 || num >= NumPorts {
		return fmt.Errorf("mux port %d out of range", num)
	}
	return p.dev.Write([]byte{1 << uint(num)})
}

func (p *Mux) DisableAllPorts() error {
	return p.dev.Write([]byte{0})
}

func (p *Mux) Close() error {
	return p.dev.Close()
}

func Dummy() Interface {
	return &dummyMux{}
}

type dummyMux struct {
}

func (p *dummyMux) SelectSinglePort(num int) error {
	fmt.Printf("Dummy Mux setting port=%d\n", num)
	return nil
}

func (p *dummyMux) DisableAllPorts() error {
	fmt.Printf("Dummy Mux disabling all ports\n")
	return nil
}

func (p *dummyMux) Close() error {
	return nil
}
