package reader

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// DeviceIDLen is the length of a reader id: its MAC address without separators.
const DeviceIDLen = 12

var ErrInvalidDevice = errors.New("invalid device id")

// Endpoint describes a reachable reader address.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Address()
}

// ValidateDevice checks the id length and that the last four characters,
// which form the link-local address, are hex.
func ValidateDevice(id string) error {
	if len(id) != DeviceIDLen {
		return fmt.Errorf("%w: should be exactly %d characters, but was %d", ErrInvalidDevice, DeviceIDLen, len(id))
	}
	if _, _, err := linkLocalOctets(id); err != nil {
		return err
	}
	return nil
}

// DeriveLinkLocal returns the 169.254.X.Y address a reader assigns itself
// when it has no DHCP lease; X and Y are the last two MAC bytes.
func DeriveLinkLocal(id string) (net.IP, error) {
	if err := ValidateDevice(id); err != nil {
		return nil, err
	}
	x, y, _ := linkLocalOctets(id)
	return net.IPv4(169, 254, x, y).To4(), nil
}

func linkLocalOctets(id string) (byte, byte, error) {
	x, err := strconv.ParseUint(id[len(id)-4:len(id)-2], 16, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: could not convert mac address to ip", ErrInvalidDevice)
	}
	y, err := strconv.ParseUint(id[len(id)-2:], 16, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: could not convert mac address to ip", ErrInvalidDevice)
	}
	return byte(x), byte(y), nil
}

// Candidates lists the endpoints tried for a device, in order.
func Candidates(id string, port int) ([]Endpoint, error) {
	ip, err := DeriveLinkLocal(id)
	if err != nil {
		return nil, err
	}
	return []Endpoint{
		{Host: id, Port: port},
		{Host: ip.String(), Port: port},
	}, nil
}
