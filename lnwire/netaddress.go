package lnwire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// addressType specifies the network protocol and version that should be used
// when connecting to a node at a particular address.
type addressType uint8

const (
	// noAddr denotes a blank address. An address of this type indicates
	// that a node doesn't have any advertised addresses.
	noAddr addressType = 0

	// tcp4Addr denotes an IPv4 TCP address.
	tcp4Addr addressType = 1

	// tcp6Addr denotes an IPv6 TCP address.
	tcp6Addr addressType = 2
)

// ErrUnsupportedAddr is returned when writing an address type that has no
// wire encoding.
var ErrUnsupportedAddr = errors.New("unsupported address type")

// OpaqueAddrs is used to store the address bytes following an address type
// this package can't decode, such as onion addresses. The bytes are carried
// along untouched so the list can be written back out as it was read.
type OpaqueAddrs struct {
	// Payload is the raw address bytes.
	Payload []byte
}

// A compile-time assertion to ensure that OpaqueAddrs meets the net.Addr
// interface.
var _ net.Addr = (*OpaqueAddrs)(nil)

// String returns a human-readable string describing the target OpaqueAddrs.
func (o *OpaqueAddrs) String() string {
	return fmt.Sprintf("Opaque addrs: %x", o.Payload)
}

// Network returns the name of the network this address is bound to.
func (o *OpaqueAddrs) Network() string {
	return "opaque"
}

// writeTCPAddr appends the wire encoding of a single TCP address to buf.
func writeTCPAddr(buf *bytes.Buffer, addr *net.TCPAddr) error {
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], uint16(addr.Port))

	if ip4 := addr.IP.To4(); ip4 != nil {
		buf.WriteByte(byte(tcp4Addr))
		buf.Write(ip4)
		buf.Write(port[:])

		return nil
	}

	if ip6 := addr.IP.To16(); ip6 != nil {
		buf.WriteByte(byte(tcp6Addr))
		buf.Write(ip6)
		buf.Write(port[:])

		return nil
	}

	return fmt.Errorf("%w: %v", ErrUnsupportedAddr, addr)
}

// WriteNetAddrs appends a slice of net.Addr to the provided buffer as a
// uint16 length prefixed list of typed addresses.
func WriteNetAddrs(buf *bytes.Buffer, addresses []net.Addr) error {
	var addrBuf bytes.Buffer
	for _, address := range addresses {
		switch a := address.(type) {
		case *net.TCPAddr:
			if err := writeTCPAddr(&addrBuf, a); err != nil {
				return err
			}

		case *OpaqueAddrs:
			addrBuf.Write(a.Payload)

		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedAddr, a)
		}
	}

	if addrBuf.Len() > MaxMsgBody {
		return fmt.Errorf("address list too large: %d bytes",
			addrBuf.Len())
	}

	if err := WriteUint16(buf, uint16(addrBuf.Len())); err != nil {
		return err
	}

	return WriteBytes(buf, addrBuf.Bytes())
}

// readNetAddrs reads a list of addresses written by WriteNetAddrs.
func readNetAddrs(r io.Reader) ([]net.Addr, error) {
	var addrsLen uint16
	if err := ReadElement(r, &addrsLen); err != nil {
		return nil, err
	}

	raw := make([]byte, addrsLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}

	var addresses []net.Addr
	for len(raw) > 0 {
		switch addressType(raw[0]) {
		case noAddr:
			raw = raw[1:]

		case tcp4Addr:
			if len(raw) < 1+4+2 {
				return nil, io.ErrUnexpectedEOF
			}
			addresses = append(addresses, &net.TCPAddr{
				IP:   net.IP(append([]byte(nil), raw[1:5]...)),
				Port: int(binary.BigEndian.Uint16(raw[5:7])),
			})
			raw = raw[7:]

		case tcp6Addr:
			if len(raw) < 1+16+2 {
				return nil, io.ErrUnexpectedEOF
			}
			addresses = append(addresses, &net.TCPAddr{
				IP:   net.IP(append([]byte(nil), raw[1:17]...)),
				Port: int(binary.BigEndian.Uint16(raw[17:19])),
			})
			raw = raw[19:]

		// We can't tell how long an address we don't know is, so the
		// remaining bytes are kept as they are.
		default:
			addresses = append(addresses, &OpaqueAddrs{
				Payload: append([]byte(nil), raw...),
			})
			raw = nil
		}
	}

	return addresses, nil
}
