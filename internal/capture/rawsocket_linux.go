//go:build linux

package capture

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// RawSocketSource captures via an AF_PACKET raw socket, for hosts
// without libpcap available. Device auto-selection and promiscuous
// setup are deliberately minimal — correctness of device selection is
// out of scope (spec.md §1); this exists so a libpcap-free host has a
// second concrete Source to wire in.
type RawSocketSource struct {
	fd int
}

// OpenRawSocketSource opens an AF_PACKET/SOCK_RAW socket bound to
// ifaceIndex (0 binds to all interfaces).
func OpenRawSocketSource(ifaceIndex int) (*RawSocketSource, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, htons(unix.ETH_P_ALL))
	if err != nil {
		return nil, errors.Wrap(err, "capture: open AF_PACKET socket")
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifaceIndex,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrap(err, "capture: bind AF_PACKET socket")
	}

	return &RawSocketSource{fd: fd}, nil
}

// Run reads raw Ethernet frames, extracts IPv4+TCP payloads, and
// invokes onPayload for each, until ctx is cancelled.
func (s *RawSocketSource) Run(ctx context.Context, onPayload func(Payload)) error {
	buf := make([]byte, 65536)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := setReadDeadline(s.fd); err != nil {
			return errors.Wrap(err, "capture: set read deadline")
		}

		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				continue
			}
			return errors.Wrap(err, "capture: recvfrom")
		}

		payload, ok := parseEthernetIPv4TCP(buf[:n])
		if ok {
			onPayload(payload)
		}
	}
}

// Close releases the raw socket.
func (s *RawSocketSource) Close() error {
	return unix.Close(s.fd)
}

func htons(v uint16) uint16 {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return binary.LittleEndian.Uint16(b)
}

func setReadDeadline(fd int) error {
	tv := unix.Timeval{Sec: 1, Usec: 0}
	return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}

// parseEthernetIPv4TCP extracts the TCP port pair and payload from a
// raw Ethernet frame carrying IPv4. Returns ok=false for anything
// else (ARP, IPv6, non-TCP, truncated).
func parseEthernetIPv4TCP(frame []byte) (Payload, bool) {
	const ethHeaderLen = 14
	if len(frame) < ethHeaderLen+20 {
		return Payload{}, false
	}

	etherType := binary.BigEndian.Uint16(frame[12:14])
	if etherType != 0x0800 { // IPv4
		return Payload{}, false
	}

	ipHeader := frame[ethHeaderLen:]
	ihl := int(ipHeader[0]&0x0F) * 4
	if ihl < 20 || len(ipHeader) < ihl+20 {
		return Payload{}, false
	}
	if ipHeader[9] != 6 { // protocol == TCP
		return Payload{}, false
	}

	tcpHeader := ipHeader[ihl:]
	srcPort := binary.BigEndian.Uint16(tcpHeader[0:2])
	dstPort := binary.BigEndian.Uint16(tcpHeader[2:4])
	dataOffset := int(tcpHeader[12]>>4) * 4
	if dataOffset < 20 || len(tcpHeader) < dataOffset {
		return Payload{}, false
	}

	payload := tcpHeader[dataOffset:]
	if len(payload) == 0 {
		return Payload{}, false
	}

	return Payload{
		SrcPort: srcPort,
		DstPort: dstPort,
		Data:    append([]byte(nil), payload...),
	}, true
}
