package knx

import (
	"fmt"
	"strconv"
	"strings"
)

// IndividualAddress is a 16-bit device address: 4 bits area, 4 bits line, 8 bits device.
type IndividualAddress uint16

// UnsetAddress is the individual address of a device that has not been assigned one.
const UnsetAddress IndividualAddress = 0

// NewIndividualAddress builds an address from its area, line and device parts.
func NewIndividualAddress(area, line, device uint8) (IndividualAddress, error) {
	if area > 0x0F || line > 0x0F {
		return 0, fmt.Errorf("knx: individual address %d.%d.%d out of range", area, line, device)
	}

	return IndividualAddress(uint16(area)<<12 | uint16(line)<<8 | uint16(device)), nil
}

// ParseIndividualAddress parses the area.line.device notation.
func ParseIndividualAddress(s string) (IndividualAddress, error) {
	parts, err := splitAddress(s, ".", []int{0x0F, 0x0F, 0xFF})
	if err != nil {
		return 0, fmt.Errorf("knx: invalid individual address %q: %w", s, err)
	}

	return IndividualAddress(parts[0]<<12 | parts[1]<<8 | parts[2]), nil
}

func (a IndividualAddress) Area() uint8   { return uint8(a >> 12) }
func (a IndividualAddress) Line() uint8   { return uint8(a>>8) & 0x0F }
func (a IndividualAddress) Device() uint8 { return uint8(a) }

// IsSet reports whether the address has been assigned.
func (a IndividualAddress) IsSet() bool { return a != UnsetAddress }

func (a IndividualAddress) String() string {
	return fmt.Sprintf("%d.%d.%d", a.Area(), a.Line(), a.Device())
}

// GroupAddress is a 16-bit group address: 5 bits main, 3 bits middle, 8 bits sub.
type GroupAddress uint16

// BroadcastAddress is the destination used by broadcast telegrams.
const BroadcastAddress GroupAddress = 0

// NewGroupAddress builds a three-level group address.
func NewGroupAddress(main, middle, sub uint8) (GroupAddress, error) {
	if main > 0x1F || middle > 0x07 {
		return 0, fmt.Errorf("knx: group address %d/%d/%d out of range", main, middle, sub)
	}

	return GroupAddress(uint16(main)<<11 | uint16(middle)<<8 | uint16(sub)), nil
}

// ParseGroupAddress parses the main/middle/sub notation.
func ParseGroupAddress(s string) (GroupAddress, error) {
	parts, err := splitAddress(s, "/", []int{0x1F, 0x07, 0xFF})
	if err != nil {
		return 0, fmt.Errorf("knx: invalid group address %q: %w", s, err)
	}

	return GroupAddress(parts[0]<<11 | parts[1]<<8 | parts[2]), nil
}

func (g GroupAddress) Main() uint8   { return uint8(g >> 11) }
func (g GroupAddress) Middle() uint8 { return uint8(g>>8) & 0x07 }
func (g GroupAddress) Sub() uint8    { return uint8(g) }

func (g GroupAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", g.Main(), g.Middle(), g.Sub())
}

func splitAddress(s, sep string, limits []int) ([]uint16, error) {
	fields := strings.Split(strings.TrimSpace(s), sep)
	if len(fields) != len(limits) {
		return nil, fmt.Errorf("want %d parts separated by %q", len(limits), sep)
	}

	out := make([]uint16, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > limits[i] {
			return nil, fmt.Errorf("part %d value %d exceeds %d", i, n, limits[i])
		}
		out[i] = uint16(n)
	}

	return out, nil
}
