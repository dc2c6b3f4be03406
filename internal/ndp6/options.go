package ndp6

// linkLayerOption encodes/decodes the source/target link-layer address
// option (RFC 4861 §4.6.1): type (1 byte), length in units of 8 bytes (1
// byte), then the EUI-48 address padded to the 8-byte unit.
const linkLayerOptLen = 8

func encodeLinkLayerOption(optType uint8, addr LinkAddr) []byte {
	b := make([]byte, linkLayerOptLen)
	b[0] = optType
	b[1] = 1 // length in units of 8 bytes
	copy(b[2:8], addr[:])
	return b
}

// iterOptions walks a tail of NDP options, calling fn with each option's
// type and raw value bytes (excluding the type/length octets). It returns
// errBadOption for any option whose declared length is zero or would
// overrun the buffer, matching RFC 4861's "silently drop on malformed
// option" rule.
func iterOptions(b []byte, fn func(optType uint8, value []byte) error) error {
	for len(b) > 0 {
		if len(b) < 2 {
			return errBadOption
		}
		optType := b[0]
		lenUnits := b[1]
		if lenUnits == 0 {
			return errBadOption
		}
		optLen := int(lenUnits) * 8
		if optLen > len(b) {
			return errBadOption
		}
		if err := fn(optType, b[2:optLen]); err != nil {
			return err
		}
		b = b[optLen:]
	}
	return nil
}

// findSourceLinkLayerAddr scans b for a single Source Link-Layer Address
// option. A second occurrence is treated as malformed, since no interface
// can have two link-layer addresses (mirrors gvisor's icmp.go handling of
// NS options).
func findSourceLinkLayerAddr(b []byte) (addr LinkAddr, present bool, err error) {
	err = iterOptions(b, func(optType uint8, value []byte) error {
		if optType != OptSourceLinkLayerAddr {
			return nil
		}
		if present {
			return errBadOption
		}
		if len(value) < 6 {
			return errBadOption
		}
		present = true
		copy(addr[:], value[:6])
		return nil
	})
	return addr, present, err
}
