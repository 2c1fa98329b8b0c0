package gateway

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// HexAddresses validates 0x-prefixed 20 byte hex addresses. The canonical form is
// lower case so that ledger keys sort the same way the addresses read.
type HexAddresses struct{}

func (HexAddresses) ValidateAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("not a hex address: %q", addr)
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return "", fmt.Errorf("missing 0x prefix: %q", addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// Checksum renders a canonical address in its EIP-55 form for display.
func Checksum(addr string) string {
	return common.HexToAddress(addr).Hex()
}
