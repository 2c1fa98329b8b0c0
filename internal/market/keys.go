package market

import (
	"encoding/binary"
)

var (
	// ConfigKey is the key of the singleton market config
	ConfigKey = []byte{0x01}

	// ProviderKeyPrefix is the prefix for provider records, keyed by address
	ProviderKeyPrefix = []byte{0x02}

	// JobKeyPrefix is the prefix for job records, keyed by big-endian id
	JobKeyPrefix = []byte{0x03}

	// NextJobIDKey holds the id the next submitted job receives
	NextJobIDKey = []byte{0x04}

	// JobsByProviderPrefix indexes jobs as prefix | len(addr) | addr | id
	JobsByProviderPrefix = []byte{0x05}

	// JobsByClientPrefix indexes jobs as prefix | len(addr) | addr | id
	JobsByClientPrefix = []byte{0x06}

	// BalanceKeyPrefix is the prefix for unspent deposits, keyed by address
	BalanceKeyPrefix = []byte{0x07}

	// DepositRefPrefix marks gateway references that were already credited
	DepositRefPrefix = []byte{0x08}

	// PendingSettlementPrefix holds declared transfers not yet dispatched, keyed by id
	PendingSettlementPrefix = []byte{0x09}

	// NextSettlementIDKey holds the id the next declared transfer receives
	NextSettlementIDKey = []byte{0x0a}

	// TotalsKey holds the running deposited and released sums
	TotalsKey = []byte{0x0b}

	// SeenRequestPrefix holds signed request digests until they expire
	SeenRequestPrefix = []byte{0x0c}

	// SeenExpiryPrefix orders the same digests as prefix | unix expiry | digest
	SeenExpiryPrefix = []byte{0x0d}
)

func ProviderKey(addr string) []byte {
	return append(append([]byte{}, ProviderKeyPrefix...), addressBytes(addr)...)
}

func JobKey(id uint64) []byte {
	return append(append([]byte{}, JobKeyPrefix...), encodeID(id)...)
}

// JobsByProviderIndexPrefix returns the prefix under which all of a provider's job ids live.
func JobsByProviderIndexPrefix(addr string) []byte {
	return append(append([]byte{}, JobsByProviderPrefix...), addressBytes(addr)...)
}

func JobsByProviderKey(addr string, id uint64) []byte {
	return append(JobsByProviderIndexPrefix(addr), encodeID(id)...)
}

func JobsByClientIndexPrefix(addr string) []byte {
	return append(append([]byte{}, JobsByClientPrefix...), addressBytes(addr)...)
}

func JobsByClientKey(addr string, id uint64) []byte {
	return append(JobsByClientIndexPrefix(addr), encodeID(id)...)
}

func BalanceKey(addr string) []byte {
	return append(append([]byte{}, BalanceKeyPrefix...), addressBytes(addr)...)
}

func DepositRefKey(ref string) []byte {
	return append(append([]byte{}, DepositRefPrefix...), ref...)
}

func PendingSettlementKey(id uint64) []byte {
	return append(append([]byte{}, PendingSettlementPrefix...), encodeID(id)...)
}

func SeenRequestKey(digest []byte) []byte {
	return append(append([]byte{}, SeenRequestPrefix...), digest...)
}

func SeenExpiryKey(expires int64, digest []byte) []byte {
	return append(append(append([]byte{}, SeenExpiryPrefix...), encodeID(uint64(expires))...), digest...)
}

// addressBytes length-prefixes an address so one address can never be a prefix of another.
func addressBytes(addr string) []byte {
	return append([]byte{byte(len(addr))}, addr...)
}

func encodeID(id uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, id)
	return bz
}

func decodeID(bz []byte) uint64 {
	return binary.BigEndian.Uint64(bz)
}
