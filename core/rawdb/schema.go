package rawdb

import "encoding/binary"

// Key prefixes for the database schema.
var (
	saleStateKey = []byte("s") // s -> SaleState RLP

	userPrefix = []byte("u") // u + address -> UserState RLP

	// Host-side balances. The denom (or token) is prefixed with its uvarint
	// length so addresses can hold any byte.
	nativeBalancePrefix = []byte("b") // b + uvarint(len(denom)) + denom + address -> Amount RLP
	tokenBalancePrefix  = []byte("t") // t + uvarint(len(token)) + token + address -> Amount RLP

	// Signed-request replay counters.
	noncePrefix = []byte("n") // n + address -> next nonce (8 bytes BE)

	// Executed-call log.
	eventPrefix  = []byte("e") // e + seq (8 bytes BE) -> event record
	eventHeadKey = []byte("E") // -> seq (8 bytes BE) of the latest event
)

// encodeSeq encodes a sequence number as an 8-byte big-endian value.
func encodeSeq(seq uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, seq)
	return enc
}

// userKey = userPrefix + address
func userKey(addr string) []byte {
	return append(append([]byte{}, userPrefix...), addr...)
}

func scopedKey(prefix []byte, scope, addr string) []byte {
	key := make([]byte, 0, len(prefix)+binary.MaxVarintLen64+len(scope)+len(addr))
	key = append(key, prefix...)
	key = binary.AppendUvarint(key, uint64(len(scope)))
	key = append(key, scope...)
	return append(key, addr...)
}

// nativeBalanceKey = nativeBalancePrefix + uvarint(len(denom)) + denom + address
func nativeBalanceKey(denom, addr string) []byte {
	return scopedKey(nativeBalancePrefix, denom, addr)
}

// tokenBalanceKey = tokenBalancePrefix + uvarint(len(token)) + token + address
func tokenBalanceKey(token, addr string) []byte {
	return scopedKey(tokenBalancePrefix, token, addr)
}

// eventKey = eventPrefix + seq
func eventKey(seq uint64) []byte {
	return append(append([]byte{}, eventPrefix...), encodeSeq(seq)...)
}

// nonceKey = noncePrefix + address
func nonceKey(addr string) []byte {
	return append(append([]byte{}, noncePrefix...), addr...)
}
