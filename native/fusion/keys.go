package fusion

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

var (
	escrowRecordPrefix  = []byte("fusion/escrow/")
	accountRecordPrefix = []byte("fusion/account/")
	escrowVaultSeed     = []byte("fusion/escrow/vault")
)

func escrowKey(maker, orderHash [32]byte) []byte {
	buf := make([]byte, 0, len(escrowRecordPrefix)+64)
	buf = append(buf, escrowRecordPrefix...)
	buf = append(buf, maker[:]...)
	buf = append(buf, orderHash[:]...)
	return buf
}

func accountKey(addr [32]byte) []byte {
	buf := make([]byte, 0, len(accountRecordPrefix)+32)
	buf = append(buf, accountRecordPrefix...)
	buf = append(buf, addr[:]...)
	return buf
}

// EscrowVaultAddress derives the deterministic vault identity holding an
// escrow's locked source funds. The derivation binds the maker and the order
// hash, so every order locks funds under its own address.
func EscrowVaultAddress(maker, orderHash [32]byte) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash(escrowVaultSeed, maker[:], orderHash[:]))
}
