package fusion

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"fusionswap/storage"
)

// State persists escrow records in a key-value database. Records are
// RLP-encoded and keyed by (maker, order hash), so a caller presenting terms
// that differ from those used at creation simply fails to find the escrow.
type State struct {
	db storage.Database
}

// NewState wraps the supplied database.
func NewState(db storage.Database) *State {
	return &State{db: db}
}

type escrowRecord struct {
	OrderHash       [32]byte
	Maker           [32]byte
	SrcMint         [32]byte
	DstMint         [32]byte
	NativeDst       bool
	SrcAmount       uint64
	RemainingAmount uint64
	CreatedAt       uint64
}

// EscrowPut stores or replaces the escrow record.
func (s *State) EscrowPut(esc *Escrow) error {
	if esc == nil {
		return fmt.Errorf("fusion: nil escrow")
	}
	record := escrowRecord{
		OrderHash:       esc.OrderHash,
		Maker:           esc.Maker,
		SrcMint:         esc.SrcMint,
		DstMint:         esc.DstMint,
		NativeDst:       esc.NativeDst,
		SrcAmount:       esc.SrcAmount,
		RemainingAmount: esc.RemainingAmount,
		CreatedAt:       esc.CreatedAt,
	}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	return s.db.Put(escrowKey(esc.Maker, esc.OrderHash), encoded)
}

// EscrowGet loads the escrow addressed by the maker and order hash.
func (s *State) EscrowGet(maker, orderHash [32]byte) (*Escrow, bool) {
	encoded, err := s.db.Get(escrowKey(maker, orderHash))
	if err != nil {
		return nil, false
	}
	var record escrowRecord
	if err := rlp.DecodeBytes(encoded, &record); err != nil {
		return nil, false
	}
	return &Escrow{
		OrderHash:       record.OrderHash,
		Maker:           record.Maker,
		SrcMint:         record.SrcMint,
		DstMint:         record.DstMint,
		NativeDst:       record.NativeDst,
		SrcAmount:       record.SrcAmount,
		RemainingAmount: record.RemainingAmount,
		CreatedAt:       record.CreatedAt,
	}, true
}

// EscrowDelete releases the escrow's storage.
func (s *State) EscrowDelete(maker, orderHash [32]byte) error {
	err := s.db.Delete(escrowKey(maker, orderHash))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	return err
}
