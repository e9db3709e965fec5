package fusion

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"fusionswap/storage"
)

// Movement is one asset transfer the engine directs as part of an operation.
// Movements for a single call are applied atomically: either every balance
// change commits or none does.
type Movement struct {
	Asset  Asset
	From   [32]byte
	To     [32]byte
	Amount uint64
}

// Ledger tracks the native-coin and per-mint token balances of 32-byte
// account identities. It stands in for the hosting environment's balance
// sheet and gives the engine the atomic-commit guarantee the protocol
// requires.
type Ledger struct {
	db storage.Database
}

// NewLedger wraps the supplied database.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

type tokenBalance struct {
	Mint   [32]byte
	Amount uint64
}

type accountRecord struct {
	NativeBalance uint64
	Tokens        []tokenBalance
}

// Balance returns the account's balance of the supplied asset. Unknown
// accounts hold zero.
func (l *Ledger) Balance(asset Asset, addr [32]byte) (uint64, error) {
	account, err := l.loadAccount(addr)
	if err != nil {
		return 0, err
	}
	if asset.Native {
		return account.NativeBalance, nil
	}
	for _, bal := range account.Tokens {
		if bal.Mint == asset.Mint {
			return bal.Amount, nil
		}
	}
	return 0, nil
}

// Mint credits the account with new funds. Used for genesis allocations and
// tests; the settlement engine itself never mints.
func (l *Ledger) Mint(asset Asset, to [32]byte, amount uint64) error {
	account, err := l.loadAccount(to)
	if err != nil {
		return err
	}
	if err := creditAccount(&account, asset, amount); err != nil {
		return err
	}
	return l.storeAccount(to, account)
}

// Apply executes the supplied movements atomically. Every account touched is
// staged in memory first; nothing is persisted until all movements have been
// validated, so a failing movement leaves no partial effect.
func (l *Ledger) Apply(movements []Movement) error {
	staged := make(map[[32]byte]*accountRecord)
	load := func(addr [32]byte) (*accountRecord, error) {
		if account, ok := staged[addr]; ok {
			return account, nil
		}
		account, err := l.loadAccount(addr)
		if err != nil {
			return nil, err
		}
		staged[addr] = &account
		return &account, nil
	}

	for _, movement := range movements {
		if movement.Amount == 0 {
			continue
		}
		from, err := load(movement.From)
		if err != nil {
			return err
		}
		to, err := load(movement.To)
		if err != nil {
			return err
		}
		if err := debitAccount(from, movement.Asset, movement.Amount); err != nil {
			return err
		}
		if err := creditAccount(to, movement.Asset, movement.Amount); err != nil {
			return err
		}
	}

	for addr, account := range staged {
		if err := l.storeAccount(addr, *account); err != nil {
			return err
		}
	}
	return nil
}

func debitAccount(account *accountRecord, asset Asset, amount uint64) error {
	if asset.Native {
		if account.NativeBalance < amount {
			return fmt.Errorf("%w: native balance %d below %d", ErrInsufficientFunds, account.NativeBalance, amount)
		}
		account.NativeBalance -= amount
		return nil
	}
	for i := range account.Tokens {
		if account.Tokens[i].Mint == asset.Mint {
			if account.Tokens[i].Amount < amount {
				return fmt.Errorf("%w: token balance %d below %d", ErrInsufficientFunds, account.Tokens[i].Amount, amount)
			}
			account.Tokens[i].Amount -= amount
			return nil
		}
	}
	return fmt.Errorf("%w: no balance for mint", ErrInsufficientFunds)
}

func creditAccount(account *accountRecord, asset Asset, amount uint64) error {
	if asset.Native {
		if account.NativeBalance > math.MaxUint64-amount {
			return ErrArithmeticOverflow
		}
		account.NativeBalance += amount
		return nil
	}
	for i := range account.Tokens {
		if account.Tokens[i].Mint == asset.Mint {
			if account.Tokens[i].Amount > math.MaxUint64-amount {
				return ErrArithmeticOverflow
			}
			account.Tokens[i].Amount += amount
			return nil
		}
	}
	account.Tokens = append(account.Tokens, tokenBalance{Mint: asset.Mint, Amount: amount})
	sort.Slice(account.Tokens, func(i, j int) bool {
		return bytes.Compare(account.Tokens[i].Mint[:], account.Tokens[j].Mint[:]) < 0
	})
	return nil
}

func (l *Ledger) loadAccount(addr [32]byte) (accountRecord, error) {
	encoded, err := l.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return accountRecord{}, nil
	}
	if err != nil {
		return accountRecord{}, err
	}
	var account accountRecord
	if err := rlp.DecodeBytes(encoded, &account); err != nil {
		return accountRecord{}, err
	}
	return account, nil
}

func (l *Ledger) storeAccount(addr [32]byte, account accountRecord) error {
	encoded, err := rlp.EncodeToBytes(&account)
	if err != nil {
		return err
	}
	return l.db.Put(accountKey(addr), encoded)
}
