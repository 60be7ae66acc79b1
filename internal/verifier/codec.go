package verifier

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Payment calls carry a fixed-layout input: a 4-byte function selector,
// a 32-byte fixed-width session identifier, and a 32-byte big-endian amount
// in token base units.
const (
	selectorSize = 4
	wordSize     = 32
	inputSize    = selectorSize + 2*wordSize
)

// EncodeSessionID packs a session id into a 32-byte word, right-padded with
// zero bytes.
func EncodeSessionID(id string) ([wordSize]byte, error) {
	var word [wordSize]byte
	if len(id) == 0 {
		return word, fmt.Errorf("session id is empty")
	}
	if len(id) > wordSize {
		return word, fmt.Errorf("session id %q exceeds %d bytes", id, wordSize)
	}
	copy(word[:], id)
	return word, nil
}

// DecodeSessionID is the inverse of EncodeSessionID.
func DecodeSessionID(word [wordSize]byte) string {
	return string(bytes.TrimRight(word[:], "\x00"))
}

// EncodeAmount converts a token amount into its base-unit word. The amount
// must be exactly representable: no sub-base-unit fractions, no negatives.
func EncodeAmount(amount decimal.Decimal, decimals int32) ([wordSize]byte, error) {
	var word [wordSize]byte
	if amount.IsNegative() {
		return word, fmt.Errorf("amount %s is negative", amount)
	}

	base := amount.Shift(decimals)
	if !base.IsInteger() {
		return word, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	raw := base.BigInt().Bytes()
	if len(raw) > wordSize {
		return word, fmt.Errorf("amount %s overflows a 32-byte word", amount)
	}
	copy(word[wordSize-len(raw):], raw)
	return word, nil
}

// DecodeCallInput splits a payment call's raw input into its session word
// and base-unit amount.
func DecodeCallInput(input []byte) (session [wordSize]byte, amount *big.Int, err error) {
	if len(input) != inputSize {
		return session, nil, fmt.Errorf("call input is %d bytes, expected %d", len(input), inputSize)
	}
	copy(session[:], input[selectorSize:selectorSize+wordSize])
	amount = new(big.Int).SetBytes(input[selectorSize+wordSize:])
	return session, amount, nil
}
