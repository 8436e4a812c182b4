package types

import (
	"math/big"
	"testing"
)

func TestAccountEncodeDecodeRoundTrip(t *testing.T) {
	original := Account{
		Nonce:       7,
		Balance:     big.NewInt(123456789),
		StorageRoot: EmptyRootHash,
		CodeHash:    EmptyCodeHash,
	}
	decoded, err := DecodeAccount(original.Encode())
	if err != nil {
		t.Fatalf("DecodeAccount: %v", err)
	}
	if decoded.Nonce != original.Nonce ||
		decoded.Balance.Cmp(original.Balance) != 0 ||
		decoded.StorageRoot != original.StorageRoot ||
		decoded.CodeHash != original.CodeHash {
		t.Fatalf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestEmptyAccountEncodeDecodeRoundTrip(t *testing.T) {
	original := EmptyAccount()
	decoded, err := DecodeAccount(original.Encode())
	if err != nil {
		t.Fatalf("DecodeAccount: %v", err)
	}
	if !decoded.IsEmpty() {
		t.Fatalf("decoded empty account is not IsEmpty(): %+v", decoded)
	}
}
