package msig

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/util/account"
)

const signatureLength = 65

// SignSafeTx signs hash with signer and returns the signature in the form
// Safe verifies: [R || S || V] with V in {27, 28}.
func SignSafeTx(signer account.Signer, hash common.Hash) ([]byte, error) {
	sig, err := signer.SignHash(hash)
	if err != nil {
		return nil, err
	}
	if len(sig) != signatureLength {
		return nil, fmt.Errorf("%w: signer returned %d bytes", safetxcommon.ErrInvalidSignature, len(sig))
	}
	sig = common.CopyBytes(sig)
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// RecoverSigner returns the address that produced sig over hash. V of 27
// and 28 are plain ECDSA signatures, 31 and 32 are eth_sign signatures
// over the prefixed hash, the two kinds Safe accepts from EOAs.
func RecoverSigner(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != signatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", safetxcommon.ErrInvalidSignature, signatureLength, len(sig))
	}
	digest := hash.Bytes()
	normalized := common.CopyBytes(sig)
	v := normalized[64]
	switch {
	case v == 27 || v == 28:
		normalized[64] = v - 27
	case v == 31 || v == 32:
		normalized[64] = v - 31
		digest = accounts.TextHash(hash.Bytes())
	default:
		return common.Address{}, fmt.Errorf("%w: unsupported v %d", safetxcommon.ErrInvalidSignature, v)
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s", safetxcommon.ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
