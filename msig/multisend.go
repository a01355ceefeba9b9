package msig

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	safetxcommon "github.com/tranvictor/safetx/common"
)

// EncodeMultiSend packs calls the way MultiSendCallOnly expects them:
// operation (1 byte) | to (20 bytes) | value (32 bytes) |
// data length (32 bytes) | data, one after another. Every call is a
// plain Call.
func EncodeMultiSend(calls []safetxcommon.UnsignedTransaction) []byte {
	result := []byte{}
	for _, c := range calls {
		data := c.Data()
		result = append(result, byte(Call))
		result = append(result, c.To().Bytes()...)
		result = append(result, common.LeftPadBytes(c.Value().Bytes(), 32)...)
		result = append(result, common.LeftPadBytes(new(big.Int).SetInt64(int64(len(data))).Bytes(), 32)...)
		result = append(result, data...)
	}
	return result
}

// DecodeMultiSend is the inverse of EncodeMultiSend.
func DecodeMultiSend(packed []byte) ([]safetxcommon.UnsignedTransaction, error) {
	const header = 1 + 20 + 32 + 32
	result := []safetxcommon.UnsignedTransaction{}
	for i := 0; i < len(packed); {
		if len(packed)-i < header {
			return nil, fmt.Errorf("truncated multi-send entry at offset %d", i)
		}
		if Operation(packed[i]) != Call {
			return nil, fmt.Errorf("unsupported operation %d at offset %d", packed[i], i)
		}
		to := common.BytesToAddress(packed[i+1 : i+21])
		value := new(big.Int).SetBytes(packed[i+21 : i+53])
		lengthWord := packed[i+53 : i+85]
		if !isZero(lengthWord[:24]) {
			return nil, fmt.Errorf("data length overflow at offset %d", i)
		}
		length := binary.BigEndian.Uint64(lengthWord[24:])
		start := i + header
		if uint64(len(packed)-start) < length {
			return nil, fmt.Errorf("truncated multi-send data at offset %d", i)
		}
		end := start + int(length)
		result = append(result, safetxcommon.NewUnsignedTransaction(to, packed[start:end], value, 0))
		i = end
	}
	return result, nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// MultiSendCallData wraps the packed calls in a multiSend(bytes) call.
func MultiSendCallData(calls []safetxcommon.UnsignedTransaction) ([]byte, error) {
	data, err := GetMultiSendABI().Pack("multiSend", EncodeMultiSend(calls))
	if err != nil {
		return nil, fmt.Errorf("couldn't encode multiSend: %w", err)
	}
	return data, nil
}
