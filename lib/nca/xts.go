// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package nca

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// HeaderKeySize is the length of the XTS header key: a data key
// followed by a tweak key.
const HeaderKeySize = 0x20

// EncryptHeader encrypts plain with AES-128-XTS, sector by sector. The
// sector number is encoded big-endian across the whole 16-byte tweak,
// which is why crypto/xts-style little-endian tweaks do not interoperate.
// plain must be a whole number of sectors; it is not modified.
func EncryptHeader(plain []byte, key [HeaderKeySize]byte) ([]byte, error) {
	return xtsTransform(plain, key, true)
}

// DecryptHeader reverses [EncryptHeader].
func DecryptHeader(encrypted []byte, key [HeaderKeySize]byte) ([]byte, error) {
	return xtsTransform(encrypted, key, false)
}

func xtsTransform(input []byte, key [HeaderKeySize]byte, encrypt bool) ([]byte, error) {
	if len(input)%SectorSize != 0 {
		return nil, fmt.Errorf("xts input of %d bytes is not a multiple of the %#x sector size", len(input), SectorSize)
	}
	dataCipher, err := aes.NewCipher(key[:aes.BlockSize])
	if err != nil {
		return nil, fmt.Errorf("creating xts data cipher: %w", err)
	}
	tweakCipher, err := aes.NewCipher(key[aes.BlockSize:])
	if err != nil {
		return nil, fmt.Errorf("creating xts tweak cipher: %w", err)
	}

	output := make([]byte, len(input))
	for sector := 0; sector*SectorSize < len(input); sector++ {
		base := sector * SectorSize
		transformSector(output[base:base+SectorSize], input[base:base+SectorSize], uint64(sector), dataCipher, tweakCipher, encrypt)
	}
	return output, nil
}

func transformSector(dst, src []byte, sector uint64, dataCipher, tweakCipher cipher.Block, encrypt bool) {
	var tweak [aes.BlockSize]byte
	binary.BigEndian.PutUint64(tweak[8:], sector)
	tweakCipher.Encrypt(tweak[:], tweak[:])

	var block [aes.BlockSize]byte
	for offset := 0; offset < len(src); offset += aes.BlockSize {
		subtle.XORBytes(block[:], src[offset:offset+aes.BlockSize], tweak[:])
		if encrypt {
			dataCipher.Encrypt(block[:], block[:])
		} else {
			dataCipher.Decrypt(block[:], block[:])
		}
		subtle.XORBytes(dst[offset:offset+aes.BlockSize], block[:], tweak[:])
		doubleTweak(&tweak)
	}
}

// doubleTweak multiplies the tweak by x in GF(2^128), treating it as a
// little-endian polynomial.
func doubleTweak(tweak *[aes.BlockSize]byte) {
	var carry byte
	for i := range tweak {
		next := tweak[i] >> 7
		tweak[i] = tweak[i]<<1 | carry
		carry = next
	}
	if carry != 0 {
		tweak[0] ^= 0x87
	}
}

// encryptKeyArea encrypts each key of the area in place with
// AES-128-ECB.
func encryptKeyArea(area *[4][0x10]byte, key [0x10]byte) error {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("creating key area cipher: %w", err)
	}
	for i := range area {
		block.Encrypt(area[i][:], area[i][:])
	}
	return nil
}

// DecryptKeyArea returns the plaintext keys of a header's key area.
func DecryptKeyArea(area [4][0x10]byte, key [0x10]byte) ([4][0x10]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return area, fmt.Errorf("creating key area cipher: %w", err)
	}
	for i := range area {
		block.Decrypt(area[i][:], area[i][:])
	}
	return area, nil
}
